package ml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/config"
)

// Bundle is an immutable set of loaded models. A prediction holds the bundle
// it started with; reloading builds a new bundle instead of mutating this one.
type Bundle struct {
	primary    Scorer
	secondary  Scorer
	calibrator Calibrator
	version    string
	loadedAt   time.Time
}

// NewBundle assembles a bundle. Nil scorers leave their slot empty; a
// secondary without a primary is promoted to primary.
func NewBundle(version string, primary, secondary Scorer, calibrator Calibrator) *Bundle {
	if primary == nil {
		primary, secondary = secondary, nil
	}
	return &Bundle{
		primary:    primary,
		secondary:  secondary,
		calibrator: calibrator,
		version:    version,
		loadedAt:   time.Now(),
	}
}

// Primary returns the primary model, or nil
func (b *Bundle) Primary() Scorer { return b.primary }

// Secondary returns the secondary model, or nil
func (b *Bundle) Secondary() Scorer { return b.secondary }

// Calibrator returns the calibrator, or nil
func (b *Bundle) Calibrator() Calibrator { return b.calibrator }

// Version returns the configured model version label
func (b *Bundle) Version() string { return b.version }

// LoadedAt returns when the bundle was assembled
func (b *Bundle) LoadedAt() time.Time { return b.loadedAt }

// Models returns the loaded scorers, primary first
func (b *Bundle) Models() []Scorer {
	var out []Scorer
	if b.primary != nil {
		out = append(out, b.primary)
	}
	if b.secondary != nil {
		out = append(out, b.secondary)
	}
	return out
}

// ModelNames returns the names of the loaded scorers, primary first
func (b *Bundle) ModelNames() []string {
	models := b.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name()
	}
	return names
}

// Ready reports whether at least one model is loaded
func (b *Bundle) Ready() bool {
	return b != nil && b.primary != nil
}

// Close releases remote connections held by the scorers
func (b *Bundle) Close() error {
	var errs []error
	for _, m := range b.Models() {
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// LoadBundle builds a bundle from configuration. featureNames is the column
// order of the rows the scorers will receive. A missing calibrator is not an
// error; a calibrator that fails to load is logged and skipped so
// predictions fall back to softmax.
func LoadBundle(ctx context.Context, cfg *config.ModelsConfig, featureNames []string, logger logrus.FieldLogger) (*Bundle, error) {
	primary, err := loadScorer(ctx, "primary", cfg.Primary, featureNames, logger)
	if err != nil {
		return nil, err
	}
	secondary, err := loadScorer(ctx, "secondary", cfg.Secondary, featureNames, logger)
	if err != nil {
		if c, ok := primary.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}

	var calibrator Calibrator
	if cfg.CalibratorPath != "" {
		calibrator, err = LoadCalibrator(cfg.CalibratorPath)
		if err != nil {
			logger.WithError(err).WithField("path", cfg.CalibratorPath).Warn("Calibrator unavailable, falling back to softmax")
			calibrator = nil
		}
	}

	bundle := NewBundle(cfg.Version, primary, secondary, calibrator)

	fields := logrus.Fields{
		"version": bundle.Version(),
		"models":  bundle.ModelNames(),
	}
	if calibrator != nil {
		fields["calibrator"] = calibrator.Method()
	}
	logger.WithFields(fields).Info("Loaded model bundle")

	return bundle, nil
}

func loadScorer(ctx context.Context, slot string, sc config.ScorerConfig, featureNames []string, logger logrus.FieldLogger) (Scorer, error) {
	if !sc.Enabled() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := sc.Name
	if name == "" {
		name = slot
	}

	timeout := time.Duration(sc.TimeoutSeconds) * time.Second

	var scorer Scorer
	switch sc.Kind {
	case "linear":
		ls, err := LoadLinearScorer(sc.Path, featureNames)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s model: %w", slot, err)
		}
		if sc.Name != "" {
			ls.name = sc.Name
		}
		return ls, nil
	case "http":
		httpCfg := DefaultHTTPClientConfig()
		if timeout > 0 {
			httpCfg.Timeout = timeout
		}
		httpCfg.MaxRetries = sc.RetryAttempts
		if sc.RateLimit > 0 {
			httpCfg.RateLimit = sc.RateLimit
		}
		scorer = NewHTTPScorer(name, sc.URL, sc.Token, featureNames, httpCfg, logger)
	case "grpc":
		gs, err := NewGRPCScorer(name, sc.Address, sc.Token, timeout, featureNames, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s model client: %w", slot, err)
		}
		scorer = gs
	default:
		return nil, fmt.Errorf("unknown %s model kind %q: %w", slot, sc.Kind, ErrInvalidArtifact)
	}

	if sc.CacheTTLSecs > 0 {
		scorer = NewCachedScorer(scorer, time.Duration(sc.CacheTTLSecs)*time.Second)
	}
	return scorer, nil
}
