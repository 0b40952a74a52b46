// Package tracing provides AWS X-Ray distributed tracing integration.
package tracing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-xray-sdk-go/strategy/ctxmissing"
	"github.com/aws/aws-xray-sdk-go/strategy/sampling"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/aws/aws-xray-sdk-go/xraylog"
	"github.com/sirupsen/logrus"
)

// Config contains X-Ray configuration.
type Config struct {
	ServiceName  string
	Version      string
	Enabled      bool
	SamplingRate float64
	DaemonAddr   string
}

// Logger adapter for X-Ray SDK.
type xrayLoggerAdapter struct {
	logger logrus.FieldLogger
}

func (l *xrayLoggerAdapter) Log(level xraylog.LogLevel, msg fmt.Stringer) {
	switch level {
	case xraylog.LogLevelDebug:
		l.logger.Debug(msg.String())
	case xraylog.LogLevelInfo:
		l.logger.Info(msg.String())
	case xraylog.LogLevelWarn:
		l.logger.Warn(msg.String())
	case xraylog.LogLevelError:
		l.logger.Error(msg.String())
	}
}

// samplingRules builds a localized strategy that traces one request per
// second plus rate of the remainder.
func samplingRules(rate float64) ([]byte, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("sampling rate %.2f outside [0,1]", rate)
	}
	return []byte(fmt.Sprintf(`{"version":2,"default":{"fixed_target":1,"rate":%g},"rules":[]}`, rate)), nil
}

// Initialize initializes AWS X-Ray with the given configuration.
func Initialize(cfg Config, logger logrus.FieldLogger) error {
	if !cfg.Enabled {
		return nil
	}

	rules, err := samplingRules(cfg.SamplingRate)
	if err != nil {
		return err
	}
	strategy, err := sampling.NewLocalizedStrategyFromJSONBytes(rules)
	if err != nil {
		return fmt.Errorf("failed to build sampling strategy: %w", err)
	}

	xray.SetLogger(&xrayLoggerAdapter{logger: logger})

	if err := xray.Configure(xray.Config{
		DaemonAddr:             cfg.DaemonAddr,
		ServiceVersion:         cfg.Version,
		SamplingStrategy:       strategy,
		ContextMissingStrategy: ctxmissing.NewDefaultIgnoreErrorStrategy(),
	}); err != nil {
		return fmt.Errorf("failed to configure xray: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"daemon_addr":   cfg.DaemonAddr,
		"sampling_rate": cfg.SamplingRate,
		"service_name":  cfg.ServiceName,
	}).Info("AWS X-Ray initialized")

	return nil
}

// Middleware opens a segment per request. Disabled tracing returns the
// handler untouched.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return xray.Handler(xray.NewFixedSegmentNamer(cfg.ServiceName), next)
	}
}

// StartSubsegment starts a subsegment under the segment carried by ctx.
// The returned func closes it, recording err when non-nil. Without a
// parent segment both are no-ops.
func StartSubsegment(ctx context.Context, name string) (context.Context, func(error)) {
	if xray.GetSegment(ctx) == nil {
		return ctx, func(error) {}
	}
	subCtx, seg := xray.BeginSubsegment(ctx, name)
	if seg == nil {
		return ctx, func(error) {}
	}
	return subCtx, func(err error) { seg.Close(err) }
}

// AddAnnotation adds an annotation to the current segment.
func AddAnnotation(ctx context.Context, key string, value interface{}) {
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}
