package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/ml"
)

// methodSuffix names the sizing stage appended to every method label
const methodSuffix = "_kelly"

// calibrationSumFloor guards the renormalization divisor
const calibrationSumFloor = 1e-9

// FlagKind identifies an advisory anomaly
type FlagKind string

const (
	FlagFlatDistribution FlagKind = "flat_distribution"
	FlagFieldSizeOutlier FlagKind = "field_size_outlier"
)

// Flag is an advisory anomaly raised for a race. Flags never change a
// decision; they annotate it.
type Flag struct {
	Kind   FlagKind `json:"kind"`
	Reason string   `json:"reason"`
}

// EnsembleResult holds the blended scores and probabilities of one race, all
// indexed by entrant position
type EnsembleResult struct {
	Method         string
	Scores         []float64
	Probabilities  []float64
	ExpectedValues []float64
	// Order lists entrant indices best first; Ranks[i] is the 1-based rank of entrant i
	Order          []int
	Ranks          []int
	Calibrated     bool
	FallbackReason string
	Flags          []Flag
}

// CautionReason returns the reason shown next to buy marks. A flat
// distribution takes precedence over a field size outlier.
func (r *EnsembleResult) CautionReason() string {
	for _, kind := range []FlagKind{FlagFlatDistribution, FlagFieldSizeOutlier} {
		for _, f := range r.Flags {
			if f.Kind == kind {
				return f.Reason
			}
		}
	}
	return ""
}

// Ensembler blends scoring model outputs and turns them into probabilities
type Ensembler struct {
	cfg config.EnsembleConfig
}

// NewEnsembler creates an ensembler. A non-positive temperature is treated as 1.
func NewEnsembler(cfg config.EnsembleConfig) *Ensembler {
	if cfg.SoftmaxTemperature <= 0 {
		cfg.SoftmaxTemperature = 1.0
	}
	return &Ensembler{cfg: cfg}
}

// Ensemble scores rows with every model in bundle, blends, calibrates, ranks
// and flags the result. odds may be nil; missing or non-positive odds give an
// expected value of zero.
func (e *Ensembler) Ensemble(ctx context.Context, bundle *ml.Bundle, rows [][]float64, odds []float64) (*EnsembleResult, error) {
	if !bundle.Ready() {
		return nil, ErrModelUnavailable
	}
	if len(rows) == 0 {
		return nil, ErrInsufficientData
	}

	primary, err := ml.ScoreBatch(ctx, bundle.Primary(), rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	result := &EnsembleResult{}
	if secondary := bundle.Secondary(); secondary != nil {
		secondaryScores, err := ml.ScoreBatch(ctx, secondary, rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		result.Scores = Blend(primary, secondaryScores, e.cfg.PrimaryWeight, e.cfg.SecondaryWeight)
		result.Method = "ensemble_" + bundle.Primary().Name() + "_" + secondary.Name() + methodSuffix
	} else {
		result.Scores = append([]float64(nil), primary...)
		result.Method = bundle.Primary().Name() + methodSuffix
	}

	probs, err := Calibrate(bundle.Calibrator(), primary)
	if err != nil {
		result.FallbackReason = err.Error()
		probs = Softmax(result.Scores, e.cfg.SoftmaxTemperature)
		metrics.RecordCalibrationFallback()
	} else {
		result.Calibrated = true
	}
	result.Probabilities = probs

	result.ExpectedValues = make([]float64, len(probs))
	for i := range probs {
		if i < len(odds) && odds[i] > 0 {
			result.ExpectedValues[i] = probs[i] * odds[i]
		}
	}

	result.Order, result.Ranks = Rank(result.Scores)
	result.Flags = e.detectAnomalies(probs)
	for _, f := range result.Flags {
		metrics.RecordAnomalyFlag(string(f.Kind))
	}

	return result, nil
}

func (e *Ensembler) detectAnomalies(probs []float64) []Flag {
	var flags []Flag
	if std := populationStd(probs); std < e.cfg.FlatStdThreshold {
		flags = append(flags, Flag{
			Kind:   FlagFlatDistribution,
			Reason: fmt.Sprintf("Flat Distribution (Std=%.3f)", std),
		})
	}
	if n := len(probs); n < e.cfg.MinFieldSize || n > e.cfg.MaxFieldSize {
		flags = append(flags, Flag{
			Kind:   FlagFieldSizeOutlier,
			Reason: fmt.Sprintf("Num Horses Outlier (%d)", n),
		})
	}
	return flags
}

// Normalize min-max scales scores into [0, 1]. A constant vector is returned
// unchanged.
func Normalize(scores []float64) []float64 {
	out := append([]float64(nil), scores...)
	if len(out) == 0 {
		return out
	}
	lo, hi := out[0], out[0]
	for _, v := range out[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return out
	}
	for i, v := range out {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// Blend normalizes both score vectors and combines them with the given weights
func Blend(primary, secondary []float64, primaryWeight, secondaryWeight float64) []float64 {
	a, b := Normalize(primary), Normalize(secondary)
	out := make([]float64, len(a))
	for i := range a {
		out[i] = primaryWeight*a[i] + secondaryWeight*b[i]
	}
	return out
}

// Softmax converts scores to probabilities with max-shift for stability
func Softmax(scores []float64, temperature float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	if temperature <= 0 {
		temperature = 1.0
	}
	hi := scores[0]
	for _, v := range scores[1:] {
		hi = math.Max(hi, v)
	}
	var sum float64
	for i, v := range scores {
		out[i] = math.Exp((v - hi) / temperature)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

var errNoCalibrator = errors.New("no calibrator loaded")

// Calibrate maps raw scores through the calibrator and renormalizes them to
// sum to one. Any calibrator failure, non-finite or negative output, or a
// zero total is returned as an error so the caller can fall back to softmax.
func Calibrate(cal ml.Calibrator, raw []float64) ([]float64, error) {
	if cal == nil {
		return nil, errNoCalibrator
	}

	out := make([]float64, len(raw))
	var sum float64
	for i, v := range raw {
		p, err := cal.Calibrate(v)
		if err != nil {
			ml.CalibrationErrorsTotal.WithLabelValues(cal.Method()).Inc()
			return nil, fmt.Errorf("calibrate entrant %d: %w", i, err)
		}
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			ml.CalibrationErrorsTotal.WithLabelValues(cal.Method()).Inc()
			return nil, fmt.Errorf("calibrated value %v at entrant %d: %w", p, i, ml.ErrCalibration)
		}
		out[i] = p
		sum += p
	}

	if sum < calibrationSumFloor {
		return nil, fmt.Errorf("calibrated probabilities sum to %v: %w", sum, ml.ErrCalibration)
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

// Rank orders entrants by score descending; equal scores keep entrant order
func Rank(scores []float64) (order []int, ranks []int) {
	order = make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranks = make([]int, len(scores))
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return order, ranks
}

func populationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}
