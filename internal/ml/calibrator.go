package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Calibrator maps a raw model score to a probability-like value
type Calibrator interface {
	Method() string
	Calibrate(score float64) (float64, error)
}

// CalibratorArtifact is the on-disk form of a fitted calibrator
type CalibratorArtifact struct {
	Method  string          `json:"method"`
	Version string          `json:"version"`
	Params  json.RawMessage `json:"params"`
}

type isotonicParams struct {
	X []float64 `json:"x_thresholds"`
	Y []float64 `json:"y_thresholds"`
}

type plattParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// IsotonicCalibrator interpolates linearly between fitted thresholds and
// clamps outside them
type IsotonicCalibrator struct {
	x []float64
	y []float64
}

// NewIsotonicCalibrator validates the thresholds. x must be non-decreasing.
func NewIsotonicCalibrator(x, y []float64) (*IsotonicCalibrator, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("isotonic thresholds need equal non-zero lengths, got %d and %d: %w", len(x), len(y), ErrInvalidArtifact)
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			return nil, fmt.Errorf("isotonic threshold %d is NaN: %w", i, ErrInvalidArtifact)
		}
		if i > 0 && x[i] < x[i-1] {
			return nil, fmt.Errorf("isotonic thresholds are not sorted at %d: %w", i, ErrInvalidArtifact)
		}
	}
	return &IsotonicCalibrator{
		x: append([]float64(nil), x...),
		y: append([]float64(nil), y...),
	}, nil
}

// Method returns "isotonic"
func (c *IsotonicCalibrator) Method() string { return "isotonic" }

// Calibrate maps score through the fitted step function
func (c *IsotonicCalibrator) Calibrate(score float64) (float64, error) {
	if math.IsNaN(score) {
		CalibrationErrorsTotal.WithLabelValues(c.Method()).Inc()
		return 0, fmt.Errorf("score is NaN: %w", ErrCalibration)
	}

	last := len(c.x) - 1
	if score <= c.x[0] {
		return c.y[0], nil
	}
	if score >= c.x[last] {
		return c.y[last], nil
	}

	i := sort.SearchFloat64s(c.x, score)
	if c.x[i] == score || c.x[i] == c.x[i-1] {
		return c.y[i], nil
	}
	t := (score - c.x[i-1]) / (c.x[i] - c.x[i-1])
	return c.y[i-1] + t*(c.y[i]-c.y[i-1]), nil
}

// PlattCalibrator applies the logistic function to a*score + b
type PlattCalibrator struct {
	a float64
	b float64
}

// NewPlattCalibrator creates a sigmoid calibrator
func NewPlattCalibrator(a, b float64) (*PlattCalibrator, error) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return nil, fmt.Errorf("platt parameters must be finite: %w", ErrInvalidArtifact)
	}
	return &PlattCalibrator{a: a, b: b}, nil
}

// Method returns "platt"
func (c *PlattCalibrator) Method() string { return "platt" }

// Calibrate maps score through the sigmoid
func (c *PlattCalibrator) Calibrate(score float64) (float64, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		CalibrationErrorsTotal.WithLabelValues(c.Method()).Inc()
		return 0, fmt.Errorf("score %v is not finite: %w", score, ErrCalibration)
	}
	return 1 / (1 + math.Exp(-(c.a*score + c.b))), nil
}

// ParseCalibrator builds a calibrator from its JSON artifact
func ParseCalibrator(data []byte) (Calibrator, error) {
	var artifact CalibratorArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse calibrator: %v: %w", err, ErrInvalidArtifact)
	}

	switch artifact.Method {
	case "isotonic":
		var p isotonicParams
		if err := json.Unmarshal(artifact.Params, &p); err != nil {
			return nil, fmt.Errorf("failed to parse isotonic params: %v: %w", err, ErrInvalidArtifact)
		}
		return NewIsotonicCalibrator(p.X, p.Y)
	case "platt":
		var p plattParams
		if err := json.Unmarshal(artifact.Params, &p); err != nil {
			return nil, fmt.Errorf("failed to parse platt params: %v: %w", err, ErrInvalidArtifact)
		}
		return NewPlattCalibrator(p.A, p.B)
	default:
		return nil, fmt.Errorf("unknown calibration method %q: %w", artifact.Method, ErrInvalidArtifact)
	}
}

// LoadCalibrator reads a calibrator artifact from path
func LoadCalibrator(path string) (Calibrator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibrator: %w", err)
	}
	return ParseCalibrator(data)
}
