// Package ml loads and calls the scoring models and the probability calibrator.
package ml

import "errors"

var (
	// ErrModelServerUnavailable indicates a remote model server is unreachable
	ErrModelServerUnavailable = errors.New("model server unavailable")

	// ErrInvalidScores indicates a scorer returned the wrong number of scores or non-finite values
	ErrInvalidScores = errors.New("invalid scores from model")

	// ErrInvalidArtifact indicates a model or calibrator artifact could not be used
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrCalibration indicates the calibrator could not map a score
	ErrCalibration = errors.New("calibration failed")

	// ErrCircuitOpen indicates too many consecutive transport failures
	ErrCircuitOpen = errors.New("circuit breaker open")
)
