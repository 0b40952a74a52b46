// Package inference blends model scores into calibrated win probabilities and
// assembles ranked, sized predictions for a race.
package inference

import (
	"errors"
	"fmt"

	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/models"
)

var (
	// ErrRaceNotFound indicates the race id does not resolve in the store
	ErrRaceNotFound = fmt.Errorf("race not found: %w", models.ErrNotFound)

	// ErrInsufficientData indicates no entrant of the race could be featurized
	ErrInsufficientData = fmt.Errorf("insufficient data: %w", features.ErrNoFeatures)

	// ErrModelUnavailable indicates no scoring model is loaded or a model call failed
	ErrModelUnavailable = errors.New("model unavailable")
)

// outcome maps an engine error to the metrics outcome label
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRaceNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	default:
		return "error"
	}
}
