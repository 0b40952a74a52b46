package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// LinearArtifact is the on-disk form of a linear scoring model. Weights are
// keyed by feature name so an artifact survives column reordering.
type LinearArtifact struct {
	Name      string             `json:"name"`
	Version   string             `json:"version"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
}

// LinearScorer scores rows as intercept + w·x
type LinearScorer struct {
	name      string
	version   string
	intercept float64
	weights   []float64
}

// NewLinearScorer resolves the artifact's named weights against the feature
// column order. Features the artifact does not mention get weight zero; a
// weight for an unknown feature is an error.
func NewLinearScorer(artifact LinearArtifact, featureNames []string) (*LinearScorer, error) {
	if artifact.Name == "" {
		return nil, fmt.Errorf("linear artifact has no name: %w", ErrInvalidArtifact)
	}
	if len(artifact.Weights) == 0 {
		return nil, fmt.Errorf("linear artifact %s has no weights: %w", artifact.Name, ErrInvalidArtifact)
	}

	column := make(map[string]int, len(featureNames))
	for i, n := range featureNames {
		column[n] = i
	}

	weights := make([]float64, len(featureNames))
	for feature, w := range artifact.Weights {
		idx, ok := column[feature]
		if !ok {
			return nil, fmt.Errorf("linear artifact %s weights unknown feature %q: %w", artifact.Name, feature, ErrInvalidArtifact)
		}
		weights[idx] = w
	}

	return &LinearScorer{
		name:      artifact.Name,
		version:   artifact.Version,
		intercept: artifact.Intercept,
		weights:   weights,
	}, nil
}

// LoadLinearScorer reads a JSON artifact from path
func LoadLinearScorer(path string, featureNames []string) (*LinearScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read linear artifact: %w", err)
	}

	var artifact LinearArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse linear artifact %s: %v: %w", path, err, ErrInvalidArtifact)
	}

	return NewLinearScorer(artifact, featureNames)
}

// Name returns the model name
func (s *LinearScorer) Name() string { return s.name }

// Kind returns the scorer kind
func (s *LinearScorer) Kind() string { return "linear" }

// Version returns the artifact version
func (s *LinearScorer) Version() string { return s.version }

// Score computes one score per row
func (s *LinearScorer) Score(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.weights) {
			return nil, fmt.Errorf("row %d has %d features, model %s expects %d: %w", i, len(row), s.name, len(s.weights), ErrInvalidScores)
		}
		score := s.intercept
		for j, w := range s.weights {
			score += w * row[j]
		}
		scores[i] = score
	}
	return scores, nil
}
