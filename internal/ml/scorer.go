package ml

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Scorer is an opaque scoring model. It returns one score per row; scores are
// only meaningful relative to other rows of the same race.
type Scorer interface {
	Name() string
	Score(ctx context.Context, rows [][]float64) ([]float64, error)
}

// kinded is implemented by scorers that report their transport kind
type kinded interface {
	Kind() string
}

func kindOf(s Scorer) string {
	if k, ok := s.(kinded); ok {
		return k.Kind()
	}
	return "custom"
}

// ScoreBatch calls s, records latency and failures, and checks the result has
// exactly one finite score per row
func ScoreBatch(ctx context.Context, s Scorer, rows [][]float64) ([]float64, error) {
	name, kind := s.Name(), kindOf(s)
	start := time.Now()

	scores, err := s.Score(ctx, rows)
	ScorerLatency.WithLabelValues(name, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		ScorerErrorsTotal.WithLabelValues(name, kind, "call_failed").Inc()
		return nil, fmt.Errorf("model %s: %w", name, err)
	}

	if len(scores) != len(rows) {
		ScorerErrorsTotal.WithLabelValues(name, kind, "length_mismatch").Inc()
		return nil, fmt.Errorf("model %s returned %d scores for %d rows: %w", name, len(scores), len(rows), ErrInvalidScores)
	}
	for i, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			ScorerErrorsTotal.WithLabelValues(name, kind, "non_finite").Inc()
			return nil, fmt.Errorf("model %s returned non-finite score at row %d: %w", name, i, ErrInvalidScores)
		}
	}

	return scores, nil
}
