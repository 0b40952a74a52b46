package inference

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/ml"
)

// fixedScorer returns the first len(rows) of its scores
type fixedScorer struct {
	name   string
	scores []float64
	err    error
}

func (s *fixedScorer) Name() string { return s.name }

func (s *fixedScorer) Score(_ context.Context, rows [][]float64) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]float64(nil), s.scores[:len(rows)]...), nil
}

// funcCalibrator applies fn to each score
type funcCalibrator struct {
	fn func(float64) (float64, error)
}

func (c funcCalibrator) Method() string { return "func" }

func (c funcCalibrator) Calibrate(score float64) (float64, error) { return c.fn(score) }

func identityCalibrator() ml.Calibrator {
	return funcCalibrator{fn: func(x float64) (float64, error) { return x, nil }}
}

func defaultEnsembleConfig() config.EnsembleConfig {
	return config.EnsembleConfig{
		PrimaryWeight:      0.6,
		SecondaryWeight:    0.4,
		SoftmaxTemperature: 1.0,
		FlatStdThreshold:   0.03,
		MinFieldSize:       8,
		MaxFieldSize:       18,
	}
}

func rowsOf(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{float64(i)}
	}
	return rows
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func TestBlend_RanksDeterministically(t *testing.T) {
	blended := Blend([]float64{0.8, 0.2, 0.5}, []float64{0.6, 0.4, 0.9}, 0.6, 0.4)
	assert.InDeltaSlice(t, []float64{0.76, 0, 0.70}, blended, 1e-9)

	order, ranks := Rank(blended)
	assert.Equal(t, []int{0, 2, 1}, order)
	assert.Equal(t, []int{1, 3, 2}, ranks)

	// With the model order swapped entrant 3 leads
	blended = Blend([]float64{0.6, 0.4, 0.9}, []float64{0.8, 0.2, 0.5}, 0.6, 0.4)
	assert.InDeltaSlice(t, []float64{0.64, 0, 0.80}, blended, 1e-9)

	order, _ = Rank(blended)
	assert.Equal(t, []int{2, 0, 1}, order)
}

func TestNormalize(t *testing.T) {
	assert.InDeltaSlice(t, []float64{1, 0, 0.5}, Normalize([]float64{0.8, 0.2, 0.5}), 1e-9)
	assert.Equal(t, []float64{0.3, 0.3}, Normalize([]float64{0.3, 0.3}))
	assert.Empty(t, Normalize(nil))

	in := []float64{2, 4}
	Normalize(in)
	assert.Equal(t, []float64{2, 4}, in, "input must not be modified")
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float64{1000, 1000}, 1.0)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, probs, 1e-12)

	probs = Softmax([]float64{2, 1, 0}, 1.0)
	assert.InDelta(t, 1.0, sum(probs), 1e-12)
	assert.Greater(t, probs[0], probs[1])
	assert.Greater(t, probs[1], probs[2])

	sharp := Softmax([]float64{2, 1, 0}, 0.5)
	assert.Greater(t, sharp[0], probs[0])
}

func TestRank_TiesKeepEntrantOrder(t *testing.T) {
	order, ranks := Rank([]float64{0.5, 0.9, 0.5, 0.9})
	assert.Equal(t, []int{1, 3, 0, 2}, order)
	assert.Equal(t, []int{3, 1, 4, 2}, ranks)
}

func TestCalibrate(t *testing.T) {
	probs, err := Calibrate(identityCalibrator(), []float64{0.2, 0.6})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, probs, 1e-12)

	_, err = Calibrate(nil, []float64{0.2})
	assert.Error(t, err)

	failing := funcCalibrator{fn: func(float64) (float64, error) { return 0, errors.New("boom") }}
	_, err = Calibrate(failing, []float64{0.2})
	assert.Error(t, err)

	negative := funcCalibrator{fn: func(x float64) (float64, error) { return -x, nil }}
	_, err = Calibrate(negative, []float64{0.2})
	assert.ErrorIs(t, err, ml.ErrCalibration)

	nan := funcCalibrator{fn: func(float64) (float64, error) { return math.NaN(), nil }}
	_, err = Calibrate(nan, []float64{0.2})
	assert.ErrorIs(t, err, ml.ErrCalibration)

	zero := funcCalibrator{fn: func(float64) (float64, error) { return 0, nil }}
	_, err = Calibrate(zero, []float64{0.2, 0.4})
	assert.ErrorIs(t, err, ml.ErrCalibration)
}

func TestEnsemble_SingleModelKeepsRawScores(t *testing.T) {
	scores := []float64{3.5, -1.0, 0.25}
	bundle := ml.NewBundle("v2-kelly", &fixedScorer{name: "lgb", scores: scores}, nil, nil)

	res, err := NewEnsembler(defaultEnsembleConfig()).Ensemble(context.Background(), bundle, rowsOf(3), nil)
	require.NoError(t, err)

	assert.Equal(t, "lgb_kelly", res.Method)
	assert.Equal(t, scores, res.Scores)
	assert.False(t, res.Calibrated)
	assert.InDelta(t, 1.0, sum(res.Probabilities), 1e-9)
	assert.Equal(t, []int{0, 2, 1}, res.Order)
}

func TestEnsemble_SecondaryOnlyIsPromoted(t *testing.T) {
	bundle := ml.NewBundle("v2-kelly", nil, &fixedScorer{name: "xgb", scores: []float64{0.1, 0.2}}, nil)

	res, err := NewEnsembler(defaultEnsembleConfig()).Ensemble(context.Background(), bundle, rowsOf(2), nil)
	require.NoError(t, err)
	assert.Equal(t, "xgb_kelly", res.Method)
}

func TestEnsemble_TwoModels(t *testing.T) {
	bundle := ml.NewBundle("v2-kelly",
		&fixedScorer{name: "lgb", scores: []float64{0.8, 0.2, 0.5}},
		&fixedScorer{name: "xgb", scores: []float64{0.6, 0.4, 0.9}},
		identityCalibrator(),
	)

	res, err := NewEnsembler(defaultEnsembleConfig()).Ensemble(context.Background(), bundle, rowsOf(3), []float64{2.0, 0, 4.0})
	require.NoError(t, err)

	assert.Equal(t, "ensemble_lgb_xgb_kelly", res.Method)
	assert.InDeltaSlice(t, []float64{0.76, 0, 0.70}, res.Scores, 1e-9)
	assert.Equal(t, []int{1, 3, 2}, res.Ranks)

	// Calibration runs on the primary model's raw scores
	assert.True(t, res.Calibrated)
	assert.InDeltaSlice(t, []float64{0.8 / 1.5, 0.2 / 1.5, 0.5 / 1.5}, res.Probabilities, 1e-9)
	assert.InDeltaSlice(t, []float64{2 * 0.8 / 1.5, 0, 4 * 0.5 / 1.5}, res.ExpectedValues, 1e-9)
}

func TestEnsemble_CalibrationFailureFallsBackToSoftmax(t *testing.T) {
	failing := funcCalibrator{fn: func(float64) (float64, error) { return 0, errors.New("out of range") }}
	bundle := ml.NewBundle("v2-kelly", &fixedScorer{name: "lgb", scores: []float64{1, 2, 3}}, nil, failing)

	res, err := NewEnsembler(defaultEnsembleConfig()).Ensemble(context.Background(), bundle, rowsOf(3), nil)
	require.NoError(t, err)

	assert.False(t, res.Calibrated)
	assert.Contains(t, res.FallbackReason, "out of range")
	assert.InDeltaSlice(t, Softmax([]float64{1, 2, 3}, 1.0), res.Probabilities, 1e-12)
}

func TestEnsemble_Flags(t *testing.T) {
	ensembler := NewEnsembler(defaultEnsembleConfig())
	ctx := context.Background()

	t.Run("small field", func(t *testing.T) {
		bundle := ml.NewBundle("v", &fixedScorer{name: "lgb", scores: []float64{5, 0, 0}}, nil, nil)
		res, err := ensembler.Ensemble(ctx, bundle, rowsOf(3), nil)
		require.NoError(t, err)
		require.Len(t, res.Flags, 1)
		assert.Equal(t, FlagFieldSizeOutlier, res.Flags[0].Kind)
		assert.Equal(t, "Num Horses Outlier (3)", res.Flags[0].Reason)
	})

	t.Run("flat distribution", func(t *testing.T) {
		scores := make([]float64, 10)
		bundle := ml.NewBundle("v", &fixedScorer{name: "lgb", scores: scores}, nil, nil)
		res, err := ensembler.Ensemble(ctx, bundle, rowsOf(10), nil)
		require.NoError(t, err)
		require.Len(t, res.Flags, 1)
		assert.Equal(t, FlagFlatDistribution, res.Flags[0].Kind)
		assert.Equal(t, "Flat Distribution (Std=0.000)", res.Flags[0].Reason)
	})

	t.Run("flat takes precedence", func(t *testing.T) {
		scores := make([]float64, 20)
		bundle := ml.NewBundle("v", &fixedScorer{name: "lgb", scores: scores}, nil, nil)
		res, err := ensembler.Ensemble(ctx, bundle, rowsOf(20), nil)
		require.NoError(t, err)
		require.Len(t, res.Flags, 2)
		assert.Equal(t, "Flat Distribution (Std=0.000)", res.CautionReason())
	})

	t.Run("clean race", func(t *testing.T) {
		scores := []float64{6, 5, 4, 3, 2, 1, 0, -1}
		bundle := ml.NewBundle("v", &fixedScorer{name: "lgb", scores: scores}, nil, nil)
		res, err := ensembler.Ensemble(ctx, bundle, rowsOf(8), nil)
		require.NoError(t, err)
		assert.Empty(t, res.Flags)
		assert.Empty(t, res.CautionReason())
	})
}

func TestEnsemble_Errors(t *testing.T) {
	ensembler := NewEnsembler(defaultEnsembleConfig())
	ctx := context.Background()

	_, err := ensembler.Ensemble(ctx, nil, rowsOf(3), nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = ensembler.Ensemble(ctx, ml.NewBundle("v", nil, nil, nil), rowsOf(3), nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	bundle := ml.NewBundle("v", &fixedScorer{name: "lgb", scores: []float64{1}}, nil, nil)
	_, err = ensembler.Ensemble(ctx, bundle, nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	down := ml.NewBundle("v", &fixedScorer{name: "remote", err: ml.ErrModelServerUnavailable}, nil, nil)
	_, err = ensembler.Ensemble(ctx, down, rowsOf(2), nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorIs(t, err, ml.ErrModelServerUnavailable)

	short := ml.NewBundle("v",
		&fixedScorer{name: "lgb", scores: []float64{1, 2}},
		&fixedScorer{name: "bad", scores: []float64{math.Inf(1), 2}},
		nil,
	)
	_, err = ensembler.Ensemble(ctx, short, rowsOf(2), nil)
	assert.ErrorIs(t, err, ml.ErrInvalidScores)
}
