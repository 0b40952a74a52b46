package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/betting"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/repository"
	"github.com/yourusername/race-edge/internal/tracing"
)

// EntrantPrediction is one ranked entrant of a race prediction
type EntrantPrediction struct {
	HorseID        uuid.UUID                `json:"horse_id"`
	HorseName      string                   `json:"horse_name"`
	HorseNumber    int                      `json:"horse_number"`
	Odds           float64                  `json:"odds,omitempty"`
	Score          float64                  `json:"score"`
	Probability    float64                  `json:"probability"`
	ExpectedValue  float64                  `json:"expected_value"`
	Rank           int                      `json:"rank"`
	Mark           string                   `json:"mark"`
	Recommendation models.BetRecommendation `json:"recommendation"`
}

// PredictionResponse is the full prediction for one race, entrants best first
type PredictionResponse struct {
	RaceID       string              `json:"race_id"`
	RaceName     string              `json:"race_name,omitempty"`
	RaceDate     time.Time           `json:"race_date"`
	Predictions  []EntrantPrediction `json:"predictions"`
	Method       string              `json:"method"`
	ModelVersion string              `json:"model_version"`
	Policy       string              `json:"policy"`
	Calibrated   bool                `json:"calibrated"`
	Flags        []Flag              `json:"flags,omitempty"`
	Bankroll     int64               `json:"bankroll"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// Buys returns the entrants with a placed stake
func (r *PredictionResponse) Buys() []EntrantPrediction {
	var out []EntrantPrediction
	for _, p := range r.Predictions {
		if p.Recommendation.IsBuy() {
			out = append(out, p)
		}
	}
	return out
}

// Candidates returns the entrants as stake policy input, best first
func (r *PredictionResponse) Candidates() []betting.Candidate {
	out := make([]betting.Candidate, len(r.Predictions))
	for i, p := range r.Predictions {
		out[i] = betting.Candidate{
			HorseID:     p.HorseID,
			HorseNumber: p.HorseNumber,
			Probability: p.Probability,
			Odds:        p.Odds,
		}
	}
	return out
}

// Engine runs the prediction pipeline: store lookup, features, ensemble,
// stake sizing
type Engine struct {
	store     repository.HistoryStore
	builder   *features.Builder
	bundles   BundleSource
	ensembler *Ensembler
	kelly     config.KellyConfig
	predLog   *logger.PredictionLogger
	logger    logrus.FieldLogger
}

// NewEngine creates a prediction engine
func NewEngine(
	store repository.HistoryStore,
	bundles BundleSource,
	ensemble config.EnsembleConfig,
	kelly config.KellyConfig,
	log logrus.FieldLogger,
) *Engine {
	return &Engine{
		store:     store,
		builder:   features.NewBuilder(store, log),
		bundles:   bundles,
		ensembler: NewEnsembler(ensemble),
		kelly:     kelly,
		predLog:   logger.NewPredictionLogger(log),
		logger:    log,
	}
}

// PredictRace predicts a race by its external id, sizing stakes with
// fractional Kelly against bankroll. A non-positive bankroll uses the
// configured initial bankroll.
func (e *Engine) PredictRace(ctx context.Context, externalRaceID string, bankroll int64) (*PredictionResponse, error) {
	start := time.Now()

	resp, err := e.predictRace(ctx, externalRaceID, bankroll)

	method := ""
	if resp != nil {
		method = resp.Method
	}
	metrics.RecordPrediction(method, outcome(err), time.Since(start).Seconds())
	return resp, err
}

func (e *Engine) predictRace(ctx context.Context, externalRaceID string, bankroll int64) (resp *PredictionResponse, err error) {
	ctx, end := tracing.StartSubsegment(ctx, "predict_race")
	defer func() { end(err) }()
	tracing.AddAnnotation(ctx, "race_id", externalRaceID)

	if externalRaceID == "" {
		return nil, fmt.Errorf("empty race id: %w", models.ErrInvalidInput)
	}

	race, err := e.store.GetRace(ctx, externalRaceID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("race %s: %w", externalRaceID, ErrRaceNotFound)
		}
		return nil, fmt.Errorf("failed to load race %s: %w", externalRaceID, err)
	}

	if bankroll <= 0 {
		bankroll = e.kelly.InitialBankroll
	}
	sizer := betting.NewKellySizer(e.kelly, bankroll)

	return e.Evaluate(ctx, race, sizer)
}

// Evaluate predicts an already loaded race and applies policy to the
// calibrated probabilities. Stateful policies such as a backtest's Kelly
// sizer are read but not settled.
func (e *Engine) Evaluate(ctx context.Context, race *models.Race, policy betting.Policy) (*PredictionResponse, error) {
	if race == nil {
		return nil, fmt.Errorf("nil race: %w", models.ErrInvalidInput)
	}
	start := time.Now()

	entrants, err := e.store.GetRaceEntrants(ctx, race.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entrants for race %s: %w", race.ExternalID, err)
	}

	rf, err := e.builder.BuildRace(ctx, race, entrants)
	if err != nil {
		if errors.Is(err, features.ErrNoFeatures) {
			return nil, fmt.Errorf("race %s: %w", race.ExternalID, ErrInsufficientData)
		}
		return nil, err
	}

	// Held for the whole request so a reload cannot mix models mid-race
	bundle := e.bundles.Current()

	odds := make([]float64, rf.Len())
	for i, row := range rf.Rows {
		odds[i] = row.Odds
	}

	res, err := e.ensembler.Ensemble(ctx, bundle, rf.Matrix(), odds)
	if err != nil {
		return nil, fmt.Errorf("race %s: %w", race.ExternalID, err)
	}

	if !res.Calibrated {
		if bundle.Calibrator() != nil {
			e.predLog.LogCalibrationFallback(race.ExternalID, res.FallbackReason)
		} else {
			e.logger.WithField("race_id", race.ExternalID).Debug("No calibrator loaded, using softmax probabilities")
		}
	}
	for _, f := range res.Flags {
		e.predLog.LogAnomaly(race.ExternalID, string(f.Kind), f.Reason)
	}

	candidates := make([]betting.Candidate, rf.Len())
	for i, row := range rf.Rows {
		candidates[i] = betting.Candidate{
			HorseID:     row.HorseID,
			HorseNumber: row.HorseNumber,
			Probability: res.Probabilities[i],
			Odds:        row.Odds,
		}
	}
	recs := policy.Evaluate(candidates)

	resp := &PredictionResponse{
		RaceID:       race.ExternalID,
		RaceName:     race.Name,
		RaceDate:     race.Date,
		Predictions:  make([]EntrantPrediction, 0, rf.Len()),
		Method:       res.Method,
		ModelVersion: bundle.Version(),
		Policy:       policy.Name(),
		Calibrated:   res.Calibrated,
		Flags:        res.Flags,
		GeneratedAt:  time.Now().UTC(),
	}
	if k, ok := policy.(*betting.KellySizer); ok {
		resp.Bankroll = k.Bankroll()
	}

	caution := res.CautionReason()
	for _, idx := range res.Order {
		row := rf.Rows[idx]
		rec := recs[idx]
		resp.Predictions = append(resp.Predictions, EntrantPrediction{
			HorseID:        row.HorseID,
			HorseName:      row.HorseName,
			HorseNumber:    row.HorseNumber,
			Odds:           row.Odds,
			Score:          res.Scores[idx],
			Probability:    res.Probabilities[idx],
			ExpectedValue:  res.ExpectedValues[idx],
			Rank:           res.Ranks[idx],
			Mark:           Mark(rec, caution),
			Recommendation: rec,
		})
		e.predLog.LogBetDecision(race.ExternalID, rec.HorseNumber, string(rec.Decision),
			rec.Probability, rec.Odds, rec.Edge, rec.KellyFraction, rec.Stake, rec.Reason)
	}

	e.predLog.LogRaceEvaluation(race.ExternalID, resp.Method, resp.ModelVersion,
		len(resp.Predictions), len(resp.Buys()), float64(time.Since(start).Microseconds())/1000)

	return resp, nil
}

// Mark renders the display mark of a recommendation: "BUY ¥<stake>" for a
// placed stake, with the caution reason appended when one is given
func Mark(rec models.BetRecommendation, caution string) string {
	if !rec.IsBuy() {
		return ""
	}
	mark := fmt.Sprintf("BUY ¥%d", rec.Stake)
	if caution != "" {
		mark += " (CAUTION: " + caution + ")"
	}
	return mark
}
