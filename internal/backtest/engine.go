// Package backtest replays historical races through the prediction engine and
// settles the recommended stakes against confirmed finishes.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/betting"
	"github.com/yourusername/race-edge/internal/inference"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/repository"
)

// Predictor evaluates one race under a stake policy
type Predictor interface {
	Evaluate(ctx context.Context, race *models.Race, policy betting.Policy) (*inference.PredictionResponse, error)
}

// Result is the outcome of replaying one policy
type Result struct {
	Policy  string  `json:"policy"`
	State   *State  `json:"-"`
	Metrics Metrics `json:"metrics"`
}

// run pairs a policy with its replay state
type run struct {
	policy betting.Policy
	kelly  *betting.KellySizer
	state  *State
}

// Engine orchestrates backtesting runs
type Engine struct {
	config    Config
	store     repository.HistoryStore
	predictor Predictor
	logger    logrus.FieldLogger
	audit     *logger.AuditLogger
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg Config, store repository.HistoryStore, predictor Predictor, log logrus.FieldLogger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if predictor == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	if log == nil {
		log = logrus.New()
	}

	return &Engine{
		config:    cfg,
		store:     store,
		predictor: predictor,
		logger:    log,
		audit:     logger.NewAuditLogger(log),
	}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() Config {
	return e.config
}

// HistoricalReplay replays the configured date range under one policy
func (e *Engine) HistoricalReplay(ctx context.Context, policy string) (Result, error) {
	results, err := e.Run(ctx, e.config.StartDate, e.config.EndDate, policy)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// SimulatePolicies replays the configured date range under the Kelly policy
// and every fixed-stake policy side by side, the flat baseline last
func (e *Engine) SimulatePolicies(ctx context.Context) ([]Result, error) {
	names := []string{betting.PolicyKelly}
	for _, p := range betting.AlternativePolicies(e.config.Policies) {
		names = append(names, p.Name())
	}
	return e.Run(ctx, e.config.StartDate, e.config.EndDate, names...)
}

// Run replays races between start and end in chronological order. Each race
// is predicted once; every policy sizes its stakes from the same
// probabilities against its own bankroll, which moves once per race.
func (e *Engine) Run(ctx context.Context, start, end time.Time, policies ...string) ([]Result, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("at least one policy is required")
	}

	mode := "replay"
	if len(policies) > 1 {
		mode = "simulation"
	}
	began := time.Now()

	results, err := e.run(ctx, start, end, policies)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordBacktestRun(mode, status, time.Since(began).Seconds())
	return results, err
}

func (e *Engine) run(ctx context.Context, start, end time.Time, policies []string) ([]Result, error) {
	runs := make([]*run, len(policies))
	for i, name := range policies {
		policy, err := e.config.NewPolicy(name)
		if err != nil {
			return nil, err
		}
		r := &run{policy: policy, state: NewState(name, e.config.InitialBankroll, start)}
		r.kelly, _ = policy.(*betting.KellySizer)
		runs[i] = r
	}

	e.logger.WithFields(logrus.Fields{
		"start":    start.Format("2006-01-02"),
		"end":      end.Format("2006-01-02"),
		"policies": policies,
	}).Info("Starting backtest run")

	races, err := e.store.GetRacesByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load races: %w", err)
	}

	for _, race := range races {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.processRace(ctx, race, runs); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(runs))
	for i, r := range runs {
		m := CalculateMetrics(r.state, e.config)
		m.StartDate, m.EndDate = start, end
		metrics.UpdateBacktestROI(r.state.Policy, m.ROI)
		results[i] = Result{Policy: r.state.Policy, State: r.state, Metrics: m}
	}

	e.logger.WithFields(logrus.Fields{
		"races":    len(races),
		"policies": policies,
	}).Info("Backtest run completed")

	return results, nil
}

func (e *Engine) processRace(ctx context.Context, race *models.Race, runs []*run) error {
	resp, err := e.predictor.Evaluate(ctx, race, runs[0].policy)
	if err != nil {
		if errors.Is(err, inference.ErrInsufficientData) {
			e.logger.WithField("race_id", race.ExternalID).Debug("Skipping race without featurizable entrants")
			skipAll(runs)
			return nil
		}
		return fmt.Errorf("prediction failed for race %s: %w", race.ExternalID, err)
	}

	entrants, err := e.store.GetRaceEntrants(ctx, race.ID)
	if err != nil {
		return fmt.Errorf("failed to load result for race %s: %w", race.ExternalID, err)
	}
	winners, settled := winnersOf(entrants)
	if !settled {
		e.logger.WithField("race_id", race.ExternalID).Debug("Skipping race without a confirmed finish")
		skipAll(runs)
		return nil
	}

	for i, r := range runs {
		if r.state.Halted && r.kelly == nil {
			r.state.ApplyRace(race.ExternalID, race.Date, nil)
			continue
		}

		var recs []models.BetRecommendation
		if i == 0 {
			for _, p := range resp.Predictions {
				recs = append(recs, p.Recommendation)
			}
		} else {
			recs = r.policy.Evaluate(resp.Candidates())
		}

		bets := settle(race, resp, recs, winners)
		delta := r.state.ApplyRace(race.ExternalID, race.Date, bets)
		for _, bet := range bets {
			e.audit.LogSettlement(bet.RaceID, bet.HorseNumber, bet.Policy, bet.Stake, bet.Payout, bet.BankrollAfter, race.Date)
		}

		if r.kelly != nil {
			r.kelly.Settle(delta)
			if r.kelly.Halted() && !r.state.Halted {
				r.state.Halted = true
				e.audit.LogDrawdownFloor(r.kelly.Bankroll(), r.kelly.InitialBankroll(), e.config.Kelly.DrawdownFloor)
			}
		} else if r.state.CurrentBankroll < e.config.Policies.FixedStake {
			r.state.Halted = true
		}
	}

	return nil
}

func skipAll(runs []*run) {
	for _, r := range runs {
		r.state.RacesSkipped++
	}
}

// winnersOf returns the horses that finished first. A race counts as settled
// once any entrant has a confirmed finish.
func winnersOf(entrants []*models.Entrant) (map[uuid.UUID]bool, bool) {
	winners := make(map[uuid.UUID]bool)
	settled := false
	for _, e := range entrants {
		if e == nil || e.Entry == nil || !e.Entry.HasFinished() {
			continue
		}
		settled = true
		if *e.Entry.FinishPosition == 1 {
			winners[e.Entry.HorseID] = true
		}
	}
	return winners, settled
}

// settle turns the BUY recommendations of one race into settled bets. A win
// returns stake × odds.
func settle(race *models.Race, resp *inference.PredictionResponse, recs []models.BetRecommendation, winners map[uuid.UUID]bool) []*SettledBet {
	names := make(map[uuid.UUID]string, len(resp.Predictions))
	for _, p := range resp.Predictions {
		names[p.HorseID] = p.HorseName
	}

	var bets []*SettledBet
	for i := range recs {
		rec := &recs[i]
		if !rec.IsBuy() {
			continue
		}
		won := winners[rec.HorseID]
		bets = append(bets, &SettledBet{
			RaceID:      race.ExternalID,
			RaceDate:    race.Date,
			HorseID:     rec.HorseID,
			HorseNumber: rec.HorseNumber,
			HorseName:   names[rec.HorseID],
			Policy:      rec.Policy,
			Stake:       rec.Stake,
			Odds:        rec.Odds,
			Probability: rec.Probability,
			Won:         won,
			Payout:      rec.Payout(won),
			ProfitLoss:  rec.ProfitLoss(won),
		})
	}
	return bets
}
