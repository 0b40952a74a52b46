package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/betting"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/inference"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/repository"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakePredictor assigns fixed probabilities by horse number
type fakePredictor struct {
	store repository.HistoryStore
	probs map[int]float64
	err   error
	calls int
}

func (f *fakePredictor) Evaluate(ctx context.Context, race *models.Race, policy betting.Policy) (*inference.PredictionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	entrants, err := f.store.GetRaceEntrants(ctx, race.ID)
	if err != nil {
		return nil, err
	}
	if len(entrants) == 0 {
		return nil, inference.ErrInsufficientData
	}

	candidates := make([]betting.Candidate, len(entrants))
	for i, e := range entrants {
		candidates[i] = betting.Candidate{
			HorseID:     e.Horse.ID,
			HorseNumber: e.Entry.HorseNumber,
			Probability: f.probs[e.Entry.HorseNumber],
			Odds:        e.Entry.GetOdds(0),
		}
	}
	recs := policy.Evaluate(candidates)

	resp := &inference.PredictionResponse{RaceID: race.ExternalID, Policy: policy.Name()}
	for i, e := range entrants {
		resp.Predictions = append(resp.Predictions, inference.EntrantPrediction{
			HorseID:        e.Horse.ID,
			HorseName:      e.Horse.Name,
			HorseNumber:    e.Entry.HorseNumber,
			Odds:           candidates[i].Odds,
			Probability:    candidates[i].Probability,
			Rank:           i + 1,
			Recommendation: recs[i],
		})
	}
	return resp, nil
}

func testConfig() Config {
	return Config{
		StartDate:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		InitialBankroll: 100000,
		Kelly: config.KellyConfig{
			InitialBankroll: 100000,
			KellyFraction:   0.25,
			MaxBetFraction:  0.05,
			MinEdge:         0.20,
			MinProbability:  0.10,
			MaxProbability:  0.80,
			MinBet:          100,
			Denomination:    100,
			DrawdownFloor:   0.5,
		},
		Policies: config.PoliciesConfig{
			Default:     "kelly",
			FixedStake:  100,
			LowVariance: config.LowVarianceConfig{MaxOdds: 3.0, MinEV: 1.3},
			HighVolume:  config.HighVolumeConfig{MinEV: 1.15, MaxBets: 3},
			Diversified: config.DiversifiedConfig{MinEV: 1.25, PlaceMinProb: 0.25},
		},
	}
}

func twoHorseRace(id, date string, odds1, odds2 float64, winner int) repository.FixtureRace {
	finish := func(n int) *int {
		if winner == 0 {
			return nil
		}
		if n == winner {
			return intPtr(1)
		}
		return intPtr(2)
	}
	return repository.FixtureRace{
		RaceID: id, Date: date, Surface: "turf", Distance: 1600,
		Entries: []repository.FixtureEntry{
			{HorseID: "H1", HorseNumber: 1, Jockey: "Sato", Odds: floatPtr(odds1), FinishPosition: finish(1)},
			{HorseID: "H2", HorseNumber: 2, Jockey: "Kato", Odds: floatPtr(odds2), FinishPosition: finish(2)},
		},
	}
}

func seasonStore(t *testing.T) *repository.MemoryHistoryStore {
	t.Helper()
	fixture := &repository.Fixture{
		Horses: []repository.FixtureHorse{
			{HorseID: "H1", Name: "Alpha Comet", Sex: "male"},
			{HorseID: "H2", Name: "Blue Lantern", Sex: "female"},
		},
		Races: []repository.FixtureRace{
			twoHorseRace("202505010101", "2025-05-01", 3.0, 5.0, 1),
			twoHorseRace("202505150101", "2025-05-15", 3.0, 5.0, 2),
			twoHorseRace("202506010101", "2025-06-01", 3.0, 4.0, 1),
			{RaceID: "202506100101", Date: "2025-06-10", Surface: "dirt", Distance: 1200},
			twoHorseRace("202506200101", "2025-06-20", 3.0, 4.0, 0),
		},
	}
	store := repository.NewMemoryHistoryStore()
	if _, err := repository.Seed(context.Background(), store, fixture); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return store
}

func newTestEngine(t *testing.T, store repository.HistoryStore, predictor Predictor) *Engine {
	t.Helper()
	engine, err := NewEngine(testConfig(), store, predictor, quietLogger())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestHistoricalReplay(t *testing.T) {
	store := seasonStore(t)
	engine := newTestEngine(t, store, &fakePredictor{store: store, probs: map[int]float64{1: 0.5, 2: 0.1}})

	result, err := engine.HistoricalReplay(context.Background(), betting.PolicyKelly)
	if err != nil {
		t.Fatalf("HistoricalReplay failed: %v", err)
	}

	m := result.Metrics
	// 5000 won at 3.0, 5500 lost, 5200 won at 3.0
	if m.FinalBankroll != 114900 {
		t.Fatalf("expected final bankroll 114900, got %d", m.FinalBankroll)
	}
	if m.TotalBets != 3 || m.WinningBets != 2 {
		t.Fatalf("expected 3 bets with 2 wins, got %d/%d", m.TotalBets, m.WinningBets)
	}
	if m.TotalStaked != 15700 || m.TotalReturned != 30600 {
		t.Fatalf("unexpected staked/returned %d/%d", m.TotalStaked, m.TotalReturned)
	}
	if m.RacesEvaluated != 3 || m.RacesSkipped != 2 {
		t.Fatalf("expected 3 evaluated and 2 skipped races, got %d/%d", m.RacesEvaluated, m.RacesSkipped)
	}
	if len(result.State.EquityCurve) != 4 {
		t.Fatalf("expected 4 equity points, got %d", len(result.State.EquityCurve))
	}
	if m.MaxDrawdown <= 0 {
		t.Fatalf("expected a drawdown after the losing race")
	}
	if len(m.Monthly) != 2 || m.Monthly[0].Month != "2025-05" || m.Monthly[0].Profit != 4500 {
		t.Fatalf("unexpected monthly breakdown: %+v", m.Monthly)
	}

	last := result.State.Bets[len(result.State.Bets)-1]
	if last.BankrollAfter != 114900 || last.HorseName != "Alpha Comet" {
		t.Fatalf("unexpected last bet: %+v", last)
	}
}

func TestSimulatePolicies_PredictsEachRaceOnce(t *testing.T) {
	store := seasonStore(t)
	predictor := &fakePredictor{store: store, probs: map[int]float64{1: 0.5, 2: 0.1}}
	engine := newTestEngine(t, store, predictor)

	results, err := engine.SimulatePolicies(context.Background())
	if err != nil {
		t.Fatalf("SimulatePolicies failed: %v", err)
	}
	if predictor.calls != 5 {
		t.Fatalf("expected one prediction per race, got %d", predictor.calls)
	}

	want := []string{betting.PolicyKelly, betting.PolicyLowVariance, betting.PolicyHighVolume, betting.PolicyDiversified, betting.PolicyFlat}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, name := range want {
		if results[i].Policy != name {
			t.Fatalf("result %d: expected %s, got %s", i, name, results[i].Policy)
		}
	}

	if results[0].Metrics.FinalBankroll != 114900 {
		t.Fatalf("kelly run diverged from single replay: %d", results[0].Metrics.FinalBankroll)
	}
	// Odds of 3.0 are not below the low-variance ceiling
	if results[1].Metrics.TotalBets != 0 {
		t.Fatalf("expected no low-variance bets, got %d", results[1].Metrics.TotalBets)
	}
	if results[4].Metrics.FinalBankroll != 100300 {
		t.Fatalf("expected flat baseline 100300, got %d", results[4].Metrics.FinalBankroll)
	}
}

func TestHistoricalReplay_DrawdownFloorStopsKelly(t *testing.T) {
	fixture := &repository.Fixture{
		Horses: []repository.FixtureHorse{
			{HorseID: "H1", Name: "Alpha Comet"},
			{HorseID: "H2", Name: "Blue Lantern"},
		},
	}
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		day := start.AddDate(0, 0, i)
		fixture.Races = append(fixture.Races, twoHorseRace(fmt.Sprintf("2025%04d", 500+i), day.Format("2006-01-02"), 3.0, 5.0, 2))
	}
	store := repository.NewMemoryHistoryStore()
	if _, err := repository.Seed(context.Background(), store, fixture); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	engine := newTestEngine(t, store, &fakePredictor{store: store, probs: map[int]float64{1: 0.5, 2: 0.1}})
	result, err := engine.HistoricalReplay(context.Background(), betting.PolicyKelly)
	if err != nil {
		t.Fatalf("HistoricalReplay failed: %v", err)
	}

	if !result.Metrics.Halted {
		t.Fatalf("expected the drawdown floor to halt betting")
	}
	if result.Metrics.TotalBets >= 20 {
		t.Fatalf("expected betting to stop before the last race, got %d bets", result.Metrics.TotalBets)
	}
	if result.Metrics.FinalBankroll >= 50000 {
		t.Fatalf("expected bankroll below the floor, got %d", result.Metrics.FinalBankroll)
	}
}

func TestRun_PredictorErrorAborts(t *testing.T) {
	store := seasonStore(t)
	engine := newTestEngine(t, store, &fakePredictor{store: store, err: inference.ErrModelUnavailable})

	_, err := engine.HistoricalReplay(context.Background(), betting.PolicyKelly)
	if !errors.Is(err, inference.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}

func TestRun_Validation(t *testing.T) {
	store := seasonStore(t)
	engine := newTestEngine(t, store, &fakePredictor{store: store})

	if _, err := engine.Run(context.Background(), testConfig().StartDate, testConfig().EndDate); err == nil {
		t.Fatalf("expected error without policies")
	}
	if _, err := engine.HistoricalReplay(context.Background(), "martingale"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid policy error, got %v", err)
	}
	if _, err := NewEngine(testConfig(), nil, &fakePredictor{}, nil); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewEngine(testConfig(), store, nil, nil); err == nil {
		t.Fatalf("expected error without predictor")
	}
}

func TestRun_Cancelled(t *testing.T) {
	store := seasonStore(t)
	engine := newTestEngine(t, store, &fakePredictor{store: store})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.HistoricalReplay(ctx, betting.PolicyFlat); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
