// Package betting converts calibrated win probabilities into stake
// recommendations under fractional Kelly and fixed-stake policies.
package betting

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/models"
)

// PolicyKelly is the name of the fractional Kelly policy
const PolicyKelly = "kelly"

// edgeTolerance absorbs float error so an edge of exactly MinEdge passes
const edgeTolerance = 1e-9

// Skip reasons reported on recommendations and metrics
const (
	ReasonSized            = "sized"
	ReasonProbabilityBand  = "probability_out_of_band"
	ReasonOddsTooShort     = "odds_too_short"
	ReasonEdgeBelowMinimum = "edge_below_minimum"
	ReasonNonPositiveKelly = "non_positive_kelly"
	ReasonBelowMinimumBet  = "below_minimum_bet"
	ReasonDrawdownFloor    = "drawdown_floor"
	ReasonNotSelected      = "not_selected"
	ReasonExpectedValueLow = "expected_value_below_minimum"
	ReasonOddsAboveCeiling = "odds_above_ceiling"
	ReasonPlaceNotSized    = "place_wager_not_sized"
)

// Candidate is one entrant offered to a policy
type Candidate struct {
	HorseID     uuid.UUID
	HorseNumber int
	Probability float64
	Odds        float64
}

// ExpectedValue returns probability × odds, zero without a market price
func (c Candidate) ExpectedValue() float64 {
	if c.Odds <= 0 {
		return 0
	}
	return c.Probability * c.Odds
}

// Sizing is the Kelly decision for one candidate
type Sizing struct {
	Stake         int64
	Decision      models.BetDecision
	KellyFraction float64 // full Kelly f*
	Fraction      float64 // after the multiplier and ceiling
	Edge          float64
	ExpectedValue float64
	Reason        string
}

// KellySizer sizes stakes as a capped fraction of the current bankroll.
// The bankroll is the only state that carries across races; a mutex
// serializes sizing against settlement.
type KellySizer struct {
	cfg config.KellyConfig

	mu       sync.Mutex
	bankroll decimal.Decimal
	initial  decimal.Decimal
}

// NewKellySizer creates a sizer. The drawdown floor is measured against
// cfg.InitialBankroll; bankroll is the current balance.
func NewKellySizer(cfg config.KellyConfig, bankroll int64) *KellySizer {
	initial := cfg.InitialBankroll
	if initial <= 0 {
		initial = bankroll
	}
	if cfg.Denomination <= 0 {
		cfg.Denomination = 1
	}
	return &KellySizer{
		cfg:      cfg,
		bankroll: decimal.NewFromInt(bankroll),
		initial:  decimal.NewFromInt(initial),
	}
}

// Name returns the policy name
func (k *KellySizer) Name() string { return PolicyKelly }

// Bankroll returns the current balance
func (k *KellySizer) Bankroll() int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.bankroll.IntPart()
}

// InitialBankroll returns the balance the drawdown floor is measured from
func (k *KellySizer) InitialBankroll() int64 {
	return k.initial.IntPart()
}

// Halted reports whether the balance is below the drawdown floor
func (k *KellySizer) Halted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.haltedLocked()
}

func (k *KellySizer) haltedLocked() bool {
	return k.bankroll.LessThan(k.initial.Mul(decimal.NewFromFloat(k.cfg.DrawdownFloor)))
}

// Settle applies a race's net result and returns the new balance
func (k *KellySizer) Settle(delta int64) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.bankroll = k.bankroll.Add(decimal.NewFromInt(delta))
	metrics.UpdateBankroll(k.bankroll.InexactFloat64())
	return k.bankroll.IntPart()
}

// Size computes the stake for one probability and decimal odds
func (k *KellySizer) Size(probability, odds float64) Sizing {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sizeLocked(probability, odds)
}

func (k *KellySizer) sizeLocked(p, odds float64) Sizing {
	s := Sizing{Decision: models.BetDecisionSkip}
	if odds > 0 {
		s.ExpectedValue = p * odds
		s.Edge = s.ExpectedValue - 1
	}

	if math.IsNaN(p) || p < k.cfg.MinProbability || p > k.cfg.MaxProbability {
		s.Reason = ReasonProbabilityBand
		return s
	}
	if math.IsNaN(odds) || odds <= 1.0 {
		s.Reason = ReasonOddsTooShort
		return s
	}

	b := odds - 1.0
	q := 1.0 - p
	s.KellyFraction = (b*p - q) / b

	if s.Edge < k.cfg.MinEdge-edgeTolerance {
		s.Reason = ReasonEdgeBelowMinimum
		return s
	}
	if s.KellyFraction <= 0 {
		s.Reason = ReasonNonPositiveKelly
		return s
	}

	s.Fraction = math.Min(s.KellyFraction*k.cfg.KellyFraction, k.cfg.MaxBetFraction)

	denom := decimal.NewFromInt(k.cfg.Denomination)
	amount := k.bankroll.Mul(decimal.NewFromFloat(s.Fraction)).Div(denom).Floor().Mul(denom)
	stake := amount.IntPart()
	if stake < 0 {
		stake = 0
	}

	if stake < k.cfg.MinBet || stake == 0 {
		s.Reason = ReasonBelowMinimumBet
		return s
	}
	if k.haltedLocked() {
		s.Reason = ReasonDrawdownFloor
		return s
	}

	s.Stake = stake
	s.Decision = models.BetDecisionBuy
	s.Reason = ReasonSized
	return s
}

// Evaluate sizes every candidate against the same bankroll snapshot and
// returns one recommendation per candidate in input order
func (k *KellySizer) Evaluate(candidates []Candidate) []models.BetRecommendation {
	k.mu.Lock()
	defer k.mu.Unlock()

	recs := make([]models.BetRecommendation, len(candidates))
	for i, c := range candidates {
		s := k.sizeLocked(c.Probability, c.Odds)
		recs[i] = models.BetRecommendation{
			HorseID:       c.HorseID,
			HorseNumber:   c.HorseNumber,
			WagerType:     models.WagerTypeWin,
			Decision:      s.Decision,
			Stake:         s.Stake,
			Probability:   c.Probability,
			Odds:          c.Odds,
			ExpectedValue: s.ExpectedValue,
			Edge:          s.Edge,
			KellyFraction: s.KellyFraction,
			Policy:        PolicyKelly,
			Reason:        s.Reason,
		}
		metrics.RecordStakeDecision(PolicyKelly, string(s.Decision), s.Reason, s.Stake)
	}
	return recs
}
