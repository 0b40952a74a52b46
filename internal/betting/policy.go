package betting

import (
	"fmt"
	"sort"

	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/models"
)

// Policy names
const (
	PolicyLowVariance = "low_variance"
	PolicyHighVolume  = "high_volume"
	PolicyDiversified = "diversified"
	PolicyFlat        = "flat"
)

// Policy turns candidates into one recommendation per candidate, in input order
type Policy interface {
	Name() string
	Evaluate(candidates []Candidate) []models.BetRecommendation
}

// LowVariance bets a fixed stake on the single best-EV short-priced entrant
type LowVariance struct {
	MaxOdds float64
	MinEV   float64
	Stake   int64
}

// Name returns the policy name
func (p LowVariance) Name() string { return PolicyLowVariance }

// Evaluate picks at most one entrant with odds below MaxOdds and EV above MinEV
func (p LowVariance) Evaluate(candidates []Candidate) []models.BetRecommendation {
	recs := skipAll(p.Name(), candidates, ReasonExpectedValueLow)

	best := -1
	for i, c := range candidates {
		switch {
		case c.Odds <= 1.0:
			recs[i].Reason = ReasonOddsTooShort
			continue
		case c.Odds >= p.MaxOdds:
			recs[i].Reason = ReasonOddsAboveCeiling
			continue
		case c.ExpectedValue() <= p.MinEV:
			continue
		}
		recs[i].Reason = ReasonNotSelected
		if best < 0 || c.ExpectedValue() > candidates[best].ExpectedValue() {
			best = i
		}
	}

	if best >= 0 {
		buy(&recs[best], p.Stake)
	}
	return record(recs)
}

// HighVolume bets a fixed stake on up to MaxBets entrants ranked by EV
type HighVolume struct {
	MinEV   float64
	MaxBets int
	Stake   int64
}

// Name returns the policy name
func (p HighVolume) Name() string { return PolicyHighVolume }

// Evaluate keeps entrants with EV above MinEV and buys the best MaxBets
func (p HighVolume) Evaluate(candidates []Candidate) []models.BetRecommendation {
	recs := skipAll(p.Name(), candidates, ReasonExpectedValueLow)

	var eligible []int
	for i, c := range candidates {
		if c.Odds <= 1.0 {
			recs[i].Reason = ReasonOddsTooShort
			continue
		}
		if c.ExpectedValue() > p.MinEV {
			recs[i].Reason = ReasonNotSelected
			eligible = append(eligible, i)
		}
	}

	sort.SliceStable(eligible, func(a, b int) bool {
		return candidates[eligible[a]].ExpectedValue() > candidates[eligible[b]].ExpectedValue()
	})
	for n, idx := range eligible {
		if n >= p.MaxBets {
			break
		}
		buy(&recs[idx], p.Stake)
	}
	return record(recs)
}

// Diversified bets the best-EV entrant and flags place-wager eligibility
// without sizing it
type Diversified struct {
	MinEV        float64
	PlaceMinProb float64
	Stake        int64
}

// Name returns the policy name
func (p Diversified) Name() string { return PolicyDiversified }

// Evaluate buys the single best-EV entrant when its EV reaches MinEV
func (p Diversified) Evaluate(candidates []Candidate) []models.BetRecommendation {
	recs := skipAll(p.Name(), candidates, ReasonExpectedValueLow)

	best := -1
	for i, c := range candidates {
		if c.Odds <= 1.0 {
			recs[i].Reason = ReasonOddsTooShort
			continue
		}
		if c.Probability >= p.PlaceMinProb {
			recs[i].PlaceEligible = true
		}
		if best < 0 || c.ExpectedValue() > candidates[best].ExpectedValue() {
			best = i
		}
	}

	for i := range recs {
		if recs[i].PlaceEligible {
			recs[i].Reason = ReasonPlaceNotSized
		}
	}
	if best >= 0 && candidates[best].ExpectedValue() >= p.MinEV {
		buy(&recs[best], p.Stake)
	}
	return record(recs)
}

// Flat bets a fixed stake on the most probable entrant. It is the baseline
// the other policies are compared against.
type Flat struct {
	Stake int64
}

// Name returns the policy name
func (p Flat) Name() string { return PolicyFlat }

// Evaluate buys the highest-probability entrant
func (p Flat) Evaluate(candidates []Candidate) []models.BetRecommendation {
	recs := skipAll(p.Name(), candidates, ReasonNotSelected)

	best := -1
	for i, c := range candidates {
		if best < 0 || c.Probability > candidates[best].Probability {
			best = i
		}
	}
	if best >= 0 {
		buy(&recs[best], p.Stake)
	}
	return record(recs)
}

// PolicyByName builds the named policy. The Kelly policy is the given sizer.
func PolicyByName(name string, cfg config.PoliciesConfig, kelly *KellySizer) (Policy, error) {
	switch name {
	case PolicyKelly:
		if kelly == nil {
			return nil, fmt.Errorf("kelly policy requires a sizer: %w", models.ErrInvalidInput)
		}
		return kelly, nil
	case PolicyLowVariance:
		return LowVariance{MaxOdds: cfg.LowVariance.MaxOdds, MinEV: cfg.LowVariance.MinEV, Stake: cfg.FixedStake}, nil
	case PolicyHighVolume:
		return HighVolume{MinEV: cfg.HighVolume.MinEV, MaxBets: cfg.HighVolume.MaxBets, Stake: cfg.FixedStake}, nil
	case PolicyDiversified:
		return Diversified{MinEV: cfg.Diversified.MinEV, PlaceMinProb: cfg.Diversified.PlaceMinProb, Stake: cfg.FixedStake}, nil
	case PolicyFlat:
		return Flat{Stake: cfg.FixedStake}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q: %w", name, models.ErrInvalidInput)
	}
}

// AlternativePolicies returns the fixed-stake policies in comparison order
func AlternativePolicies(cfg config.PoliciesConfig) []Policy {
	return []Policy{
		LowVariance{MaxOdds: cfg.LowVariance.MaxOdds, MinEV: cfg.LowVariance.MinEV, Stake: cfg.FixedStake},
		HighVolume{MinEV: cfg.HighVolume.MinEV, MaxBets: cfg.HighVolume.MaxBets, Stake: cfg.FixedStake},
		Diversified{MinEV: cfg.Diversified.MinEV, PlaceMinProb: cfg.Diversified.PlaceMinProb, Stake: cfg.FixedStake},
		Flat{Stake: cfg.FixedStake},
	}
}

func skipAll(policy string, candidates []Candidate, reason string) []models.BetRecommendation {
	recs := make([]models.BetRecommendation, len(candidates))
	for i, c := range candidates {
		ev := c.ExpectedValue()
		recs[i] = models.BetRecommendation{
			HorseID:       c.HorseID,
			HorseNumber:   c.HorseNumber,
			WagerType:     models.WagerTypeWin,
			Decision:      models.BetDecisionSkip,
			Probability:   c.Probability,
			Odds:          c.Odds,
			ExpectedValue: ev,
			Edge:          ev - 1,
			Policy:        policy,
			Reason:        reason,
		}
	}
	return recs
}

func buy(rec *models.BetRecommendation, stake int64) {
	rec.Decision = models.BetDecisionBuy
	rec.Stake = stake
	rec.Reason = ReasonSized
}

func record(recs []models.BetRecommendation) []models.BetRecommendation {
	for _, r := range recs {
		metrics.RecordStakeDecision(r.Policy, string(r.Decision), r.Reason, r.Stake)
	}
	return recs
}
