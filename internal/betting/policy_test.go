package betting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/models"
)

func defaultPoliciesConfig() config.PoliciesConfig {
	return config.PoliciesConfig{
		Default:     PolicyKelly,
		FixedStake:  100,
		LowVariance: config.LowVarianceConfig{MaxOdds: 3.0, MinEV: 1.3},
		HighVolume:  config.HighVolumeConfig{MinEV: 1.15, MaxBets: 3},
		Diversified: config.DiversifiedConfig{MinEV: 1.25, PlaceMinProb: 0.25},
	}
}

func candidates(pairs ...[2]float64) []Candidate {
	out := make([]Candidate, len(pairs))
	for i, p := range pairs {
		out[i] = Candidate{HorseNumber: i + 1, Probability: p[0], Odds: p[1]}
	}
	return out
}

func buys(recs []models.BetRecommendation) []int {
	var numbers []int
	for _, r := range recs {
		if r.IsBuy() {
			numbers = append(numbers, r.HorseNumber)
		}
	}
	return numbers
}

func TestLowVariance_Evaluate(t *testing.T) {
	policy := LowVariance{MaxOdds: 3.0, MinEV: 1.3, Stake: 100}

	recs := policy.Evaluate(candidates(
		[2]float64{0.50, 2.8}, // EV 1.4
		[2]float64{0.60, 2.5}, // EV 1.5
		[2]float64{0.30, 5.0}, // EV 1.5 but above the odds ceiling
		[2]float64{0.10, 2.0},
		[2]float64{0.65, 2.0}, // EV exactly 1.3
	))
	require.Len(t, recs, 5)

	assert.Equal(t, []int{2}, buys(recs))
	assert.Equal(t, int64(100), recs[1].Stake)
	assert.Equal(t, ReasonNotSelected, recs[0].Reason)
	assert.Equal(t, ReasonOddsAboveCeiling, recs[2].Reason)
	assert.Equal(t, ReasonExpectedValueLow, recs[3].Reason)
	assert.Equal(t, ReasonExpectedValueLow, recs[4].Reason)
	for _, r := range recs {
		assert.Equal(t, PolicyLowVariance, r.Policy)
	}
}

func TestLowVariance_NoQualifyingEntrant(t *testing.T) {
	policy := LowVariance{MaxOdds: 3.0, MinEV: 1.3, Stake: 100}

	recs := policy.Evaluate(candidates([2]float64{0.2, 2.0}, [2]float64{0.1, 1.0}))
	assert.Empty(t, buys(recs))
	assert.Equal(t, ReasonOddsTooShort, recs[1].Reason)
}

func TestHighVolume_Evaluate(t *testing.T) {
	policy := HighVolume{MinEV: 1.15, MaxBets: 3, Stake: 200}

	recs := policy.Evaluate(candidates(
		[2]float64{0.30, 4.0}, // EV 1.2
		[2]float64{0.50, 3.0}, // EV 1.5
		[2]float64{0.26, 5.0}, // EV 1.3
		[2]float64{0.55, 2.0}, // EV 1.1
		[2]float64{0.35, 4.0}, // EV 1.4
	))
	require.Len(t, recs, 5)

	assert.Equal(t, []int{2, 3, 5}, buys(recs))
	assert.Equal(t, ReasonNotSelected, recs[0].Reason)
	assert.Equal(t, ReasonExpectedValueLow, recs[3].Reason)
	for _, n := range []int{1, 2, 4} {
		assert.Equal(t, int64(200), recs[n].Stake)
	}
}

func TestHighVolume_TiesKeepInputOrder(t *testing.T) {
	policy := HighVolume{MinEV: 1.15, MaxBets: 1, Stake: 100}

	recs := policy.Evaluate(candidates([2]float64{0.5, 3.0}, [2]float64{0.5, 3.0}))
	assert.Equal(t, []int{1}, buys(recs))
}

func TestDiversified_Evaluate(t *testing.T) {
	policy := Diversified{MinEV: 1.25, PlaceMinProb: 0.25, Stake: 100}

	recs := policy.Evaluate(candidates(
		[2]float64{0.50, 2.5}, // EV exactly 1.25
		[2]float64{0.30, 4.0},
		[2]float64{0.10, 10.0},
	))
	require.Len(t, recs, 3)

	assert.Equal(t, []int{1}, buys(recs))
	assert.True(t, recs[0].PlaceEligible)
	assert.Equal(t, ReasonSized, recs[0].Reason)

	assert.True(t, recs[1].PlaceEligible)
	assert.Equal(t, ReasonPlaceNotSized, recs[1].Reason)
	assert.Zero(t, recs[1].Stake)

	assert.False(t, recs[2].PlaceEligible)
	assert.Equal(t, ReasonExpectedValueLow, recs[2].Reason)
}

func TestDiversified_BestBelowMinimum(t *testing.T) {
	policy := Diversified{MinEV: 1.25, PlaceMinProb: 0.25, Stake: 100}

	recs := policy.Evaluate(candidates([2]float64{0.40, 3.0}, [2]float64{0.20, 2.0}))
	assert.Empty(t, buys(recs))
	assert.True(t, recs[0].PlaceEligible)
}

func TestFlat_Evaluate(t *testing.T) {
	policy := Flat{Stake: 100}

	recs := policy.Evaluate(candidates([2]float64{0.2, 6.0}, [2]float64{0.5, 1.8}, [2]float64{0.3, 3.0}))
	assert.Equal(t, []int{2}, buys(recs))
	assert.Equal(t, PolicyFlat, recs[1].Policy)

	assert.Empty(t, policy.Evaluate(nil))
}

func TestPoliciesDoNotTouchBankroll(t *testing.T) {
	sizer := NewKellySizer(defaultKellyConfig(), 100000)
	input := candidates([2]float64{0.5, 3.0}, [2]float64{0.3, 4.5})

	for _, p := range AlternativePolicies(defaultPoliciesConfig()) {
		p.Evaluate(input)
	}
	assert.Equal(t, int64(100000), sizer.Bankroll())
}

func TestPolicyByName(t *testing.T) {
	cfg := defaultPoliciesConfig()
	sizer := NewKellySizer(defaultKellyConfig(), 100000)

	for _, name := range config.PolicyNames {
		t.Run(name, func(t *testing.T) {
			p, err := PolicyByName(name, cfg, sizer)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name())
		})
	}

	_, err := PolicyByName("martingale", cfg, sizer)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = PolicyByName(PolicyKelly, cfg, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAlternativePolicies(t *testing.T) {
	policies := AlternativePolicies(defaultPoliciesConfig())
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{PolicyLowVariance, PolicyHighVolume, PolicyDiversified, PolicyFlat}, names)
}
