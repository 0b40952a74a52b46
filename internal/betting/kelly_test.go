package betting

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/models"
)

func defaultKellyConfig() config.KellyConfig {
	return config.KellyConfig{
		InitialBankroll: 100000,
		KellyFraction:   0.25,
		MaxBetFraction:  0.05,
		MinEdge:         0.20,
		MinProbability:  0.10,
		MaxProbability:  0.80,
		MinBet:          100,
		Denomination:    100,
		DrawdownFloor:   0.5,
	}
}

func TestKellySizer_Size(t *testing.T) {
	tests := []struct {
		name     string
		bankroll int64
		p        float64
		odds     float64
		stake    int64
		reason   string
	}{
		{"long shot below probability band", 100000, 0.05, 30.0, 0, ReasonProbabilityBand},
		{"near certainty above probability band", 100000, 0.85, 2.0, 0, ReasonProbabilityBand},
		{"odds of one cannot profit", 100000, 0.50, 1.0, 0, ReasonOddsTooShort},
		{"missing odds", 100000, 0.50, 0, 0, ReasonOddsTooShort},
		{"edge below minimum", 100000, 0.30, 3.5, 0, ReasonEdgeBelowMinimum},
		{"quarter kelly under the ceiling", 100000, 0.30, 4.5, 2500, ReasonSized},
		{"ceiling binds", 100000, 0.50, 3.0, 5000, ReasonSized},
		{"quantized down to the denomination", 99999, 0.50, 3.0, 4900, ReasonSized},
		{"below minimum bet", 2000, 0.30, 4.5, 0, ReasonBelowMinimumBet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultKellyConfig()
			cfg.InitialBankroll = tt.bankroll
			sizer := NewKellySizer(cfg, tt.bankroll)

			s := sizer.Size(tt.p, tt.odds)
			assert.Equal(t, tt.stake, s.Stake)
			assert.Equal(t, tt.reason, s.Reason)
			if tt.stake > 0 {
				assert.Equal(t, models.BetDecisionBuy, s.Decision)
				assert.Zero(t, s.Stake%cfg.Denomination)
			} else {
				assert.Equal(t, models.BetDecisionSkip, s.Decision)
			}
		})
	}
}

func TestKellySizer_SizeComputesFullKelly(t *testing.T) {
	sizer := NewKellySizer(defaultKellyConfig(), 100000)

	s := sizer.Size(0.30, 4.5)
	assert.InDelta(t, 0.35, s.Edge, 1e-9)
	assert.InDelta(t, 1.35, s.ExpectedValue, 1e-9)
	assert.InDelta(t, 0.10, s.KellyFraction, 1e-9)
	assert.InDelta(t, 0.025, s.Fraction, 1e-9)
}

func TestKellySizer_EdgeExactlyAtMinimumIsAccepted(t *testing.T) {
	sizer := NewKellySizer(defaultKellyConfig(), 100000)

	// 0.3 * 4.0 - 1 evaluates just below 0.2 in binary floating point
	s := sizer.Size(0.30, 4.0)
	assert.Equal(t, ReasonSized, s.Reason)
	assert.Equal(t, models.BetDecisionBuy, s.Decision)
	assert.Equal(t, int64(1600), s.Stake)
}

func TestKellySizer_DrawdownFloor(t *testing.T) {
	sizer := NewKellySizer(defaultKellyConfig(), 100000)
	assert.False(t, sizer.Halted())

	assert.Equal(t, int64(50000), sizer.Settle(-50000))
	assert.False(t, sizer.Halted(), "exactly half of the initial bankroll still bets")
	assert.Equal(t, ReasonSized, sizer.Size(0.50, 3.0).Reason)

	assert.Equal(t, int64(49900), sizer.Settle(-100))
	assert.True(t, sizer.Halted())

	s := sizer.Size(0.50, 3.0)
	assert.Equal(t, ReasonDrawdownFloor, s.Reason)
	assert.Zero(t, s.Stake)

	sizer.Settle(10000)
	assert.False(t, sizer.Halted())
	assert.Equal(t, int64(100000), sizer.InitialBankroll())
}

func TestKellySizer_SkipLeavesBankrollUntouched(t *testing.T) {
	sizer := NewKellySizer(defaultKellyConfig(), 100000)

	recs := sizer.Evaluate([]Candidate{
		{HorseID: uuid.New(), HorseNumber: 1, Probability: 0.05, Odds: 30},
		{HorseID: uuid.New(), HorseNumber: 2, Probability: 0.50, Odds: 3.0},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, int64(100000), sizer.Bankroll())
}

func TestKellySizer_Evaluate(t *testing.T) {
	sizer := NewKellySizer(defaultKellyConfig(), 100000)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	recs := sizer.Evaluate([]Candidate{
		{HorseID: ids[0], HorseNumber: 3, Probability: 0.30, Odds: 4.5},
		{HorseID: ids[1], HorseNumber: 7, Probability: 0.20, Odds: 2.0},
		{HorseID: ids[2], HorseNumber: 9, Probability: 0.50, Odds: 0},
	})
	require.Len(t, recs, 3)

	assert.Equal(t, ids[0], recs[0].HorseID)
	assert.Equal(t, 3, recs[0].HorseNumber)
	assert.True(t, recs[0].IsBuy())
	assert.Equal(t, int64(2500), recs[0].Stake)
	assert.Equal(t, PolicyKelly, recs[0].Policy)
	assert.Equal(t, models.WagerTypeWin, recs[0].WagerType)
	assert.InDelta(t, 0.1, recs[0].KellyFraction, 1e-9)

	assert.False(t, recs[1].IsBuy())
	assert.Equal(t, ReasonEdgeBelowMinimum, recs[1].Reason)

	assert.False(t, recs[2].IsBuy())
	assert.Equal(t, ReasonOddsTooShort, recs[2].Reason)
	assert.Zero(t, recs[2].ExpectedValue)
}

func TestKellySizer_ConcurrentSettleAndSize(t *testing.T) {
	sizer := NewKellySizer(defaultKellyConfig(), 100000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sizer.Settle(100)
		}()
		go func() {
			defer wg.Done()
			_ = sizer.Size(0.5, 3.0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(105000), sizer.Bankroll())
}

func TestNewKellySizer_InitialDefaultsToBankroll(t *testing.T) {
	cfg := defaultKellyConfig()
	cfg.InitialBankroll = 0

	sizer := NewKellySizer(cfg, 40000)
	assert.Equal(t, int64(40000), sizer.InitialBankroll())
	assert.Equal(t, PolicyKelly, sizer.Name())
}
