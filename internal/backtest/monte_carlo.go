package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// MonteCarloConfig configures the outcome resampling
type MonteCarloConfig struct {
	Iterations      int
	Seed            int64
	InitialBankroll int64
}

// MonteCarloResult summarizes final bankrolls when every settled bet is
// replayed with its model probability instead of its actual result
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	MeanReturn          float64            `json:"mean_return"`
	StdReturn           float64            `json:"std_return"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	ProbabilityOfRuin   float64            `json:"probability_of_ruin"`
	ActualPercentile    float64            `json:"actual_percentile"`
	ConfidenceIntervals map[string]float64 `json:"confidence_intervals"`
	Distribution        []float64          `json:"-"`
}

// RunMonteCarlo resamples the outcomes of bets. ActualPercentile places the
// realized final bankroll within the simulated distribution, showing how much
// of a result was luck.
func RunMonteCarlo(ctx context.Context, bets []*SettledBet, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if cfg.InitialBankroll <= 0 {
		return MonteCarloResult{}, fmt.Errorf("initial bankroll must be positive")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	initial := float64(cfg.InitialBankroll)
	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return MonteCarloResult{}, err
			}
		}
		bankroll := initial
		for _, bet := range bets {
			stake := float64(bet.Stake)
			if rng.Float64() < bet.Probability {
				bankroll += math.Floor(stake*bet.Odds) - stake
			} else {
				bankroll -= stake
			}
			if bankroll <= 0 {
				bankroll = 0
				break
			}
		}
		distribution[i] = bankroll
	}

	actual := initial
	for _, bet := range bets {
		actual += float64(bet.ProfitLoss)
	}

	mean, std := meanStd(distribution)
	return MonteCarloResult{
		Iterations:          cfg.Iterations,
		MeanReturn:          (mean - initial) / initial,
		StdReturn:           std / initial,
		VaR95:               (percentile(distribution, 0.05) - initial) / initial,
		VaR99:               (percentile(distribution, 0.01) - initial) / initial,
		ProbabilityOfProfit: probabilityAbove(distribution, initial),
		ProbabilityOfRuin:   1 - probabilityAbove(distribution, 0),
		ActualPercentile:    1 - probabilityAbove(distribution, actual),
		ConfidenceIntervals: CalculateConfidenceIntervals(distribution, []float64{0.9, 0.95, 0.99}),
		Distribution:        distribution,
	}, nil
}

// CalculateConfidenceIntervals returns the width of the central interval of
// the distribution at each level
func CalculateConfidenceIntervals(distribution []float64, levels []float64) map[string]float64 {
	results := make(map[string]float64)
	for _, level := range levels {
		p := (1.0 - level) / 2.0
		low := percentile(distribution, p)
		high := percentile(distribution, 1.0-p)
		results[fmt.Sprintf("%.0f%%", level*100)] = high - low
	}
	return results
}

// ToJSON exports the summary without the raw distribution
func (m MonteCarloResult) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func meanStd(values []float64) (float64, float64) {
	return average(values), stddev(values)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func probabilityAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}
