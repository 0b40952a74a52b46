package backtest

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Metrics represents backtest performance metrics
type Metrics struct {
	Policy          string         `json:"policy"`
	InitialBankroll int64          `json:"initial_bankroll"`
	FinalBankroll   int64          `json:"final_bankroll"`
	NetProfit       int64          `json:"net_profit"`
	TotalStaked     int64          `json:"total_staked"`
	TotalReturned   int64          `json:"total_returned"`
	ROI             float64        `json:"roi"`
	TotalReturn     float64        `json:"total_return"`
	MaxDrawdown     float64        `json:"max_drawdown"`
	SharpeRatio     float64        `json:"sharpe_ratio"`
	SortinoRatio    float64        `json:"sortino_ratio"`
	Volatility      float64        `json:"volatility"`
	TotalBets       int            `json:"total_bets"`
	WinningBets     int            `json:"winning_bets"`
	LosingBets      int            `json:"losing_bets"`
	HitRate         float64        `json:"hit_rate"`
	ProfitFactor    float64        `json:"profit_factor"`
	AverageOdds     float64        `json:"average_odds"`
	LargestWin      int64          `json:"largest_win"`
	LargestLoss     int64          `json:"largest_loss"`
	RacesEvaluated  int            `json:"races_evaluated"`
	RacesBet        int            `json:"races_bet"`
	RacesSkipped    int            `json:"races_skipped"`
	Halted          bool           `json:"halted"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	Monthly         []MonthlyStats `json:"monthly"`
}

// MonthlyStats aggregates settled bets of one calendar month
type MonthlyStats struct {
	Month    string  `json:"month"`
	Bets     int     `json:"bets"`
	Wins     int     `json:"wins"`
	Staked   int64   `json:"staked"`
	Returned int64   `json:"returned"`
	Profit   int64   `json:"profit"`
	ROI      float64 `json:"roi"`
	HitRate  float64 `json:"hit_rate"`
	Bankroll int64   `json:"bankroll"`
}

// CalculateMetrics calculates metrics from replay state
func CalculateMetrics(state *State, cfg Config) Metrics {
	metrics := Metrics{
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
	}
	if state == nil {
		return metrics
	}

	metrics.Policy = state.Policy
	metrics.InitialBankroll = state.InitialBankroll
	metrics.FinalBankroll = state.CurrentBankroll
	metrics.NetProfit = state.CurrentBankroll - state.InitialBankroll
	metrics.RacesEvaluated = state.RacesEvaluated
	metrics.RacesBet = state.RacesBet
	metrics.RacesSkipped = state.RacesSkipped
	metrics.Halted = state.Halted
	if state.InitialBankroll > 0 {
		metrics.TotalReturn = float64(metrics.NetProfit) / float64(state.InitialBankroll)
	}

	metrics.MaxDrawdown = state.EquityCurve.MaxDrawdown()
	returns := state.EquityCurve.GetReturns()
	metrics.SharpeRatio = calculateSharpeRatio(returns, cfg.RiskFreeRate)
	metrics.SortinoRatio = calculateSortinoRatio(returns, cfg.RiskFreeRate)
	metrics.Volatility = state.EquityCurve.GetVolatility()

	var oddsSum float64
	for _, bet := range state.Bets {
		metrics.TotalBets++
		metrics.TotalStaked += bet.Stake
		metrics.TotalReturned += bet.Payout
		oddsSum += bet.Odds
		if bet.Won {
			metrics.WinningBets++
		} else {
			metrics.LosingBets++
		}
		if bet.ProfitLoss > metrics.LargestWin {
			metrics.LargestWin = bet.ProfitLoss
		}
		if bet.ProfitLoss < metrics.LargestLoss {
			metrics.LargestLoss = bet.ProfitLoss
		}
	}

	if metrics.TotalStaked > 0 {
		metrics.ROI = float64(metrics.TotalReturned-metrics.TotalStaked) / float64(metrics.TotalStaked)
	}
	if metrics.TotalBets > 0 {
		metrics.HitRate = float64(metrics.WinningBets) / float64(metrics.TotalBets)
		metrics.AverageOdds = oddsSum / float64(metrics.TotalBets)
	}
	metrics.ProfitFactor = calculateProfitFactor(state.Bets)
	metrics.Monthly = MonthlyBreakdown(state.Bets)

	return metrics
}

// MonthlyBreakdown groups settled bets by race month, oldest first
func MonthlyBreakdown(bets []*SettledBet) []MonthlyStats {
	byMonth := make(map[string]*MonthlyStats)
	for _, bet := range bets {
		key := bet.RaceDate.Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &MonthlyStats{Month: key}
			byMonth[key] = m
		}
		m.Bets++
		m.Staked += bet.Stake
		m.Returned += bet.Payout
		m.Profit += bet.ProfitLoss
		m.Bankroll = bet.BankrollAfter
		if bet.Won {
			m.Wins++
		}
	}

	out := make([]MonthlyStats, 0, len(byMonth))
	for _, m := range byMonth {
		if m.Staked > 0 {
			m.ROI = float64(m.Returned-m.Staked) / float64(m.Staked)
		}
		if m.Bets > 0 {
			m.HitRate = float64(m.Wins) / float64(m.Bets)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return (mean - riskFreeRate/252.0) / std * math.Sqrt(252)
}

func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := downsideStddev(returns)
	if std == 0 {
		return 0
	}
	return (mean - riskFreeRate/252.0) / std * math.Sqrt(252)
}

func calculateProfitFactor(bets []*SettledBet) float64 {
	var grossProfit, grossLoss int64
	for _, bet := range bets {
		if bet.ProfitLoss > 0 {
			grossProfit += bet.ProfitLoss
		} else {
			grossLoss -= bet.ProfitLoss
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 999
		}
		return 0
	}
	return float64(grossProfit) / float64(grossLoss)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	return mean / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func downsideStddev(values []float64) float64 {
	negatives := make([]float64, 0)
	for _, v := range values {
		if v < 0 {
			negatives = append(negatives, v)
		}
	}
	return stddev(negatives)
}
