package backtest

import (
	"math"
	"testing"
	"time"
)

func settled(date string, stake int64, odds float64, won bool) *SettledBet {
	d, _ := time.Parse("2006-01-02", date)
	bet := &SettledBet{RaceDate: d, Stake: stake, Odds: odds, Won: won, Policy: "kelly"}
	if won {
		bet.Payout = int64(math.Floor(float64(stake) * odds))
	}
	bet.ProfitLoss = bet.Payout - stake
	return bet
}

func TestCalculateMetrics(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	state := NewState("kelly", 10000, start)
	state.ApplyRace("R1", start, []*SettledBet{settled("2025-05-01", 1000, 2.5, true)})
	state.ApplyRace("R2", start.AddDate(0, 0, 1), []*SettledBet{settled("2025-05-02", 1000, 4.0, false)})
	state.ApplyRace("R3", start.AddDate(0, 1, 0), []*SettledBet{
		settled("2025-06-01", 500, 3.0, false),
		settled("2025-06-01", 500, 5.0, true),
	})
	state.ApplyRace("R4", start.AddDate(0, 1, 2), nil)

	m := CalculateMetrics(state, Config{StartDate: start, EndDate: start.AddDate(0, 2, 0)})

	if m.FinalBankroll != 12000 || m.NetProfit != 2000 {
		t.Fatalf("unexpected bankroll %d / profit %d", m.FinalBankroll, m.NetProfit)
	}
	if m.TotalStaked != 3000 || m.TotalReturned != 5000 {
		t.Fatalf("unexpected staked/returned %d/%d", m.TotalStaked, m.TotalReturned)
	}
	if math.Abs(m.ROI-2.0/3.0) > 1e-9 {
		t.Fatalf("expected ROI 0.667, got %.4f", m.ROI)
	}
	if m.TotalBets != 4 || m.WinningBets != 2 || m.LosingBets != 2 {
		t.Fatalf("unexpected bet counts: %+v", m)
	}
	if m.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %.2f", m.HitRate)
	}
	// gross profit 1500 + 2000 against 1000 + 500 lost
	if math.Abs(m.ProfitFactor-3500.0/1500.0) > 1e-9 {
		t.Fatalf("unexpected profit factor %.4f", m.ProfitFactor)
	}
	if m.LargestWin != 2000 || m.LargestLoss != -1000 {
		t.Fatalf("unexpected largest win/loss %d/%d", m.LargestWin, m.LargestLoss)
	}
	if m.RacesEvaluated != 4 || m.RacesBet != 3 {
		t.Fatalf("unexpected race counts %d/%d", m.RacesEvaluated, m.RacesBet)
	}
	// peak 11500 after R1, trough 10500 after R2
	if math.Abs(m.MaxDrawdown-1000.0/11500.0) > 1e-9 {
		t.Fatalf("unexpected max drawdown %.4f", m.MaxDrawdown)
	}
	if m.Volatility <= 0 {
		t.Fatalf("expected positive volatility, got %.4f", m.Volatility)
	}

	if len(m.Monthly) != 2 {
		t.Fatalf("expected 2 months, got %d", len(m.Monthly))
	}
	may, june := m.Monthly[0], m.Monthly[1]
	if may.Month != "2025-05" || may.Profit != 500 || may.Bets != 2 {
		t.Fatalf("unexpected May stats: %+v", may)
	}
	if june.Month != "2025-06" || june.Profit != 1500 || june.Bankroll != 12000 {
		t.Fatalf("unexpected June stats: %+v", june)
	}
}

func TestCalculateMetrics_NoBets(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	state := NewState("flat", 10000, start)
	state.ApplyRace("R1", start, nil)

	m := CalculateMetrics(state, Config{StartDate: start, EndDate: start})
	if m.ROI != 0 || m.HitRate != 0 || m.ProfitFactor != 0 {
		t.Fatalf("expected zero ratios without bets, got %+v", m)
	}
	if m.SharpeRatio != 0 || m.MaxDrawdown != 0 {
		t.Fatalf("expected flat risk metrics, got sharpe %.2f drawdown %.2f", m.SharpeRatio, m.MaxDrawdown)
	}
	if len(state.EquityCurve) != 1 {
		t.Fatalf("races without bets should not add equity points")
	}
}

func TestProfitFactor_NoLosses(t *testing.T) {
	bets := []*SettledBet{settled("2025-05-01", 100, 3.0, true)}
	if pf := calculateProfitFactor(bets); pf != 999 {
		t.Fatalf("expected capped profit factor, got %.2f", pf)
	}
}

func TestStateDrawdown(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	state := NewState("kelly", 10000, start)
	state.ApplyRace("R1", start, []*SettledBet{settled("2025-05-01", 2000, 2.0, false)})

	if dd := state.GetCurrentDrawdown(); math.Abs(dd-0.2) > 1e-9 {
		t.Fatalf("expected 20%% drawdown, got %.4f", dd)
	}
	if state.Bets[0].BankrollAfter != 8000 {
		t.Fatalf("expected bankroll after 8000, got %d", state.Bets[0].BankrollAfter)
	}
	if state.DailyPnL[start] != -2000 {
		t.Fatalf("expected daily loss of 2000, got %d", state.DailyPnL[start])
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := calculateSharpeRatio([]float64{0, 0, 0}, 0); got != 0 {
		t.Fatalf("expected zero sharpe for constant returns, got %.2f", got)
	}
	if got := calculateSharpeRatio([]float64{0.03, -0.01, 0.04, -0.02}, 0); got <= 0 {
		t.Fatalf("expected positive sharpe, got %.2f", got)
	}
	if got := calculateSortinoRatio([]float64{0.03, -0.01, 0.04, -0.02}, 0); got <= 0 {
		t.Fatalf("expected positive sortino, got %.2f", got)
	}
}
