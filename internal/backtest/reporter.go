package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// GenerateConsoleReport formats one policy's metrics for terminal output
func GenerateConsoleReport(result Result) string {
	m := result.Metrics
	var builder strings.Builder
	builder.WriteString("Backtest Report\n")
	builder.WriteString("================\n")
	builder.WriteString(fmt.Sprintf("Policy: %s\n", result.Policy))
	builder.WriteString(fmt.Sprintf("Period: %s to %s\n", m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("Races: %d evaluated, %d bet, %d skipped\n", m.RacesEvaluated, m.RacesBet, m.RacesSkipped))
	builder.WriteString(fmt.Sprintf("Bankroll: ¥%d -> ¥%d (%+d)\n", m.InitialBankroll, m.FinalBankroll, m.NetProfit))
	builder.WriteString(fmt.Sprintf("Bets: %d (won %d)\n", m.TotalBets, m.WinningBets))
	builder.WriteString(fmt.Sprintf("ROI: %.2f%%\n", m.ROI*100))
	builder.WriteString(fmt.Sprintf("Hit Rate: %.2f%%\n", m.HitRate*100))
	builder.WriteString(fmt.Sprintf("Max Drawdown: %.2f%%\n", m.MaxDrawdown*100))
	builder.WriteString(fmt.Sprintf("Sharpe Ratio: %.2f\n", m.SharpeRatio))
	builder.WriteString(fmt.Sprintf("Profit Factor: %.2f\n", m.ProfitFactor))
	if m.Halted {
		builder.WriteString("Stopped: bankroll fell below the drawdown floor\n")
	}

	if len(m.Monthly) > 0 {
		builder.WriteString("\nMonth    Bets  Wins  Staked      Profit      ROI\n")
		for _, month := range m.Monthly {
			builder.WriteString(fmt.Sprintf("%-8s %4d  %4d  %-10d  %-10d  %6.2f%%\n",
				month.Month, month.Bets, month.Wins, month.Staked, month.Profit, month.ROI*100))
		}
	}
	return builder.String()
}

// GenerateComparisonReport formats a policy simulation as a table
func GenerateComparisonReport(comparisons []PolicyComparison, baseline string) string {
	var builder strings.Builder
	builder.WriteString("Policy Simulation\n")
	builder.WriteString("=================\n")
	builder.WriteString(fmt.Sprintf("%-12s %6s %9s %9s %9s %8s %12s  %s\n",
		"policy", "bets", "roi", "vs_"+baseline, "drawdown", "score", "profit", "recommendation"))
	for _, c := range comparisons {
		builder.WriteString(fmt.Sprintf("%-12s %6d %8.2f%% %8.2f%% %8.2f%% %8.2f %12d  %s\n",
			c.Policy, c.TotalBets, c.ROI*100, c.ROIOverBaseline*100, c.MaxDrawdown*100,
			c.CompositeScore, c.NetProfit, c.Recommendation))
	}
	return builder.String()
}

// GenerateCSVExport writes the settled bets and the equity curve of a result
// into dir as <policy>_bets.csv and <policy>_equity.csv
func GenerateCSVExport(result Result, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, result.Policy+"_bets.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"race_id", "race_date", "horse_number", "horse_name", "policy", "stake", "odds", "probability", "won", "payout", "profit_loss", "bankroll_after"})
	if result.State != nil {
		for _, b := range result.State.Bets {
			_ = w.Write([]string{
				b.RaceID,
				b.RaceDate.Format("2006-01-02"),
				strconv.Itoa(b.HorseNumber),
				b.HorseName,
				b.Policy,
				strconv.FormatInt(b.Stake, 10),
				formatFloat(b.Odds),
				formatFloat(b.Probability),
				strconv.FormatBool(b.Won),
				strconv.FormatInt(b.Payout, 10),
				strconv.FormatInt(b.ProfitLoss, 10),
				strconv.FormatInt(b.BankrollAfter, 10),
			})
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	curve := ""
	if result.State != nil {
		curve = result.State.EquityCurve.ToCSV()
	}
	return os.WriteFile(filepath.Join(dir, result.Policy+"_equity.csv"), []byte(curve), 0o644)
}

// GenerateJSONExport writes any report value as indented JSON to path
func GenerateJSONExport(v interface{}, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
