package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/race-edge/internal/inference"
)

var (
	predictBankroll int64
	predictFormat   string
)

func init() {
	predictCmd.Flags().Int64Var(&predictBankroll, "bankroll", 0, "Current bankroll (defaults to kelly.initial_bankroll)")
	predictCmd.Flags().StringVarP(&predictFormat, "format", "f", "table", "Output format: table or json")
}

var predictCmd = &cobra.Command{
	Use:   "predict RACE_ID",
	Short: "Predict one race and print stake recommendations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		bundle, err := loadBundle(ctx)
		if err != nil {
			return err
		}
		defer bundle.Close()

		engine := inference.NewEngine(store, inference.NewBundleHolder(bundle), cfg.Ensemble, cfg.Kelly, log)
		resp, err := engine.PredictRace(ctx, args[0], predictBankroll)
		if err != nil {
			return err
		}

		switch predictFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		case "table":
			printPrediction(resp)
			return nil
		default:
			return fmt.Errorf("unknown format %q", predictFormat)
		}
	},
}

func printPrediction(resp *inference.PredictionResponse) {
	fmt.Printf("%s %s (%s)\n", resp.RaceID, resp.RaceName, resp.RaceDate.Format("2006-01-02"))
	fmt.Printf("method=%s model=%s calibrated=%v bankroll=%d\n", resp.Method, resp.ModelVersion, resp.Calibrated, resp.Bankroll)
	for _, f := range resp.Flags {
		fmt.Printf("flag: %s\n", f.Reason)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNO\tHORSE\tODDS\tPROB\tEV\tMARK")
	for _, p := range resp.Predictions {
		odds := "-"
		if p.Odds > 0 {
			odds = fmt.Sprintf("%.1f", p.Odds)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%.3f\t%.2f\t%s\n",
			p.Rank, p.HorseNumber, p.HorseName, odds, p.Probability, p.ExpectedValue, p.Mark)
	}
	w.Flush()

	if buys := resp.Buys(); len(buys) > 0 {
		names := make([]string, len(buys))
		for i, b := range buys {
			names[i] = fmt.Sprintf("#%d ¥%d", b.HorseNumber, b.Recommendation.Stake)
		}
		fmt.Printf("\nbuy: %s\n", strings.Join(names, ", "))
	}
}
