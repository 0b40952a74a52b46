package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Show the configured stake policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		k := cfg.Kelly
		p := cfg.Policies

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "default\t%s\n", p.Default)
		fmt.Fprintf(w, "kelly\tfraction=%.2f cap=%.2f min_edge=%.2f prob=[%.2f, %.2f] min_bet=%d unit=%d floor=%.2f\n",
			k.KellyFraction, k.MaxBetFraction, k.MinEdge, k.MinProbability, k.MaxProbability, k.MinBet, k.Denomination, k.DrawdownFloor)
		fmt.Fprintf(w, "low_variance\tstake=%d odds<%.1f ev>%.2f\n", p.FixedStake, p.LowVariance.MaxOdds, p.LowVariance.MinEV)
		fmt.Fprintf(w, "high_volume\tstake=%d ev>%.2f max_bets=%d\n", p.FixedStake, p.HighVolume.MinEV, p.HighVolume.MaxBets)
		fmt.Fprintf(w, "diversified\tstake=%d ev>=%.2f place_prob>=%.2f\n", p.FixedStake, p.Diversified.MinEV, p.Diversified.PlaceMinProb)
		fmt.Fprintf(w, "flat\tstake=%d\n", p.FixedStake)
		return w.Flush()
	},
}
