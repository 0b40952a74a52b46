package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-edge/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed FIXTURE.json",
	Short: "Load races, horses and entries from a JSON fixture into the history store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open fixture: %w", err)
		}
		defer f.Close()

		fixture, err := repository.DecodeFixture(f)
		if err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := repository.Seed(ctx, store, fixture)
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}

		log.WithFields(logrus.Fields{
			"horses":  res.Horses,
			"races":   res.Races,
			"entries": res.Entries,
		}).Info("Fixture seeded")
		return nil
	},
}
