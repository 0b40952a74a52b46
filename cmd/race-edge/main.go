// Package main provides the race-edge command line: predictions, the
// prediction API and store seeding.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/ml"
	"github.com/yourusername/race-edge/internal/repository"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	log        *logrus.Logger
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(predictCmd, serveCmd, policiesCmd, seedCmd, serveModelCmd)
}

var rootCmd = &cobra.Command{
	Use:           "race-edge",
	Short:         "Horse race win probabilities and Kelly stake sizing",
	Long:          `Scores race entrants with an ensemble of models, calibrates win probabilities and sizes stakes with fractional Kelly.`,
	Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
		return nil
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	return config.ValidateEnvironment(cfg)
}

func openStore(ctx context.Context) (repository.Store, error) {
	store, err := repository.NewStore(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return store, nil
}

func loadBundle(ctx context.Context) (*ml.Bundle, error) {
	bundle, err := ml.LoadBundle(ctx, &cfg.Models, features.Names(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	return bundle, nil
}
