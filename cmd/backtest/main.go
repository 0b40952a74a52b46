// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/backtest"
	"github.com/yourusername/race-edge/internal/betting"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/inference"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/ml"
	"github.com/yourusername/race-edge/internal/repository"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to config file")
		policyName = flag.String("policy", "", "Policy to replay (defaults to policies.default)")
		startDate  = flag.String("start-date", "", "Override start date (YYYY-MM-DD)")
		endDate    = flag.String("end-date", "", "Override end date (YYYY-MM-DD)")
		mode       = flag.String("mode", "all", "Backtest mode: replay, simulate, monte-carlo, walk-forward, all")
		output     = flag.String("output", "", "Override output directory for reports")
		seed       = flag.Int64("seed", 0, "Monte Carlo seed (0 uses the clock)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfigWithSecrets(ctx, *configPath)
	log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	btConfig := buildBacktestConfig(cfg, *output, *startDate, *endDate, log)
	policy := *policyName
	if policy == "" {
		policy = cfg.Policies.Default
	}

	store, err := repository.NewStore(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	bundle, err := ml.LoadBundle(ctx, &cfg.Models, features.Names(), log)
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}
	defer bundle.Close()

	predictor := inference.NewEngine(store, inference.NewBundleHolder(bundle), cfg.Ensemble, cfg.Kelly, log)
	engine, err := backtest.NewEngine(btConfig, store, predictor, log)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	log.WithFields(logrus.Fields{"mode": *mode, "policy": policy}).Info("Starting backtest")
	runMode(ctx, engine, btConfig, policy, *mode, *seed, log)
}

func loadConfigWithSecrets(ctx context.Context, path string) *config.Config {
	bootLog := logrus.New()
	bootLog.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		bootLog.Fatalf("Failed to load config: %v", err)
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		bootLog.Fatalf("Failed to load secrets: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		bootLog.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func buildBacktestConfig(cfg *config.Config, output, startOverride, endOverride string, log *logrus.Logger) backtest.Config {
	btConfig, err := backtest.FromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid backtest config: %v", err)
	}
	if output != "" {
		btConfig.OutputPath = output
	}
	if startOverride != "" {
		parsed, err := time.Parse("2006-01-02", startOverride)
		if err != nil {
			log.Fatalf("Invalid start date: %v", err)
		}
		btConfig.StartDate = parsed
	}
	if endOverride != "" {
		parsed, err := time.Parse("2006-01-02", endOverride)
		if err != nil {
			log.Fatalf("Invalid end date: %v", err)
		}
		btConfig.EndDate = parsed
	}
	if err := btConfig.Validate(); err != nil {
		log.Fatalf("Invalid backtest config: %v", err)
	}
	return btConfig
}

func runMode(ctx context.Context, engine *backtest.Engine, cfg backtest.Config, policy, mode string, seed int64, log *logrus.Logger) {
	switch mode {
	case "replay":
		runReplay(ctx, engine, cfg, policy, log)
	case "simulate":
		runSimulation(ctx, engine, cfg, log)
	case "monte-carlo":
		result := runReplay(ctx, engine, cfg, policy, log)
		runMonteCarlo(ctx, result, cfg, seed, log)
	case "walk-forward":
		runWalkForward(ctx, engine, cfg, policy, log)
	case "all":
		result := runReplay(ctx, engine, cfg, policy, log)
		runMonteCarlo(ctx, result, cfg, seed, log)
		runWalkForward(ctx, engine, cfg, policy, log)
		runSimulation(ctx, engine, cfg, log)
	default:
		log.Fatalf("Unsupported mode: %s", mode)
	}
}

func runReplay(ctx context.Context, engine *backtest.Engine, cfg backtest.Config, policy string, log *logrus.Logger) backtest.Result {
	result, err := engine.HistoricalReplay(ctx, policy)
	if err != nil {
		log.Fatalf("Historical replay failed: %v", err)
	}
	log.Info("\n" + backtest.GenerateConsoleReport(result))

	if err := backtest.GenerateCSVExport(result, cfg.OutputPath); err != nil {
		log.Fatalf("Failed to export replay CSV: %v", err)
	}
	writeJSON(filepath.Join(cfg.OutputPath, policy+"_metrics.json"), result.Metrics, log)
	return result
}

func runSimulation(ctx context.Context, engine *backtest.Engine, cfg backtest.Config, log *logrus.Logger) {
	results, err := engine.SimulatePolicies(ctx)
	if err != nil {
		log.Fatalf("Policy simulation failed: %v", err)
	}
	comparisons := backtest.Compare(results, betting.PolicyFlat)
	log.Info("\n" + backtest.GenerateComparisonReport(comparisons, betting.PolicyFlat))
	writeJSON(filepath.Join(cfg.OutputPath, "policy_comparison.json"), comparisons, log)
}

func runMonteCarlo(ctx context.Context, result backtest.Result, cfg backtest.Config, seed int64, log *logrus.Logger) {
	mc, err := backtest.RunMonteCarlo(ctx, result.State.Bets, backtest.MonteCarloConfig{
		Iterations:      cfg.MonteCarloIterations,
		Seed:            seed,
		InitialBankroll: cfg.InitialBankroll,
	})
	if err != nil {
		log.Fatalf("Monte Carlo failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"mean_return":       mc.MeanReturn,
		"var_95":            mc.VaR95,
		"prob_profit":       mc.ProbabilityOfProfit,
		"actual_percentile": mc.ActualPercentile,
	}).Info("Monte Carlo completed")
	writeJSON(filepath.Join(cfg.OutputPath, result.Policy+"_monte_carlo.json"), mc, log)
}

func runWalkForward(ctx context.Context, engine *backtest.Engine, cfg backtest.Config, policy string, log *logrus.Logger) {
	days := cfg.WalkForwardDays
	if days <= 0 {
		log.Info("Walk-forward disabled (walk_forward_days is 0)")
		return
	}
	result, err := backtest.RunWalkForward(ctx, engine, policy, backtest.WalkForwardConfig{
		WindowDays:       days,
		MinBetsPerWindow: 1,
	})
	if err != nil {
		log.Fatalf("Walk-forward failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"windows":        len(result.Windows),
		"consistency":    result.ConsistencyScore,
		"roi_dispersion": result.ROIDispersion,
	}).Info("Walk-forward completed")
	writeJSON(filepath.Join(cfg.OutputPath, policy+"_walk_forward.json"), result, log)
}

func writeJSON(path string, v interface{}, log *logrus.Logger) {
	if err := backtest.GenerateJSONExport(v, path); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
	log.WithField("path", path).Debug("Report written")
}
