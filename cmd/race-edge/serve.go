package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/race-edge/internal/api"
	"github.com/yourusername/race-edge/internal/health"
	"github.com/yourusername/race-edge/internal/inference"
	"github.com/yourusername/race-edge/internal/ml"
	"github.com/yourusername/race-edge/internal/scheduler"
	"github.com/yourusername/race-edge/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the prediction API with health checks and scheduled model reloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tracingCfg := tracing.Config{
			ServiceName:  cfg.App.Name,
			Version:      Version,
			Enabled:      cfg.Tracing.Enabled,
			SamplingRate: cfg.Tracing.SamplingRate,
			DaemonAddr:   cfg.Tracing.DaemonAddr,
		}
		if err := tracing.Initialize(tracingCfg, log); err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		healthCfg := health.Config{
			ServiceName: cfg.App.Name,
			Version:     Version,
			Port:        cfg.Server.HealthPort,
			Logger:      log,
		}
		if pinger, ok := store.(health.DatabasePinger); ok {
			healthCfg.DB = pinger
		}

		// a failed first load leaves the service up but not ready
		holder := inference.NewBundleHolder(nil)
		if bundle, err := loadBundle(ctx); err != nil {
			log.WithError(err).Error("Initial model load failed")
		} else {
			holder.Swap(bundle)
		}
		defer func() {
			if b := holder.Current(); b != nil {
				_ = b.Close()
			}
		}()
		healthCfg.Models = holder

		healthServer := health.NewServer(healthCfg)
		if err := healthServer.Start(ctx); err != nil {
			return err
		}

		if cfg.Models.ReloadSchedule != "" {
			reloader := scheduler.NewScheduler(holder, func(ctx context.Context) (*ml.Bundle, error) {
				return loadBundle(ctx)
			}, log, scheduler.WithDrainPeriod(time.Duration(cfg.Server.RequestTimeoutS)*time.Second))
			if err := reloader.ScheduleModelReload(cfg.Models.ReloadSchedule); err != nil {
				return err
			}
			if err := reloader.Start(); err != nil {
				return err
			}
			defer reloader.Stop()
		}

		hub := api.NewHub(log)
		go hub.Run(ctx)

		engine := inference.NewEngine(store, holder, cfg.Ensemble, cfg.Kelly, log)
		server := api.NewServer(cfg.Server, cfg.Metrics, engine, holder, hub, log)
		server.Use(tracing.Middleware(tracingCfg))

		healthServer.SetReady(true)
		defer healthServer.SetReady(false)

		return server.Start(ctx)
	},
}
