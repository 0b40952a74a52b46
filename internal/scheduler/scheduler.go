// Package scheduler reloads the model bundle on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/inference"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/ml"
)

// BundleLoader builds a fresh model bundle from the current artifacts
type BundleLoader func(ctx context.Context) (*ml.Bundle, error)

// Option configures a Scheduler
type Option func(*Scheduler)

// WithDrainPeriod delays closing a replaced bundle so predictions that
// already hold it can finish
func WithDrainPeriod(d time.Duration) Option {
	return func(s *Scheduler) { s.drainPeriod = d }
}

// WithReloadTimeout bounds a single reload
func WithReloadTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.reloadTimeout = d }
}

// Scheduler manages scheduled model reloads
type Scheduler struct {
	cron          *cron.Cron
	holder        *inference.BundleHolder
	load          BundleLoader
	logger        logrus.FieldLogger
	predictions   *logger.PredictionLogger
	mu            sync.RWMutex
	reloadMu      sync.Mutex
	isRunning     bool
	jobIDs        []cron.EntryID
	drainPeriod   time.Duration
	reloadTimeout time.Duration
}

// NewScheduler creates a new scheduler publishing reloaded bundles to holder
func NewScheduler(holder *inference.BundleHolder, load BundleLoader, log logrus.FieldLogger, opts ...Option) *Scheduler {
	if log == nil {
		log = logrus.New()
	}
	s := &Scheduler{
		cron:          cron.New(cron.WithLocation(time.UTC)),
		holder:        holder,
		load:          load,
		logger:        log,
		predictions:   logger.NewPredictionLogger(log),
		jobIDs:        make([]cron.EntryID, 0),
		drainPeriod:   30 * time.Second,
		reloadTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleModelReload schedules a bundle reload with a standard cron expression
func (s *Scheduler) ScheduleModelReload(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.reloadTimeout)
		defer cancel()

		if err := s.ReloadNow(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled model reload failed, keeping current bundle")
		}
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("schedule", cronExpression).Info("Scheduled model reload job")

	return nil
}

// ReloadNow loads a new bundle and publishes it. On failure the current
// bundle stays active.
func (s *Scheduler) ReloadNow(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	bundle, err := s.load(ctx)
	if err != nil {
		metrics.RecordModelReload("error")
		return fmt.Errorf("failed to load model bundle: %w", err)
	}
	if !bundle.Ready() {
		metrics.RecordModelReload("error")
		return fmt.Errorf("reloaded bundle has no models")
	}

	old := s.holder.Swap(bundle)
	metrics.RecordModelReload("success")

	oldVersion := ""
	if old != nil {
		oldVersion = old.Version()
		s.retire(old)
	}
	s.predictions.LogModelReload(oldVersion, bundle.Version(), bundle.ModelNames())

	return nil
}

// retire closes a replaced bundle once in-flight predictions have drained
func (s *Scheduler) retire(old *ml.Bundle) {
	closeOld := func() {
		if err := old.Close(); err != nil {
			s.logger.WithError(err).WithField("version", old.Version()).Warn("Failed to close replaced model bundle")
		}
	}
	if s.drainPeriod <= 0 {
		closeOld()
		return
	}
	time.AfterFunc(s.drainPeriod, closeOld)
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop waits for a running reload to finish and stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled reload
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}
