// Package scheduler runs the retention cleanup on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/errtrack/internal/metrics"
	"github.com/robfig/cron/v3"
)

const defaultRunTimeout = 5 * time.Minute

// Cleaner deletes terminal records older than daysToKeep.
// *report.Service satisfies it.
type Cleaner interface {
	Cleanup(ctx context.Context, daysToKeep int) (int64, error)
}

// Scheduler triggers Cleaner on a cron spec. Runs never overlap and a
// panicking run is logged and counted as failed.
type Scheduler struct {
	cleaner    Cleaner
	daysToKeep int
	metrics    *metrics.Metrics
	logger     *slog.Logger
	timeout    time.Duration

	cron *cron.Cron
	ctx  context.Context
}

// New builds a Scheduler. m may be nil.
func New(cleaner Cleaner, daysToKeep int, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cleaner:    cleaner,
		daysToKeep: daysToKeep,
		metrics:    m,
		logger:     logger,
		timeout:    defaultRunTimeout,
	}
}

// Start registers the cleanup job under schedule (standard cron syntax or
// a descriptor such as @daily) and starts the cron loop. Runs are bounded
// by ctx.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	if _, err := c.AddFunc(schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	s.ctx = ctx
	s.cron = c
	c.Start()
	s.logger.Info("retention scheduler started", "schedule", schedule, "days_to_keep", s.daysToKeep)
	return nil
}

// Stop halts the cron loop and waits for a running cleanup to finish or
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for retention cleanup: %w", ctx.Err())
	}
}

// RunOnce performs one cleanup pass and returns the number of deleted
// records. Panics from the cleaner are converted to errors.
func (s *Scheduler) RunOnce(ctx context.Context) (deleted int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			deleted, err = 0, fmt.Errorf("retention cleanup panicked: %v", rec)
		}
		s.metrics.RecordCleanup(deleted, err)
		if err != nil {
			s.logger.ErrorContext(ctx, "retention cleanup failed",
				"days_to_keep", s.daysToKeep, "error", err)
			return
		}
		s.logger.InfoContext(ctx, "retention cleanup completed",
			"days_to_keep", s.daysToKeep,
			"deleted", deleted,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	return s.cleaner.Cleanup(ctx, s.daysToKeep)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
