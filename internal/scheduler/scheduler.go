// Package scheduler wires the cron-driven pipeline triggers. Three fixed
// jobs run from config expressions: the daily pipeline, the monthly pipeline
// (self-gated by the calendar and the idempotency guard, so a daily-ish
// expression is safe), and the monthly system audit.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

// Runner is the subset of the orchestrator the scheduler drives.
type Runner interface {
	RunDailyAll(ctx context.Context, ref time.Time) (*pipeline.Report, error)
	RunMonthlyAll(ctx context.Context, ref time.Time) (*pipeline.Report, error)
	RunAudit(ctx context.Context, ref time.Time, force bool) (*pipeline.AuditReport, error)
}

// Scheduler runs the pipeline triggers on cron expressions.
type Scheduler struct {
	runner  Runner
	cron    *cron.Cron
	metrics *Metrics
	logger  *slog.Logger
	cfg     *config.SchedulerConfig
}

// New creates a Scheduler. Jobs are registered on Start.
func New(runner Runner, metrics *Metrics, logger *slog.Logger, cfg *config.SchedulerConfig) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		runner:  runner,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start registers the configured jobs and begins the cron loop. Returns a
// stop function that waits for a running job to finish.
func (s *Scheduler) Start(ctx context.Context) (func(), error) {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"daily", s.cfg.Daily(), func(ctx context.Context) error {
			_, err := s.runner.RunDailyAll(ctx, time.Now().UTC())
			return err
		}},
		{"monthly", s.cfg.Monthly(), func(ctx context.Context) error {
			_, err := s.runner.RunMonthlyAll(ctx, time.Now().UTC())
			return err
		}},
		{"audit", s.cfg.Audit(), func(ctx context.Context) error {
			_, err := s.runner.RunAudit(ctx, time.Now().UTC(), false)
			return err
		}},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		name, run := job.name, job.run
		if _, err := s.cron.AddFunc(job.spec, func() { s.fire(ctx, name, run) }); err != nil {
			return nil, fmt.Errorf("registering %s trigger %q: %w", job.name, job.spec, err)
		}
		s.logger.Info("trigger registered",
			slog.String("job", job.name),
			slog.String("cron", job.spec),
		)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler started")

	return func() {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.logger.Info("scheduler stopped")
	}, nil
}

// fire runs one trigger, recording its outcome.
func (s *Scheduler) fire(ctx context.Context, name string, run func(context.Context) error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.JobsFired.Inc()
	}
	s.logger.InfoContext(ctx, "trigger fired", slog.String("job", name))

	if err := run(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.JobsFailed.Inc()
		}
		s.logger.ErrorContext(ctx, "trigger failed",
			slog.String("job", name),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.JobsSucceeded.Inc()
		s.metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "trigger finished",
		slog.String("job", name),
		slog.Duration("duration", time.Since(start)),
	)
}
