package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/metrics"
	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

// Orchestrator sequences pipeline stages per account and period. It is the
// main entry point for the daily, monthly, and system-audit pipelines.
type Orchestrator struct {
	registry   stage.Registry
	invoker    stage.Invoker
	fetcher    metrics.Fetcher
	production metrics.ProductionFetcher // nil = no production history for summary.
	stores     Stores
	notifier   Notifier // nil = failure notifications disabled.
	metrics    *Metrics // nil = no metrics.
	logger     *slog.Logger
	cfg        config.PipelineConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error // nil = real sleep.
}

// NewOrchestrator creates an orchestrator with the given collaborators.
func NewOrchestrator(
	registry stage.Registry,
	invoker stage.Invoker,
	fetcher metrics.Fetcher,
	stores Stores,
	logger *slog.Logger,
	cfg config.PipelineConfig,
) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		registry: registry,
		invoker:  invoker,
		fetcher:  fetcher,
		stores:   stores,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithProduction attaches the production-history collaborator.
func (o *Orchestrator) WithProduction(p metrics.ProductionFetcher) *Orchestrator {
	o.production = p
	return o
}

// WithNotifier enables failure notifications.
func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// WithMetrics attaches Prometheus metrics. Nil-safe (no-op if nil).
func (o *Orchestrator) WithMetrics(m *Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// retryPolicy builds the default fixed-delay budget for a call site.
func (o *Orchestrator) retryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = o.cfg.Attempts()
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Delay: o.cfg.RetryDelay()}
}

// alreadyDone consults the idempotency guard: an existing success or
// in-flight pending row for (account, stage, period) means the key's work is
// done and must not be repeated. Checked once per run, before any remote
// call is attempted; never re-checked mid-run.
func (o *Orchestrator) alreadyDone(ctx context.Context, accountID *uuid.UUID, stageName string, period domain.Period) (bool, error) {
	existing, err := o.stores.Results.FindResult(ctx, accountID, stageName, period)
	if err != nil {
		return false, fmt.Errorf("checking existing result: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	return existing.Status == domain.ResultSuccess || existing.Status == domain.ResultPending, nil
}

// invokeStage performs one remote call for a stage with the pre-built
// payload, recording call metrics.
func (o *Orchestrator) invokeStage(ctx context.Context, agent *stage.Agent, payload *stage.Payload) (json.RawMessage, error) {
	start := o.now()
	out, err := o.invoker.Invoke(ctx, agent, payload)
	if o.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		o.metrics.StageCallsTotal.WithLabelValues(agent.Name, status).Inc()
		o.metrics.StageCallDuration.WithLabelValues(agent.Name).Observe(o.now().Sub(start).Seconds())
	}
	return out, err
}

// callWithRetry wraps a stage invocation in the stage's retry budget.
func (o *Orchestrator) callWithRetry(ctx context.Context, agent *stage.Agent, payload *stage.Payload) (json.RawMessage, error) {
	return o.withRetry(ctx, agent.Name, o.retryPolicy(agent.MaxAttempts), func(ctx context.Context) (json.RawMessage, error) {
		return o.invokeStage(ctx, agent, payload)
	})
}

// recordRun updates run metrics for a finished pipeline invocation.
func (o *Orchestrator) recordRun(pipeline string, status OutcomeStatus, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RunsTotal.WithLabelValues(pipeline, string(status)).Inc()
	o.metrics.RunDuration.WithLabelValues(pipeline).Observe(o.now().Sub(start).Seconds())
}

// notifyFailure dispatches a failure event if a notifier is configured.
func (o *Orchestrator) notifyFailure(ctx context.Context, ev Event) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, ev)
}

// errorResult builds the single error marker row written when a run fails
// terminally. No partial stage results accompany it.
func errorResult(account *domain.Account, stageName string, period domain.Period, runErr error, now time.Time) domain.StageResult {
	r := domain.StageResult{
		ID:           uuid.New(),
		Stage:        stageName,
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,
		Status:       domain.ResultError,
		ErrorMessage: runErr.Error(),
		CreatedAt:    now,
	}
	if account != nil {
		id := account.ID
		r.AccountID = &id
		r.Domain = account.Domain
	}
	return r
}
