package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/metrics"
	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

// monthlyChain is the dependency-ordered monthly stage sequence. summary
// strictly precedes everything downstream; referral_engine consumes the raw
// bundle (a parallel sibling of summary's input, not its output) but is still
// executed, persisted, and task-extracted after summary in run order.
var monthlyChain = []string{
	stage.Summary,
	stage.ReferralEngine,
	stage.Opportunity,
	stage.CROOptimizer,
	stage.GBPOptimizer, // Optional: only runs when an endpoint is bound.
}

// MonthlyEligible reports whether the previous month's metrics are considered
// consolidated at ref (the calendar gate for the all-accounts trigger).
func (o *Orchestrator) MonthlyEligible(ref time.Time) bool {
	return ref.Day() >= o.cfg.MinMonthlyDay()
}

// RunMonthlyAll runs the monthly pipeline for every active account once the
// calendar gate holds, sequentially with pacing between accounts.
func (o *Orchestrator) RunMonthlyAll(ctx context.Context, ref time.Time) (*Report, error) {
	period := domain.PreviousMonth(ref)
	report := &Report{Pipeline: "monthly", Period: period}

	if !o.MonthlyEligible(ref) {
		o.logger.InfoContext(ctx, "monthly pipeline not yet eligible",
			slog.Time("ref", ref),
			slog.Int("min_day", o.cfg.MinMonthlyDay()),
		)
		return report, nil
	}

	accounts, err := o.stores.Accounts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	for i, account := range accounts {
		if i > 0 {
			if err := o.pause(ctx, o.cfg.PacingDelay()); err != nil {
				return report, err
			}
		}
		report.add(o.RunMonthly(ctx, account, ref, false))
	}

	o.logger.InfoContext(ctx, "monthly pipeline finished",
		slog.String("period", period.Key()),
		slog.Int("accounts", len(accounts)),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// RunMonthly runs the ordered monthly chain for one account and the previous
// full calendar month. force bypasses the idempotency guard.
//
// Persistence is deferred: no stage result, no raw metric snapshot, and no
// derived task is written until every attempted stage has validator-passed.
// If any stage exhausts its retries, the only row written is a single error
// marker for the failed stage.
func (o *Orchestrator) RunMonthly(ctx context.Context, account domain.Account, ref time.Time, force bool) AccountOutcome {
	start := o.now()
	period := domain.PreviousMonth(ref)
	outcome := AccountOutcome{AccountID: account.ID, Domain: account.Domain}

	// Idempotency guard, keyed on the summary stage: one check at the start
	// of the run covers the whole chain.
	if !force {
		done, err := o.alreadyDone(ctx, &account.ID, stage.Summary, period)
		if err != nil {
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			return outcome
		}
		if done {
			o.logger.InfoContext(ctx, "monthly pipeline skipped",
				slog.String("domain", account.Domain),
				slog.String("period", period.Key()),
				slog.String("reason", SkipAlreadyExists),
			)
			outcome.Status = OutcomeSkipped
			outcome.Reason = SkipAlreadyExists
			o.recordRun("monthly", OutcomeSkipped, start)
			return outcome
		}
	}

	bundle, err := o.fetcher.FetchBundle(ctx, account, period)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Error = fmt.Sprintf("fetching metrics: %v", err)
		o.recordRun("monthly", OutcomeFailed, start)
		return outcome
	}

	var production json.RawMessage
	if o.production != nil {
		production, err = o.production.FetchProduction(ctx, account, period)
		if err != nil {
			// Production history is supplementary context, not a gate.
			o.logger.WarnContext(ctx, "production history fetch failed",
				slog.String("domain", account.Domain),
				slog.String("error", err.Error()),
			)
		}
	}

	run := &monthlyRun{
		account: account,
		period:  period,
		bundle:  bundle,
		input: stage.Input{
			Account:    account,
			Period:     period,
			Metrics:    bundle,
			Production: production,
		},
	}

	for _, name := range monthlyChain {
		agent, err := o.registry.Get(name)
		if err != nil {
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			o.recordRun("monthly", OutcomeFailed, start)
			return outcome
		}
		if name == stage.GBPOptimizer && agent.Endpoint == "" {
			// The only optional stage: silently absent when unbound.
			continue
		}

		if err := o.runMonthlyStage(ctx, run, agent); err != nil {
			o.logger.ErrorContext(ctx, "monthly pipeline failed",
				slog.String("domain", account.Domain),
				slog.String("stage", name),
				slog.String("period", period.Key()),
				slog.String("error", err.Error()),
			)
			marker := errorResult(&account, name, period, err, o.now())
			if storeErr := o.stores.Results.CreateResults(ctx, []domain.StageResult{marker}); storeErr != nil {
				o.logger.ErrorContext(ctx, "writing error marker failed",
					slog.String("domain", account.Domain),
					slog.String("error", storeErr.Error()),
				)
			}
			o.notifyFailure(ctx, Event{
				Pipeline: "monthly",
				Domain:   account.Domain,
				Stage:    name,
				Period:   period,
				Error:    err.Error(),
			})
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			o.recordRun("monthly", OutcomeFailed, start)
			return outcome
		}
	}

	// Full chain validator-passed: commit everything at once.
	if err := o.stores.Results.CreateResults(ctx, run.pending); err != nil {
		outcome.Status = OutcomeFailed
		outcome.Error = fmt.Sprintf("committing results: %v", err)
		o.recordRun("monthly", OutcomeFailed, start)
		return outcome
	}

	// Task creation is best-effort relative to pipeline success: extraction
	// or insert failures are logged, never escalated.
	o.createTasksFromRun(ctx, run)

	o.logger.InfoContext(ctx, "monthly pipeline succeeded",
		slog.String("domain", account.Domain),
		slog.String("period", period.Key()),
		slog.Int("stages", len(run.pending)),
	)
	outcome.Status = OutcomeSuccess
	o.recordRun("monthly", OutcomeSuccess, start)
	return outcome
}

// monthlyRun accumulates a run's state in memory until the final commit.
type monthlyRun struct {
	account domain.Account
	period  domain.Period
	bundle  *metrics.Bundle
	input   stage.Input
	pending []domain.StageResult // Deferred writes, committed together.
	outputs map[string]json.RawMessage
}

// runMonthlyStage builds the stage's payload from its declared upstream data,
// calls the agent under its retry budget, and stages the validated result for
// the deferred commit.
func (o *Orchestrator) runMonthlyStage(ctx context.Context, run *monthlyRun, agent *stage.Agent) error {
	payload, err := agent.BuildPayload(&run.input)
	if err != nil {
		return err
	}

	out, err := o.callWithRetry(ctx, agent, payload)
	if err != nil {
		return err
	}

	inputJSON, _ := json.Marshal(payload)
	run.pending = append(run.pending, domain.StageResult{
		ID:          uuid.New(),
		AccountID:   &run.account.ID,
		Domain:      run.account.Domain,
		Stage:       agent.Name,
		PeriodStart: run.period.Start,
		PeriodEnd:   run.period.End,
		Input:       inputJSON,
		Output:      out,
		Status:      domain.ResultSuccess,
		CreatedAt:   o.now(),
	})
	if run.outputs == nil {
		run.outputs = make(map[string]json.RawMessage)
	}
	run.outputs[agent.Name] = out

	// summary's validated output becomes downstream upstream data.
	if agent.Name == stage.Summary {
		run.input.Summary = out
	}
	return nil
}

// createTasksFromRun extracts tasks from each committed stage output in chain
// order and bulk-inserts them.
func (o *Orchestrator) createTasksFromRun(ctx context.Context, run *monthlyRun) {
	var tasks []domain.Task
	for _, result := range run.pending {
		extracted := o.extractTasks(ctx, run.account, result.Stage, result.Output)
		tasks = append(tasks, extracted...)
		if o.metrics != nil && len(extracted) > 0 {
			o.metrics.TasksExtractedTotal.WithLabelValues(result.Stage).Add(float64(len(extracted)))
		}
	}
	if len(tasks) == 0 {
		return
	}
	if err := o.stores.Tasks.CreateTasks(ctx, tasks); err != nil {
		o.logger.ErrorContext(ctx, "task insert failed",
			slog.String("domain", run.account.Domain),
			slog.Int("count", len(tasks)),
			slog.String("error", err.Error()),
		)
		return
	}
	o.logger.InfoContext(ctx, "tasks created",
		slog.String("domain", run.account.Domain),
		slog.Int("count", len(tasks)),
	)
}
