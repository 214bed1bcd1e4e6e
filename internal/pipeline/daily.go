package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

// RunDailyAll runs the daily pipeline for every active account, sequentially,
// pausing between accounts to respect provider rate limits. ref is the
// reference date ("now" for cron triggers, injectable for deterministic runs).
func (o *Orchestrator) RunDailyAll(ctx context.Context, ref time.Time) (*Report, error) {
	accounts, err := o.stores.Accounts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	report := &Report{Pipeline: "daily", Period: domain.Day(ref.AddDate(0, 0, -1))}
	for i, account := range accounts {
		if i > 0 {
			if err := o.pause(ctx, o.cfg.PacingDelay()); err != nil {
				return report, err
			}
		}
		report.add(o.RunDaily(ctx, account, ref))
	}

	o.logger.InfoContext(ctx, "daily pipeline finished",
		slog.Int("accounts", len(accounts)),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// RunDaily runs the single-stage daily pipeline for one account. The
// proofline agent is fed yesterday's and the day before yesterday's raw
// bundles, fetched independently. On validator failure the entire attempt,
// fetch plus call, is retried at the client level.
func (o *Orchestrator) RunDaily(ctx context.Context, account domain.Account, ref time.Time) AccountOutcome {
	start := o.now()
	yesterday := domain.Day(ref.AddDate(0, 0, -1))
	dayBefore := domain.Day(ref.AddDate(0, 0, -2))

	outcome := AccountOutcome{AccountID: account.ID, Domain: account.Domain}

	agent, err := o.registry.Get(stage.Proofline)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}

	done, err := o.alreadyDone(ctx, &account.ID, stage.Proofline, yesterday)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	if done {
		outcome.Status = OutcomeSkipped
		outcome.Reason = SkipAlreadyExists
		o.recordRun("daily", OutcomeSkipped, start)
		return outcome
	}

	var lastPayload *stage.Payload
	out, err := o.withRetry(ctx, stage.Proofline, o.retryPolicy(agent.MaxAttempts), func(ctx context.Context) (json.RawMessage, error) {
		bundleY, err := o.fetcher.FetchBundle(ctx, account, yesterday)
		if err != nil {
			return nil, fmt.Errorf("fetching yesterday metrics: %w", err)
		}
		bundleD, err := o.fetcher.FetchBundle(ctx, account, dayBefore)
		if err != nil {
			return nil, fmt.Errorf("fetching day-before metrics: %w", err)
		}

		payload, err := agent.BuildPayload(&stage.Input{
			Account:  account,
			Period:   yesterday,
			Metrics:  bundleY,
			Previous: bundleD,
		})
		if err != nil {
			return nil, err
		}
		lastPayload = payload
		return o.invokeStage(ctx, agent, payload)
	})

	if err != nil {
		o.logger.ErrorContext(ctx, "daily pipeline failed",
			slog.String("domain", account.Domain),
			slog.String("period", yesterday.Key()),
			slog.String("error", err.Error()),
		)
		marker := errorResult(&account, stage.Proofline, yesterday, err, o.now())
		if storeErr := o.stores.Results.CreateResults(ctx, []domain.StageResult{marker}); storeErr != nil {
			o.logger.ErrorContext(ctx, "writing error marker failed",
				slog.String("domain", account.Domain),
				slog.String("error", storeErr.Error()),
			)
		}
		o.notifyFailure(ctx, Event{
			Pipeline: "daily",
			Domain:   account.Domain,
			Stage:    stage.Proofline,
			Period:   yesterday,
			Error:    err.Error(),
		})
		outcome.Status = OutcomeFailed
		outcome.Error = err.Error()
		o.recordRun("daily", OutcomeFailed, start)
		return outcome
	}

	result := domain.StageResult{
		ID:          uuid.New(),
		AccountID:   &account.ID,
		Domain:      account.Domain,
		Stage:       stage.Proofline,
		PeriodStart: yesterday.Start,
		PeriodEnd:   yesterday.End,
		Output:      out,
		Status:      domain.ResultSuccess,
		CreatedAt:   o.now(),
	}
	if lastPayload != nil {
		result.Input, _ = json.Marshal(lastPayload)
	}

	if err := o.stores.Results.CreateResults(ctx, []domain.StageResult{result}); err != nil {
		outcome.Status = OutcomeFailed
		outcome.Error = fmt.Sprintf("persisting result: %v", err)
		o.recordRun("daily", OutcomeFailed, start)
		return outcome
	}

	o.logger.InfoContext(ctx, "daily pipeline succeeded",
		slog.String("domain", account.Domain),
		slog.String("period", yesterday.Key()),
	)
	outcome.Status = OutcomeSuccess
	o.recordRun("daily", OutcomeSuccess, start)
	return outcome
}
