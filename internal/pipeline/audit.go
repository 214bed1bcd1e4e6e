package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

// historyLimit bounds the reviewed-recommendation context given to each
// auditor, per review status.
const historyLimit = 50

// auditGroupOrder fixes the processing order for known stages. Stages outside
// this list (none today) would sort alphabetically after it.
var auditGroupOrder = map[string]int{
	stage.Proofline:      0,
	stage.Summary:        1,
	stage.ReferralEngine: 2,
	stage.Opportunity:    3,
	stage.CROOptimizer:   4,
	stage.GBPOptimizer:   5,
}

// RunAudit runs the period-wide audit: every successful stage result for the
// previous month, grouped by stage, is independently reviewed by the guardian
// and governance_sentinel auditors. Exactly two aggregated system rows are
// written per audited period regardless of group count, each carrying its
// auditor's per-group outputs and failures.
func (o *Orchestrator) RunAudit(ctx context.Context, ref time.Time, force bool) (*AuditReport, error) {
	start := o.now()
	period := domain.PreviousMonth(ref)
	report := &AuditReport{Period: period}

	// Dup guard on the guardian row: the two aggregated rows are written
	// together, so one key covers both.
	if !force {
		done, err := o.alreadyDone(ctx, nil, stage.Guardian, period)
		if err != nil {
			return nil, err
		}
		if done {
			o.logger.InfoContext(ctx, "audit skipped",
				slog.String("period", period.Key()),
				slog.String("reason", SkipAlreadyExists),
			)
			report.Skipped = true
			report.SkipReason = SkipAlreadyExists
			o.recordRun("audit", OutcomeSkipped, start)
			return report, nil
		}
	}

	results, err := o.stores.Results.ListSuccessfulByPeriod(ctx, period, stage.AuditStages)
	if err != nil {
		return nil, fmt.Errorf("listing results for audit: %w", err)
	}
	if len(results) == 0 {
		o.logger.InfoContext(ctx, "audit skipped",
			slog.String("period", period.Key()),
			slog.String("reason", "no_results"),
		)
		report.Skipped = true
		report.SkipReason = "no_results"
		o.recordRun("audit", OutcomeSkipped, start)
		return report, nil
	}

	groups := groupByStage(results)

	guardian, err := o.registry.Get(stage.Guardian)
	if err != nil {
		return nil, err
	}
	sentinel, err := o.registry.Get(stage.GovernanceSentinel)
	if err != nil {
		return nil, err
	}

	guardianOut := &auditorRun{auditor: guardian}
	sentinelOut := &auditorRun{auditor: sentinel}

	for i, g := range groups {
		if i > 0 {
			if err := o.pause(ctx, o.cfg.PacingDelay()); err != nil {
				return report, err
			}
		}

		outcome := GroupOutcome{Stage: g.stage, ResultCount: len(g.results)}

		// Each auditor call carries its own retry budget. A guardian
		// failure on a group does not stop the sentinel from seeing it.
		outcome.GuardianOK, outcome.GuardianError = o.auditGroup(ctx, guardianOut, g, period)
		outcome.GovernanceOK, outcome.GovernanceError = o.auditGroup(ctx, sentinelOut, g, period)

		report.Groups = append(report.Groups, outcome)
	}

	now := o.now()
	guardianRow := aggregatedResult(stage.Guardian, period, guardianOut, now)
	sentinelRow := aggregatedResult(stage.GovernanceSentinel, period, sentinelOut, now)

	if err := o.stores.Results.CreateResults(ctx, []domain.StageResult{guardianRow, sentinelRow}); err != nil {
		return nil, fmt.Errorf("committing audit results: %w", err)
	}
	report.GuardianResultID = guardianRow.ID
	report.GovernanceResultID = sentinelRow.ID

	// Recommendation persistence is best-effort: parse failures or insert
	// failures leave the aggregated rows in place.
	o.storeRecommendations(ctx, guardianRow, guardianOut)
	o.storeRecommendations(ctx, sentinelRow, sentinelOut)

	o.logger.InfoContext(ctx, "audit finished",
		slog.String("period", period.Key()),
		slog.Int("groups", len(groups)),
		slog.Int("results", len(results)),
	)
	o.recordRun("audit", OutcomeSuccess, start)
	return report, nil
}

// stageGroup is one audited stage's successful results for the period.
type stageGroup struct {
	stage   string
	results []domain.StageResult
}

// groupByStage buckets results by stage in a fixed processing order.
func groupByStage(results []domain.StageResult) []stageGroup {
	byStage := map[string][]domain.StageResult{}
	for _, r := range results {
		byStage[r.Stage] = append(byStage[r.Stage], r)
	}

	names := make([]string, 0, len(byStage))
	for name := range byStage {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := auditGroupOrder[names[i]]
		oj, jok := auditGroupOrder[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		default:
			return names[i] < names[j]
		}
	})

	groups := make([]stageGroup, 0, len(names))
	for _, name := range names {
		groups = append(groups, stageGroup{stage: name, results: byStage[name]})
	}
	return groups
}

// auditorRun accumulates one auditor's per-group outputs across a run.
type auditorRun struct {
	auditor *stage.Agent
	groups  []auditedGroup
}

// auditedGroup is one auditor's verdict payload (or failure) for one group.
type auditedGroup struct {
	Stage  string          `json:"stage"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// auditGroup runs one auditor over one stage group under the auditor's retry
// budget and records the group's output or failure on the run.
func (o *Orchestrator) auditGroup(ctx context.Context, run *auditorRun, g stageGroup, period domain.Period) (ok bool, errMsg string) {
	payload, err := o.buildAuditPayload(ctx, run.auditor, g, period)
	if err == nil {
		var out json.RawMessage
		out, err = o.callWithRetry(ctx, run.auditor, payload)
		if err == nil {
			run.groups = append(run.groups, auditedGroup{Stage: g.stage, Output: out})
			return true, ""
		}
	}

	o.logger.ErrorContext(ctx, "audit group failed",
		slog.String("auditor", run.auditor.Name),
		slog.String("stage", g.stage),
		slog.String("error", err.Error()),
	)
	run.groups = append(run.groups, auditedGroup{Stage: g.stage, Error: err.Error()})
	return false, err.Error()
}

// buildAuditPayload assembles the auditor's input for one group: the group's
// result outputs plus the historical review context that teaches the auditor
// which past findings operators accepted and which they rejected.
func (o *Orchestrator) buildAuditPayload(ctx context.Context, auditor *stage.Agent, g stageGroup, period domain.Period) (*stage.Payload, error) {
	approved, err := o.stores.Recommendations.ListReviewed(ctx, g.stage, domain.ReviewPass, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading approved history: %w", err)
	}
	rejected, err := o.stores.Recommendations.ListReviewed(ctx, g.stage, domain.ReviewReject, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading rejected history: %w", err)
	}

	type auditedResult struct {
		ResultID  string          `json:"result_id"`
		AccountID string          `json:"account_id,omitempty"`
		Domain    string          `json:"domain,omitempty"`
		Output    json.RawMessage `json:"output"`
	}
	items := make([]auditedResult, 0, len(g.results))
	for _, r := range g.results {
		item := auditedResult{ResultID: r.ID.String(), Domain: r.Domain, Output: r.Output}
		if r.AccountID != nil {
			item.AccountID = r.AccountID.String()
		}
		items = append(items, item)
	}

	extra, err := json.Marshal(map[string]any{
		"audited_stage": g.stage,
		"results":       items,
		"history": map[string]any{
			"approved": historyContext(approved),
			"rejected": historyContext(rejected),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling audit payload: %w", err)
	}

	return &stage.Payload{
		Agent: auditor.Name,
		DateRange: stage.DateRange{
			Start: period.Start.Format("2006-01-02"),
			End:   period.End.Format("2006-01-02"),
		},
		AdditionalData: extra,
	}, nil
}

// historyItem is the compact wire form of a reviewed recommendation.
type historyItem struct {
	Title       string  `json:"title"`
	Explanation string  `json:"explanation,omitempty"`
	Severity    string  `json:"severity,omitempty"`
	Verdict     string  `json:"verdict,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

func historyContext(recs []domain.Recommendation) []historyItem {
	items := make([]historyItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, historyItem{
			Title:       r.Title,
			Explanation: r.Explanation,
			Severity:    r.Severity,
			Verdict:     r.Verdict,
			Confidence:  r.Confidence,
		})
	}
	return items
}

// aggregatedResult builds one auditor's system-wide aggregated row. The row
// has no account and is recorded as success even when individual groups
// failed; those failures live inside the output payload.
func aggregatedResult(auditorName string, period domain.Period, run *auditorRun, now time.Time) domain.StageResult {
	output, _ := json.Marshal(map[string]any{
		"groups": run.groups,
	})
	return domain.StageResult{
		ID:          uuid.New(),
		Stage:       auditorName,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Output:      output,
		Status:      domain.ResultSuccess,
		CreatedAt:   now,
	}
}

// storeRecommendations parses structured findings out of an auditor's group
// outputs and bulk-inserts them, logging and moving on when parsing or the
// insert fails.
func (o *Orchestrator) storeRecommendations(ctx context.Context, row domain.StageResult, run *auditorRun) {
	var recs []domain.Recommendation
	for _, g := range run.groups {
		if g.Output == nil {
			continue
		}
		parsed, err := parseRecommendations(row.ID, row.Stage, g.Stage, g.Output, o.now())
		if err != nil {
			o.logger.WarnContext(ctx, "recommendation parse failed",
				slog.String("auditor", row.Stage),
				slog.String("stage", g.Stage),
				slog.String("error", err.Error()),
			)
			continue
		}
		recs = append(recs, parsed...)
	}
	if len(recs) == 0 {
		return
	}
	if err := o.stores.Recommendations.CreateRecommendations(ctx, recs); err != nil {
		o.logger.ErrorContext(ctx, "recommendation insert failed",
			slog.String("auditor", row.Stage),
			slog.Int("count", len(recs)),
			slog.String("error", err.Error()),
		)
		return
	}
	if o.metrics != nil {
		o.metrics.RecommendationsTotal.WithLabelValues(row.Stage).Add(float64(len(recs)))
	}
	o.logger.InfoContext(ctx, "recommendations created",
		slog.String("auditor", row.Stage),
		slog.Int("count", len(recs)),
	)
}
