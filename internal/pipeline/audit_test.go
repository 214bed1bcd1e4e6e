package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

func seedAuditResults(t *testing.T, store *InMemoryStore, period domain.Period) {
	t.Helper()
	accountA, accountB := uuid.New(), uuid.New()
	rows := []domain.StageResult{
		{ID: uuid.New(), AccountID: &accountA, Domain: "a.com", Stage: stage.Summary, PeriodStart: period.Start, PeriodEnd: period.End, Output: json.RawMessage(`{"summary": "a"}`), Status: domain.ResultSuccess, CreatedAt: time.Now()},
		{ID: uuid.New(), AccountID: &accountB, Domain: "b.com", Stage: stage.Summary, PeriodStart: period.Start, PeriodEnd: period.End, Output: json.RawMessage(`{"summary": "b"}`), Status: domain.ResultSuccess, CreatedAt: time.Now()},
		{ID: uuid.New(), AccountID: &accountA, Domain: "a.com", Stage: stage.Opportunity, PeriodStart: period.Start, PeriodEnd: period.End, Output: json.RawMessage(`{"tasks": [{"title": "t"}]}`), Status: domain.ResultSuccess, CreatedAt: time.Now()},
	}
	if err := store.CreateResults(context.Background(), rows); err != nil {
		t.Fatal(err)
	}
}

func TestRunAudit_TwoAggregatedRows(t *testing.T) {
	inv := newFakeInvoker()
	inv.respond(stage.Guardian, `{"recommendations": [{"title": "Tighten summary prompts", "severity": "low"}]}`)
	inv.respond(stage.GovernanceSentinel, `{"recommendations": [{"title": "Verify task dedup", "severity": "medium"}]}`)
	store := NewInMemoryStore()
	o := newTestOrchestrator(t, inv, store)

	ref := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	period := domain.PreviousMonth(ref)
	seedAuditResults(t, store, period)

	report, err := o.RunAudit(context.Background(), ref, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped {
		t.Fatalf("report skipped: %s", report.SkipReason)
	}
	if len(report.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(report.Groups))
	}
	// summary sorts before opportunity in the fixed processing order.
	if report.Groups[0].Stage != stage.Summary || report.Groups[1].Stage != stage.Opportunity {
		t.Errorf("group order = %s, %s", report.Groups[0].Stage, report.Groups[1].Stage)
	}
	if report.Groups[0].ResultCount != 2 {
		t.Errorf("summary group has %d results, want 2", report.Groups[0].ResultCount)
	}

	// Two auditors x two groups.
	if got := inv.callCount(stage.Guardian); got != 2 {
		t.Errorf("guardian called %d times, want 2", got)
	}
	if got := inv.callCount(stage.GovernanceSentinel); got != 2 {
		t.Errorf("governance_sentinel called %d times, want 2", got)
	}

	for _, name := range stage.AuditStages {
		row, err := store.FindResult(context.Background(), nil, name, period)
		if err != nil || row == nil {
			t.Fatalf("missing aggregated %s row", name)
		}
		if row.AccountID != nil {
			t.Errorf("%s row has an account, want system-wide nil", name)
		}
		if row.Status != domain.ResultSuccess {
			t.Errorf("%s row status = %s, want success", name, row.Status)
		}
	}
}

func TestRunAudit_DupGuard(t *testing.T) {
	inv := newFakeInvoker()
	inv.respond(stage.Guardian, `{"recommendations": [{"title": "r"}]}`)
	inv.respond(stage.GovernanceSentinel, `{"recommendations": [{"title": "r"}]}`)
	store := NewInMemoryStore()
	o := newTestOrchestrator(t, inv, store)

	ref := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	seedAuditResults(t, store, domain.PreviousMonth(ref))

	if report, err := o.RunAudit(context.Background(), ref, false); err != nil || report.Skipped {
		t.Fatalf("first run: %+v, %v", report, err)
	}
	calls := len(inv.calls)

	report, err := o.RunAudit(context.Background(), ref, false)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped || report.SkipReason != SkipAlreadyExists {
		t.Fatalf("second run = %+v, want dup skip", report)
	}
	if len(inv.calls) != calls {
		t.Error("second run must make no agent calls")
	}
}

func TestRunAudit_NoResultsSkips(t *testing.T) {
	inv := newFakeInvoker()
	store := NewInMemoryStore()
	o := newTestOrchestrator(t, inv, store)

	report, err := o.RunAudit(context.Background(), time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped || report.SkipReason != "no_results" {
		t.Fatalf("report = %+v, want no_results skip", report)
	}
}

func TestRunAudit_GroupFailureIsolated(t *testing.T) {
	inv := newFakeInvoker()
	// Guardian fails every attempt on the first group, then recovers.
	inv.fail(stage.Guardian, errors.New("guardian down"))
	inv.fail(stage.Guardian, errors.New("guardian down"))
	inv.fail(stage.Guardian, errors.New("guardian down"))
	inv.respond(stage.Guardian, `{"recommendations": [{"title": "opp finding"}]}`)
	inv.respond(stage.GovernanceSentinel, `{"recommendations": [{"title": "gov finding"}]}`)
	store := NewInMemoryStore()
	o := newTestOrchestrator(t, inv, store)

	ref := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	period := domain.PreviousMonth(ref)
	seedAuditResults(t, store, period)

	report, err := o.RunAudit(context.Background(), ref, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Groups[0].GuardianOK {
		t.Error("guardian should have failed on the summary group")
	}
	if !report.Groups[0].GovernanceOK {
		t.Error("governance_sentinel should still audit the group guardian failed on")
	}
	if !report.Groups[1].GuardianOK {
		t.Error("guardian should recover on the second group")
	}

	// The aggregated guardian row still exists and embeds the failure.
	row, _ := store.FindResult(context.Background(), nil, stage.Guardian, period)
	if row == nil {
		t.Fatal("missing aggregated guardian row after partial failure")
	}
	if !strings.Contains(string(row.Output), "guardian down") {
		t.Errorf("aggregated output lacks the group failure: %s", row.Output)
	}
}

func TestRunAudit_HistoryFeedsAuditors(t *testing.T) {
	inv := newFakeInvoker()
	inv.respond(stage.Guardian, `{"recommendations": [{"title": "new finding"}]}`)
	inv.respond(stage.GovernanceSentinel, `{"recommendations": [{"title": "new finding"}]}`)
	store := NewInMemoryStore()
	o := newTestOrchestrator(t, inv, store)

	ref := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	seedAuditResults(t, store, domain.PreviousMonth(ref))

	reviewed := time.Now()
	rec := domain.Recommendation{
		ID:           uuid.New(),
		ResultID:     uuid.New(),
		Auditor:      stage.Guardian,
		AuditedStage: stage.Summary,
		Title:        "Previously approved advice",
		ReviewStatus: domain.ReviewPass,
		CreatedAt:    reviewed,
		ReviewedAt:   &reviewed,
	}
	if err := store.CreateRecommendations(context.Background(), []domain.Recommendation{rec}); err != nil {
		t.Fatal(err)
	}

	if _, err := o.RunAudit(context.Background(), ref, false); err != nil {
		t.Fatal(err)
	}

	var summaryGroupPayload *stage.Payload
	for _, c := range inv.calls {
		if c.Stage == stage.Guardian && strings.Contains(string(c.Payload.AdditionalData), `"audited_stage":"summary"`) {
			summaryGroupPayload = c.Payload
		}
	}
	if summaryGroupPayload == nil {
		t.Fatal("no guardian call for the summary group")
	}
	if !strings.Contains(string(summaryGroupPayload.AdditionalData), "Previously approved advice") {
		t.Error("audit payload lacks the approved history item")
	}
}

func TestRunAudit_RecommendationsStored(t *testing.T) {
	inv := newFakeInvoker()
	inv.respond(stage.Guardian, `{"recommendations": [{"title": "A", "verdict": "PASS", "confidence": 0.9}, {"title": "B"}]}`)
	inv.respond(stage.GovernanceSentinel, `{"findings": [{"title": "C"}]}`)
	store := NewInMemoryStore()
	o := newTestOrchestrator(t, inv, store)

	ref := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	seedAuditResults(t, store, domain.PreviousMonth(ref))

	report, err := o.RunAudit(context.Background(), ref, false)
	if err != nil {
		t.Fatal(err)
	}

	store.mu.RLock()
	total := len(store.recommendations)
	var guardianCount int
	for _, r := range store.recommendations {
		if r.Auditor == stage.Guardian {
			guardianCount++
			if r.ResultID != report.GuardianResultID {
				t.Errorf("guardian rec points at %s, want %s", r.ResultID, report.GuardianResultID)
			}
		}
	}
	store.mu.RUnlock()

	// 2 guardian findings x 2 groups + 1 sentinel finding x 2 groups.
	if total != 6 {
		t.Errorf("stored %d recommendations, want 6", total)
	}
	if guardianCount != 4 {
		t.Errorf("guardian recommendations = %d, want 4", guardianCount)
	}
}
