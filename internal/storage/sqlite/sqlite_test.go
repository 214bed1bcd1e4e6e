package sqlite

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func monthPeriod() domain.Period {
	return domain.NewPeriod(
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	)
}

func TestResultRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	accountID := uuid.New()
	period := monthPeriod()

	row := domain.StageResult{
		ID:          uuid.New(),
		AccountID:   &accountID,
		Domain:      "brightsmile.com",
		Stage:       "summary",
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Input:       json.RawMessage(`{"metrics": {"sessions": 1}}`),
		Output:      json.RawMessage(`{"summary": "ok"}`),
		Status:      domain.ResultSuccess,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Results().CreateResults(ctx, []domain.StageResult{row}); err != nil {
		t.Fatalf("creating result: %v", err)
	}

	got, err := s.Results().FindResult(ctx, &accountID, "summary", period)
	if err != nil {
		t.Fatalf("finding result: %v", err)
	}
	if got == nil {
		t.Fatal("result not found")
	}
	if got.Status != domain.ResultSuccess || got.Domain != "brightsmile.com" {
		t.Errorf("got %+v", got)
	}
	if string(got.Output) != `{"summary": "ok"}` {
		t.Errorf("output = %s", got.Output)
	}

	// Different period: no match.
	other := domain.NewPeriod(
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	)
	if got, err := s.Results().FindResult(ctx, &accountID, "summary", other); err != nil || got != nil {
		t.Errorf("unexpected match for other period: %v, %v", got, err)
	}
}

func TestFindResult_SystemRow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	period := monthPeriod()

	row := domain.StageResult{
		ID:          uuid.New(),
		Stage:       "guardian",
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Output:      json.RawMessage(`{"groups": []}`),
		Status:      domain.ResultSuccess,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Results().CreateResults(ctx, []domain.StageResult{row}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Results().FindResult(ctx, nil, "guardian", period)
	if err != nil || got == nil {
		t.Fatalf("system row lookup: %v, %v", got, err)
	}
	if got.AccountID != nil {
		t.Error("system row must have no account")
	}
}

func TestListSuccessfulByPeriod_Excludes(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	period := monthPeriod()
	accountID := uuid.New()

	rows := []domain.StageResult{
		{ID: uuid.New(), AccountID: &accountID, Stage: "summary", PeriodStart: period.Start, PeriodEnd: period.End, Output: json.RawMessage(`{"a":1}`), Status: domain.ResultSuccess, CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), AccountID: &accountID, Stage: "opportunity", PeriodStart: period.Start, PeriodEnd: period.End, Output: json.RawMessage(`{"a":1}`), Status: domain.ResultError, CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), Stage: "guardian", PeriodStart: period.Start, PeriodEnd: period.End, Output: json.RawMessage(`{"a":1}`), Status: domain.ResultSuccess, CreatedAt: time.Now().UTC()},
	}
	if err := s.Results().CreateResults(ctx, rows); err != nil {
		t.Fatal(err)
	}

	got, err := s.Results().ListSuccessfulByPeriod(ctx, period, []string{"guardian", "governance_sentinel"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Stage != "summary" {
		t.Errorf("got %+v, want only the summary success", got)
	}
}

func TestAccounts_ListActive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	db := s.GormDB()
	for _, a := range []struct {
		domain string
		active bool
	}{
		{"b.com", true},
		{"a.com", true},
		{"c.com", false},
	} {
		if err := db.Exec(
			"INSERT INTO accounts (id, domain, name, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			uuid.New(), a.domain, a.domain, a.active, time.Now().UTC(), time.Now().UTC(),
		).Error; err != nil {
			t.Fatal(err)
		}
	}

	accounts, err := s.Accounts().ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[0].Domain != "a.com" || accounts[1].Domain != "b.com" {
		t.Errorf("order = %s, %s", accounts[0].Domain, accounts[1].Domain)
	}
}

func TestRecommendations_ReviewCycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := domain.Recommendation{
		ID:           uuid.New(),
		ResultID:     uuid.New(),
		Auditor:      "guardian",
		AuditedStage: "summary",
		Title:        "Tighten prompts",
		Severity:     "low",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Recommendations().CreateRecommendations(ctx, []domain.Recommendation{rec}); err != nil {
		t.Fatal(err)
	}

	// Unreviewed rows must not appear in history.
	reviewed, err := s.Recommendations().ListReviewed(ctx, "summary", domain.ReviewPass, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(reviewed) != 0 {
		t.Fatalf("unreviewed rec surfaced in history: %+v", reviewed)
	}

	if err := s.Recommendations().ReviewRecommendation(ctx, rec.ID, domain.ReviewPass, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	reviewed, err = s.Recommendations().ListReviewed(ctx, "summary", domain.ReviewPass, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(reviewed) != 1 || reviewed[0].ReviewStatus != domain.ReviewPass {
		t.Fatalf("reviewed = %+v", reviewed)
	}

	if err := s.Recommendations().ReviewRecommendation(ctx, uuid.New(), domain.ReviewPass, time.Now().UTC()); err == nil {
		t.Error("expected error reviewing unknown recommendation")
	}
}

func TestTasks_CreateBatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	accountID := uuid.New()

	tasks := []domain.Task{
		{ID: uuid.New(), AccountID: accountID, Domain: "a.com", Title: "T1", Category: domain.CategoryUser, OriginStage: "opportunity", Status: domain.TaskPending, Metadata: json.RawMessage(`{}`), CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), AccountID: accountID, Domain: "a.com", Title: "T2", Category: domain.CategoryAlloro, OriginStage: "cro_optimizer", Status: domain.TaskPending, Metadata: json.RawMessage(`{}`), CreatedAt: time.Now().UTC()},
	}
	if err := s.Tasks().CreateTasks(ctx, tasks); err != nil {
		t.Fatal(err)
	}
}
