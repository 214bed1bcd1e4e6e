package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

// ResultStore persists stage execution records.
// Implementations: postgres/sqlite-backed or in-memory.
type ResultStore interface {
	// CreateResults inserts a batch of results. The orchestrator defers all
	// writes for a run and commits them through a single call.
	CreateResults(ctx context.Context, results []domain.StageResult) error

	// FindResult returns the existing row for an idempotency key, or nil
	// when none exists. accountID is nil for system-wide stages.
	FindResult(ctx context.Context, accountID *uuid.UUID, stageName string, period domain.Period) (*domain.StageResult, error)

	// ListSuccessfulByPeriod returns every success row for the period across
	// all accounts, excluding the named stages.
	ListSuccessfulByPeriod(ctx context.Context, period domain.Period, excludeStages []string) ([]domain.StageResult, error)
}

// TaskStore persists extracted tasks.
type TaskStore interface {
	CreateTasks(ctx context.Context, tasks []domain.Task) error
}

// RecommendationStore persists audit findings and serves the aggregator's
// historical accept/reject context.
type RecommendationStore interface {
	CreateRecommendations(ctx context.Context, recs []domain.Recommendation) error

	// ListReviewed returns up to limit most-recently-reviewed rows with the
	// given review status for the audited stage.
	ListReviewed(ctx context.Context, auditedStage string, status domain.ReviewStatus, limit int) ([]domain.Recommendation, error)

	// ReviewRecommendation records a human verdict on a stored finding.
	ReviewRecommendation(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, reviewedAt time.Time) error
}

// AccountStore lists tenants. Read-only: accounts are owned by onboarding.
type AccountStore interface {
	ListActive(ctx context.Context) ([]domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// Stores bundles the persistence collaborators.
type Stores struct {
	Results         ResultStore
	Tasks           TaskStore
	Recommendations RecommendationStore
	Accounts        AccountStore
}

// Event describes a terminal pipeline failure for outbound notification.
type Event struct {
	Pipeline string
	Domain   string
	Stage    string
	Period   domain.Period
	Error    string
}

// Notifier delivers failure events. Best-effort: a notification failure
// never changes a run's outcome.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}
