// Package domain defines cross-cutting entity types used across the system.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Account is a tenant identity. Accounts are created by onboarding and are
// read-only from the orchestrator's point of view.
type Account struct {
	ID        uuid.UUID
	Domain    string // Practice website domain, e.g. "smilebrightdental.com".
	Name      string
	Active    bool
	CreatedAt time.Time
}

// ResultStatus is the terminal state of a stage execution record.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
	// ResultPending marks an in-flight record. This implementation never
	// writes pending rows (results commit only after a full run validates)
	// but the idempotency check still honors them.
	ResultPending ResultStatus = "pending"
)

// StageResult is the durable record of one stage execution.
// Rows are immutable once written: a retry produces no row, only the final
// outcome of a pipeline run is persisted.
type StageResult struct {
	ID           uuid.UUID
	AccountID    *uuid.UUID // nil for system-wide audit stages.
	Domain       string
	Stage        string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Input        json.RawMessage
	Output       json.RawMessage
	Status       ResultStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// TaskCategory tags who a task is aimed at.
type TaskCategory string

const (
	// CategoryUser marks client-facing work the practice itself acts on.
	CategoryUser TaskCategory = "USER"
	// CategoryAlloro marks internal/agency work handled by the Alloro team.
	CategoryAlloro TaskCategory = "ALLORO"
)

// TaskPending is the initial status of every extracted task.
const TaskPending = "pending"

// Task is an actionable item derived from a stage's output. Tasks are created
// as a batch only after the owning pipeline run fully succeeds.
type Task struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Domain      string
	Title       string
	Description string
	Category    TaskCategory
	OriginStage string
	Status      string // "pending" until acted on downstream.
	Approved    bool
	DueDate     *time.Time
	Metadata    json.RawMessage // Unmapped source fields, preserved opaquely.
	CreatedAt   time.Time
}

// ReviewStatus is the human verdict on a recommendation.
type ReviewStatus string

const (
	ReviewPass   ReviewStatus = "PASS"
	ReviewReject ReviewStatus = "REJECT"
)

// Recommendation is an audit finding produced by the guardian or
// governance_sentinel review of other stages' outputs. ReviewStatus is unset
// at creation and later set by a human reviewer; reviewed rows feed back into
// the aggregator's historical context on future runs.
type Recommendation struct {
	ID           uuid.UUID
	ResultID     uuid.UUID // The aggregated StageResult this was parsed from.
	Auditor      string    // "guardian" or "governance_sentinel".
	AuditedStage string    // The stage group this finding reviews.
	Title        string
	Explanation  string
	Severity     string
	Verdict      string
	Confidence   float64
	ReviewStatus ReviewStatus // Empty until reviewed.
	CreatedAt    time.Time
	ReviewedAt   *time.Time
}
