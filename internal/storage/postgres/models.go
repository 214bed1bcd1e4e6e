package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONB is a json.RawMessage that maps to GORM jsonb columns. The SQLite
// dialect stores it as TEXT.
type JSONB json.RawMessage

// AccountModel maps to the "accounts" table.
type AccountModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Domain    string    `gorm:"not null;uniqueIndex"`
	Name      string
	Active    bool `gorm:"not null;default:true;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AccountModel) TableName() string { return "accounts" }

// StageResultModel maps to the "stage_results" table. The idempotency key
// (account, stage, period) is enforced by the orchestrator's
// read-before-write, not a unique index: forced re-runs and NULL account
// audit rows both need additional inserts for the same key.
type StageResultModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccountID    *uuid.UUID `gorm:"type:uuid;index:idx_result_key"`
	Domain       string     `gorm:"index"`
	Stage        string     `gorm:"not null;index:idx_result_key"`
	PeriodStart  time.Time  `gorm:"type:date;not null;index:idx_result_key"`
	PeriodEnd    time.Time  `gorm:"type:date;not null;index:idx_result_key"`
	Input        JSONB      `gorm:"type:jsonb"`
	Output       JSONB      `gorm:"type:jsonb"`
	Status       string     `gorm:"not null;index"`
	ErrorMessage string
	CreatedAt    time.Time `gorm:"index"`
}

func (StageResultModel) TableName() string { return "stage_results" }

// TaskModel maps to the "tasks" table.
type TaskModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Domain      string    `gorm:"index"`
	Title       string    `gorm:"not null"`
	Description string
	Category    string `gorm:"not null;index"`
	OriginStage string `gorm:"not null;index"`
	Status      string `gorm:"not null;default:'pending'"`
	Approved    bool   `gorm:"not null;default:false"`
	DueDate     *time.Time
	Metadata    JSONB `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TaskModel) TableName() string { return "tasks" }

// RecommendationModel maps to the "recommendations" table.
type RecommendationModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResultID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Auditor      string    `gorm:"not null;index"`
	AuditedStage string    `gorm:"not null;index"`
	Title        string    `gorm:"not null"`
	Explanation  string
	Severity     string
	Verdict      string
	Confidence   float64
	ReviewStatus string `gorm:"index"` // Empty until reviewed.
	CreatedAt    time.Time
	ReviewedAt   *time.Time `gorm:"index"`
}

func (RecommendationModel) TableName() string { return "recommendations" }
