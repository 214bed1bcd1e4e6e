// Package storage defines the unified Store interface that abstracts all
// persistence operations. Two backends are provided: SQLite (default,
// zero-config) and PostgreSQL (production).
package storage

import (
	"context"

	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

// Driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the unified persistence interface. It provides access to the
// pipeline's sub-stores through accessor methods; both backends implement it
// over the same GORM models.
type Store interface {
	Accounts() pipeline.AccountStore
	Results() pipeline.ResultStore
	Tasks() pipeline.TaskStore
	Recommendations() pipeline.RecommendationStore

	// Stores bundles the sub-stores for orchestrator wiring.
	Stores() pipeline.Stores

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
	Driver() string
}
