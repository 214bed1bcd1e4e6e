package postgres

import (
	"context"
	"sync"

	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
	"github.com/Hamiltonwise/signalsai-backend/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *DB

	// Sub-store instances, created lazily on first access.
	mu              sync.Mutex
	accounts        pipeline.AccountStore
	results         pipeline.ResultStore
	tasks           pipeline.TaskStore
	recommendations pipeline.RecommendationStore
}

// NewStore wraps an open connection as a unified Store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Accounts() pipeline.AccountStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts == nil {
		s.accounts = NewAccountRepository(s.db.GormDB())
	}
	return s.accounts
}

func (s *Store) Results() pipeline.ResultStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = NewResultRepository(s.db.GormDB())
	}
	return s.results
}

func (s *Store) Tasks() pipeline.TaskStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks == nil {
		s.tasks = NewTaskRepository(s.db.GormDB())
	}
	return s.tasks
}

func (s *Store) Recommendations() pipeline.RecommendationStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recommendations == nil {
		s.recommendations = NewRecommendationRepository(s.db.GormDB())
	}
	return s.recommendations
}

func (s *Store) Stores() pipeline.Stores {
	return pipeline.Stores{
		Accounts:        s.Accounts(),
		Results:         s.Results(),
		Tasks:           s.Tasks(),
		Recommendations: s.Recommendations(),
	}
}

func (s *Store) Migrate(_ context.Context) error {
	return AutoMigrate(s.db.GormDB())
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

// compile-time interface check
var _ storage.Store = (*Store)(nil)
