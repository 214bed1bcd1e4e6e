package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

// InMemoryStore implements every pipeline store interface using in-memory
// maps. It backs the package tests.
type InMemoryStore struct {
	mu              sync.RWMutex
	accounts        map[uuid.UUID]*domain.Account
	results         map[uuid.UUID]*domain.StageResult
	tasks           map[uuid.UUID]*domain.Task
	recommendations map[uuid.UUID]*domain.Recommendation
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts:        make(map[uuid.UUID]*domain.Account),
		results:         make(map[uuid.UUID]*domain.StageResult),
		tasks:           make(map[uuid.UUID]*domain.Task),
		recommendations: make(map[uuid.UUID]*domain.Recommendation),
	}
}

// Stores returns the store bundle backed by this instance.
func (s *InMemoryStore) Stores() Stores {
	return Stores{Results: s, Tasks: s, Recommendations: s, Accounts: s}
}

// AddAccount seeds a tenant. Accounts are otherwise read-only here.
func (s *InMemoryStore) AddAccount(account domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := account
	s.accounts[account.ID] = &cp
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Account
	for _, a := range s.accounts {
		if a.Active {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Domain < result[j].Domain
	})
	return result, nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) CreateResults(_ context.Context, results []domain.StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		if _, exists := s.results[r.ID]; exists {
			return fmt.Errorf("result %s already exists", r.ID)
		}
	}
	for _, r := range results {
		cp := r
		s.results[r.ID] = &cp
	}
	return nil
}

// FindResult returns the newest matching row, matching the created_at
// ordering of the database repositories.
func (s *InMemoryStore) FindResult(_ context.Context, accountID *uuid.UUID, stageName string, period domain.Period) (*domain.StageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *domain.StageResult
	for _, r := range s.results {
		if r.Stage != stageName {
			continue
		}
		if !sameAccount(r.AccountID, accountID) {
			continue
		}
		if !r.PeriodStart.Equal(period.Start) || !r.PeriodEnd.Equal(period.End) {
			continue
		}
		if newest == nil || r.CreatedAt.After(newest.CreatedAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (s *InMemoryStore) ListSuccessfulByPeriod(_ context.Context, period domain.Period, excludeStages []string) ([]domain.StageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	excluded := make(map[string]bool, len(excludeStages))
	for _, name := range excludeStages {
		excluded[name] = true
	}
	var result []domain.StageResult
	for _, r := range s.results {
		if r.Status != domain.ResultSuccess || excluded[r.Stage] {
			continue
		}
		if !r.PeriodStart.Equal(period.Start) || !r.PeriodEnd.Equal(period.End) {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemoryStore) CreateTasks(_ context.Context, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		cp := t
		s.tasks[t.ID] = &cp
	}
	return nil
}

// ListTasksByAccount returns an account's tasks ordered by creation time.
func (s *InMemoryStore) ListTasksByAccount(_ context.Context, accountID uuid.UUID) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Task
	for _, t := range s.tasks {
		if t.AccountID == accountID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemoryStore) CreateRecommendations(_ context.Context, recs []domain.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		cp := r
		s.recommendations[r.ID] = &cp
	}
	return nil
}

func (s *InMemoryStore) ListReviewed(_ context.Context, auditedStage string, status domain.ReviewStatus, limit int) ([]domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Recommendation
	for _, r := range s.recommendations {
		if r.AuditedStage == auditedStage && r.ReviewStatus == status && r.ReviewedAt != nil {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReviewedAt.After(*result[j].ReviewedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InMemoryStore) ReviewRecommendation(_ context.Context, id uuid.UUID, status domain.ReviewStatus, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recommendations[id]
	if !ok {
		return fmt.Errorf("recommendation %s not found", id)
	}
	r.ReviewStatus = status
	r.ReviewedAt = &reviewedAt
	return nil
}

func sameAccount(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Compile-time checks.
var _ ResultStore = (*InMemoryStore)(nil)
var _ TaskStore = (*InMemoryStore)(nil)
var _ RecommendationStore = (*InMemoryStore)(nil)
var _ AccountStore = (*InMemoryStore)(nil)
