package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

// TaskRepository implements pipeline.TaskStore with GORM.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTasks(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	models := make([]TaskModel, len(tasks))
	for i := range tasks {
		models[i] = toTaskModel(&tasks[i])
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("creating tasks: %w", err)
	}
	return nil
}

// ListByAccount returns an account's tasks, newest first.
func (r *TaskRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Task, error) {
	var models []TaskModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing tasks for account %s: %w", accountID, err)
	}
	tasks := make([]domain.Task, len(models))
	for i := range models {
		tasks[i] = toTaskDomain(&models[i])
	}
	return tasks, nil
}

var _ pipeline.TaskStore = (*TaskRepository)(nil)
