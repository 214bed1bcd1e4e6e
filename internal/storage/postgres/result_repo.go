package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

// ResultRepository implements pipeline.ResultStore with GORM.
type ResultRepository struct {
	db *gorm.DB
}

// NewResultRepository creates a ResultRepository.
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// CreateResults inserts a batch inside one transaction so a monthly run's
// rows land together or not at all.
func (r *ResultRepository) CreateResults(ctx context.Context, results []domain.StageResult) error {
	if len(results) == 0 {
		return nil
	}
	models := make([]StageResultModel, len(results))
	for i := range results {
		models[i] = toResultModel(&results[i])
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("creating stage results: %w", err)
	}
	return nil
}

func (r *ResultRepository) FindResult(ctx context.Context, accountID *uuid.UUID, stageName string, period domain.Period) (*domain.StageResult, error) {
	query := r.db.WithContext(ctx).
		Where("stage = ? AND period_start = ? AND period_end = ?", stageName, period.Start, period.End)
	if accountID != nil {
		query = query.Where("account_id = ?", *accountID)
	} else {
		query = query.Where("account_id IS NULL")
	}

	var model StageResultModel
	if err := query.Order("created_at DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding stage result: %w", err)
	}
	result := toResultDomain(&model)
	return &result, nil
}

func (r *ResultRepository) ListSuccessfulByPeriod(ctx context.Context, period domain.Period, excludeStages []string) ([]domain.StageResult, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND period_start = ? AND period_end = ?", string(domain.ResultSuccess), period.Start, period.End)
	if len(excludeStages) > 0 {
		query = query.Where("stage NOT IN ?", excludeStages)
	}

	var models []StageResultModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing results for period %s: %w", period.Key(), err)
	}
	results := make([]domain.StageResult, len(models))
	for i := range models {
		results[i] = toResultDomain(&models[i])
	}
	return results, nil
}

var _ pipeline.ResultStore = (*ResultRepository)(nil)
