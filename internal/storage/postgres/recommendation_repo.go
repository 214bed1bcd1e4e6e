package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

// RecommendationRepository implements pipeline.RecommendationStore with GORM.
type RecommendationRepository struct {
	db *gorm.DB
}

// NewRecommendationRepository creates a RecommendationRepository.
func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

func (r *RecommendationRepository) CreateRecommendations(ctx context.Context, recs []domain.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	models := make([]RecommendationModel, len(recs))
	for i := range recs {
		models[i] = toRecommendationModel(&recs[i])
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("creating recommendations: %w", err)
	}
	return nil
}

func (r *RecommendationRepository) ListReviewed(ctx context.Context, auditedStage string, status domain.ReviewStatus, limit int) ([]domain.Recommendation, error) {
	var models []RecommendationModel
	if err := r.db.WithContext(ctx).
		Where("audited_stage = ? AND review_status = ? AND reviewed_at IS NOT NULL", auditedStage, string(status)).
		Order("reviewed_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing reviewed recommendations: %w", err)
	}
	recs := make([]domain.Recommendation, len(models))
	for i := range models {
		recs[i] = toRecommendationDomain(&models[i])
	}
	return recs, nil
}

func (r *RecommendationRepository) ReviewRecommendation(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, reviewedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&RecommendationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"review_status": string(status),
			"reviewed_at":   reviewedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("reviewing recommendation %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("recommendation %s not found", id)
	}
	return nil
}

// Get returns one recommendation by ID.
func (r *RecommendationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Recommendation, error) {
	var model RecommendationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("recommendation %s not found", id)
		}
		return nil, fmt.Errorf("getting recommendation %s: %w", id, err)
	}
	rec := toRecommendationDomain(&model)
	return &rec, nil
}

var _ pipeline.RecommendationStore = (*RecommendationRepository)(nil)
