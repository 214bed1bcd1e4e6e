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

// AccountRepository implements pipeline.AccountStore with GORM.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) ListActive(ctx context.Context) ([]domain.Account, error) {
	var models []AccountModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("domain ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing active accounts: %w", err)
	}
	accounts := make([]domain.Account, len(models))
	for i := range models {
		accounts[i] = toAccountDomain(&models[i])
	}
	return accounts, nil
}

func (r *AccountRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var model AccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s not found", id)
		}
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	account := toAccountDomain(&model)
	return &account, nil
}

var _ pipeline.AccountStore = (*AccountRepository)(nil)
