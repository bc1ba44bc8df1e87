package repository

import (
	"context"
	"errors"

	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrPaymentProfileNotFound = errors.New("payment profile not found")
)

type PaymentProfileRepository struct {
	*pg.DB
}

func NewPaymentProfileRepository(db *pg.DB) *PaymentProfileRepository {
	return &PaymentProfileRepository{
		db,
	}
}

func (r *PaymentProfileRepository) Create(ctx context.Context, p *model.PaymentProfile) (*model.PaymentProfile, error) {
	entity := toPaymentProfileEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPaymentProfileModel(entity), nil
}

// GetByConsumer returns the consumer's most recently stored payment
// method. The engine never reads card data, only the gateway token.
func (r *PaymentProfileRepository) GetByConsumer(ctx context.Context, consumerID int64) (*model.PaymentProfile, error) {
	var entity PaymentProfileEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("consumer_id = ?", consumerID).
		Order("id DESC").
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentProfileNotFound
		}
		return nil, err
	}

	return toPaymentProfileModel(&entity), nil
}
