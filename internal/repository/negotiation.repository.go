package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNegotiationNotFound = errors.New("negotiation record not found")
)

type NegotiationRepository struct {
	*pg.DB
}

func NewNegotiationRepository(db *pg.DB) *NegotiationRepository {
	return &NegotiationRepository{
		db,
	}
}

func (r *NegotiationRepository) Create(ctx context.Context, n *model.NegotiationRecord) (*model.NegotiationRecord, error) {
	entity := toNegotiationEntity(n)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toNegotiationModel(entity), nil
}

func (r *NegotiationRepository) Get(ctx context.Context, id int64) (*model.NegotiationRecord, error) {
	var entity NegotiationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNegotiationNotFound
		}
		return nil, err
	}

	return toNegotiationModel(&entity), nil
}

// GetByConsumer returns the consumer's most recent negotiation record.
func (r *NegotiationRepository) GetByConsumer(ctx context.Context, consumerID int64) (*model.NegotiationRecord, error) {
	var entity NegotiationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("consumer_id = ?", consumerID).
		Order("id DESC").
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNegotiationNotFound
		}
		return nil, err
	}

	return toNegotiationModel(&entity), nil
}

// GetForUpdate loads a negotiation record under a row-level lock. Must
// be called inside WithinTransaction.
func (r *NegotiationRepository) GetForUpdate(ctx context.Context, id int64) (*model.NegotiationRecord, error) {
	var entity NegotiationEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNegotiationNotFound
		}
		return nil, err
	}

	return toNegotiationModel(&entity), nil
}

// DecrementPlanBalance decrements payment_plan_current_balance by the
// settled amount, clamped at zero, and returns the new balance. The row
// is locked for the duration of the enclosing transaction.
func (r *NegotiationRepository) DecrementPlanBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var entity NegotiationEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrNegotiationNotFound
		}
		return decimal.Zero, err
	}

	current := toNegotiationModel(&entity).Outstanding()

	newBalance := current.Sub(amount)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&NegotiationEntity{}).
		Where("id = ?", id).
		Update("payment_plan_current_balance", newBalance)

	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, ErrConcurrentUpdate
	}

	return newBalance, nil
}
