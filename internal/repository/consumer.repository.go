package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrConsumerNotFound   = errors.New("consumer not found")
	ErrConcurrentUpdate   = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

type ConsumerRepository struct {
	*pg.DB
}

func NewConsumerRepository(db *pg.DB) *ConsumerRepository {
	return &ConsumerRepository{
		db,
	}
}

func (r *ConsumerRepository) Create(ctx context.Context, c *model.Consumer) (*model.Consumer, error) {
	entity := toConsumerEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toConsumerModel(entity), nil
}

func (r *ConsumerRepository) Get(ctx context.Context, id int64) (*model.Consumer, error) {
	var entity ConsumerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsumerNotFound
		}
		return nil, err
	}

	return toConsumerModel(&entity), nil
}

// GetForUpdate loads the consumer under a row-level lock. Must be called
// inside WithinTransaction; the lock is held until the transaction ends.
func (r *ConsumerRepository) GetForUpdate(ctx context.Context, id int64) (*model.Consumer, error) {
	var entity ConsumerEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsumerNotFound
		}
		return nil, err
	}

	return toConsumerModel(&entity), nil
}

// DecrementBalance performs an atomic balance decrement with automatic
// retry. The balance is clamped at zero: settling more than the
// remaining balance leaves the consumer at exactly 0.00.
func (r *ConsumerRepository) DecrementBalance(ctx context.Context, consumerID int64, amount decimal.Decimal) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.decrementBalanceAttempt(ctx, consumerID, amount)

		if err == nil {
			return nil
		}

		if errors.Is(err, ErrConsumerNotFound) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *ConsumerRepository) decrementBalanceAttempt(ctx context.Context, consumerID int64, amount decimal.Decimal) error {
	var entity ConsumerEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", consumerID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConsumerNotFound
		}
		return err
	}

	newBalance := entity.CurrentBalance.Sub(amount)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&ConsumerEntity{}).
		Where("id = ?", consumerID).
		Update("current_balance", newBalance)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

func (r *ConsumerRepository) SetStatus(ctx context.Context, consumerID int64, status model.ConsumerStatus) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ConsumerEntity{}).
		Where("id = ?", consumerID).
		Update("status", string(status))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConsumerNotFound
	}
	return nil
}

func (r *ConsumerRepository) SetHasFailedPayment(ctx context.Context, consumerID int64, failed bool) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ConsumerEntity{}).
		Where("id = ?", consumerID).
		Update("has_failed_payment", failed)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConsumerNotFound
	}
	return nil
}

func (r *ConsumerRepository) GetBalance(ctx context.Context, consumerID int64) (decimal.Decimal, error) {
	var entity ConsumerEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("current_balance").
		Where("id = ?", consumerID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrConsumerNotFound
		}
		return decimal.Zero, err
	}

	return entity.CurrentBalance, nil
}
