package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createConsumer(t *testing.T, db *testDB, id int64, balance string) {
	entity := &ConsumerEntity{
		ID:             id,
		CompanyID:      1,
		AccountNumber:  "acct-0001",
		CurrentBalance: decimal.RequireFromString(balance),
		Status:         "joined",
	}
	err := db.Write(context.Background()).Create(entity).Error
	require.NoError(t, err)
}

func TestConsumerRepository_DecrementBalance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConsumerRepository(db.DB)
	ctx := context.Background()

	t.Run("successful decrement", func(t *testing.T) {
		createConsumer(t, db, 1, "1000.00")

		err := repo.DecrementBalance(ctx, 1, decimal.RequireFromString("300.00"))
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("700.00")), balance.String())
	})

	t.Run("balance clamps at zero", func(t *testing.T) {
		createConsumer(t, db, 2, "100.00")

		err := repo.DecrementBalance(ctx, 2, decimal.RequireFromString("250.00"))
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 2)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), balance.String())
	})

	t.Run("consumer not found", func(t *testing.T) {
		err := repo.DecrementBalance(ctx, 999, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrConsumerNotFound)
	})

	t.Run("exact balance decrement", func(t *testing.T) {
		createConsumer(t, db, 3, "250.00")

		err := repo.DecrementBalance(ctx, 3, decimal.RequireFromString("250.00"))
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 3)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("cents survive the arithmetic", func(t *testing.T) {
		createConsumer(t, db, 4, "100.05")

		err := repo.DecrementBalance(ctx, 4, decimal.RequireFromString("33.38"))
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 4)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("66.67")), balance.String())
	})
}

func TestConsumerRepository_SetStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConsumerRepository(db.DB)
	ctx := context.Background()

	createConsumer(t, db, 1, "500.00")

	err := repo.SetStatus(ctx, 1, model.ConsumerStatusPaymentAccepted)
	assert.NoError(t, err)

	consumer, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ConsumerStatusPaymentAccepted, consumer.Status)

	err = repo.SetStatus(ctx, 999, model.ConsumerStatusSettled)
	assert.ErrorIs(t, err, ErrConsumerNotFound)
}

func TestConsumerRepository_SetHasFailedPayment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConsumerRepository(db.DB)
	ctx := context.Background()

	createConsumer(t, db, 1, "500.00")

	err := repo.SetHasFailedPayment(ctx, 1, true)
	assert.NoError(t, err)

	consumer, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, consumer.HasFailedPayment)

	err = repo.SetHasFailedPayment(ctx, 1, false)
	assert.NoError(t, err)

	consumer, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, consumer.HasFailedPayment)
}

func TestConsumerRepository_WithinTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConsumerRepository(db.DB)
	ctx := context.Background()

	createConsumer(t, db, 1, "500.00")

	t.Run("commit on success", func(t *testing.T) {
		err := repo.WithinTransaction(ctx, func(txCtx context.Context) error {
			return repo.DecrementBalance(txCtx, 1, decimal.NewFromInt(100))
		})
		require.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(400)), balance.String())
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithinTransaction(ctx, func(txCtx context.Context) error {
			if err := repo.DecrementBalance(txCtx, 1, decimal.NewFromInt(100)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		balance, err := repo.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(400)), balance.String())
	})
}

func TestConsumerRepository_ContextCancellation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConsumerRepository(db.DB)

	createConsumer(t, db, 1, "1000.00")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.DecrementBalance(ctx, 1, decimal.NewFromInt(100))
	assert.Error(t, err)
}
