package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduledRow(consumerID int64, date time.Time) *model.ScheduleTransaction {
	return &model.ScheduleTransaction{
		ConsumerID:             consumerID,
		NegotiationID:          1,
		Amount:                 decimal.RequireFromString("75.00"),
		ScheduleDate:           date,
		Status:                 model.ScheduleStatusScheduled,
		RevenueSharePercentage: decimal.RequireFromString("12"),
	}
}

func TestScheduleRepository_MarkSuccessful(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()
	now := time.Now()

	st, err := repo.Create(ctx, scheduledRow(1, now))
	require.NoError(t, err)

	err = repo.MarkSuccessful(ctx, st.ID, 42, now)
	assert.NoError(t, err)

	got, err := repo.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusSuccessful, got.Status)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, int64(42), *got.TransactionID)
	assert.Equal(t, 1, got.AttemptCount)
	assert.NotNil(t, got.LastAttemptedAt)

	// A settled row cannot be settled twice.
	err = repo.MarkSuccessful(ctx, st.ID, 43, now)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestScheduleRepository_MarkFailed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()
	now := time.Now()

	st, err := repo.Create(ctx, scheduledRow(1, now))
	require.NoError(t, err)

	err = repo.MarkFailed(ctx, st.ID, now)
	assert.NoError(t, err)

	got, err := repo.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusFailed, got.Status)
	assert.Equal(t, 1, got.AttemptCount)

	// FAILED is not re-enterable by another attempt.
	err = repo.MarkFailed(ctx, st.ID, now)
	assert.ErrorIs(t, err, ErrTerminalState)
	err = repo.MarkSuccessful(ctx, st.ID, 42, now)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestScheduleRepository_MarkReplaced(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()
	now := time.Now()

	t.Run("failed row takes the marker", func(t *testing.T) {
		st, err := repo.Create(ctx, scheduledRow(1, now))
		require.NoError(t, err)
		require.NoError(t, repo.MarkFailed(ctx, st.ID, now))

		err = repo.MarkReplaced(ctx, st.ID, model.ScheduleStatusRescheduled)
		assert.NoError(t, err)

		got, err := repo.Get(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ScheduleStatusRescheduled, got.Status)
	})

	t.Run("scheduled row is rejected", func(t *testing.T) {
		st, err := repo.Create(ctx, scheduledRow(2, now))
		require.NoError(t, err)

		err = repo.MarkReplaced(ctx, st.ID, model.ScheduleStatusConsumerChangeDate)
		assert.ErrorIs(t, err, ErrTerminalState)
	})
}

func TestScheduleRepository_AdvanceDate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	st, err := repo.Create(ctx, scheduledRow(1, date))
	require.NoError(t, err)

	newDate := date.AddDate(0, 1, 0)
	err = repo.AdvanceDate(ctx, st.ID, newDate)
	assert.NoError(t, err)

	got, err := repo.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, got.ScheduleDate.Equal(newDate))
	assert.Equal(t, model.ScheduleStatusScheduled, got.Status)
}

func TestScheduleRepository_ListDue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()

	past := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	future := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	// Two consumers, mixed dates and statuses.
	first, err := repo.Create(ctx, scheduledRow(2, today))
	require.NoError(t, err)
	second, err := repo.Create(ctx, scheduledRow(1, past))
	require.NoError(t, err)
	third, err := repo.Create(ctx, scheduledRow(1, today))
	require.NoError(t, err)
	_, err = repo.Create(ctx, scheduledRow(1, future))
	require.NoError(t, err)

	failed, err := repo.Create(ctx, scheduledRow(2, past))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, today))

	due, err := repo.ListDue(ctx, today, 0)
	require.NoError(t, err)
	require.Len(t, due, 3)

	// Ordered per consumer, oldest first; FAILED and future rows are
	// never picked up.
	assert.Equal(t, second.ID, due[0].ID)
	assert.Equal(t, third.ID, due[1].ID)
	assert.Equal(t, first.ID, due[2].ID)
}

func TestScheduleRepository_NextScheduledAfter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()

	june := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	july := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	_, err := repo.Create(ctx, scheduledRow(1, june))
	require.NoError(t, err)
	next, err := repo.Create(ctx, scheduledRow(1, july))
	require.NoError(t, err)

	got, err := repo.NextScheduledAfter(ctx, 1, june)
	require.NoError(t, err)
	assert.Equal(t, next.ID, got.ID)

	_, err = repo.NextScheduledAfter(ctx, 1, july)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestScheduleRepository_HasScheduledOn(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()

	date := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	_, err := repo.Create(ctx, scheduledRow(1, date))
	require.NoError(t, err)

	// Same calendar day matches regardless of time of day.
	taken, err := repo.HasScheduledOn(ctx, 1, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.HasScheduledOn(ctx, 1, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = repo.HasScheduledOn(ctx, 2, date)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestScheduleRepository_CreateBatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	rows := []*model.ScheduleTransaction{
		scheduledRow(1, base),
		scheduledRow(1, base.AddDate(0, 1, 0)),
		scheduledRow(1, base.AddDate(0, 2, 0)),
	}

	created, err := repo.CreateBatch(ctx, rows)
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, st := range created {
		assert.NotZero(t, st.ID)
	}

	listed, _, err := repo.List(ctx, model.ScheduleFilter{ConsumerID: ptr(int64(1))})
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func ptr[T any](v T) *T {
	return &v
}
