package repository

import (
	"context"
	"errors"
	"time"

	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrScheduleNotFound = errors.New("schedule transaction not found")
	ErrTerminalState    = errors.New("schedule transaction is in a terminal state")
)

type ScheduleRepository struct {
	*pg.DB
}

func NewScheduleRepository(db *pg.DB) *ScheduleRepository {
	return &ScheduleRepository{
		db,
	}
}

func (r *ScheduleRepository) Create(ctx context.Context, st *model.ScheduleTransaction) (*model.ScheduleTransaction, error) {
	entity := toScheduleEntity(st)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toScheduleModel(entity), nil
}

func (r *ScheduleRepository) CreateBatch(ctx context.Context, sts []*model.ScheduleTransaction) ([]*model.ScheduleTransaction, error) {
	entities := make([]*ScheduleTransactionEntity, len(sts))
	for i, st := range sts {
		entities[i] = toScheduleEntity(st)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entities).Error; err != nil {
		return nil, err
	}

	return toScheduleModels(entities), nil
}

func (r *ScheduleRepository) Get(ctx context.Context, id int64) (*model.ScheduleTransaction, error) {
	var entity ScheduleTransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	return toScheduleModel(&entity), nil
}

// GetForUpdate loads a schedule transaction under a row-level lock so no
// two settlement attempts can race on the same row. Must be called
// inside WithinTransaction.
func (r *ScheduleRepository) GetForUpdate(ctx context.Context, id int64) (*model.ScheduleTransaction, error) {
	var entity ScheduleTransactionEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	return toScheduleModel(&entity), nil
}

func (r *ScheduleRepository) List(ctx context.Context, f model.ScheduleFilter) ([]*model.ScheduleTransaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ScheduleTransactionEntity{})

	if f.ConsumerID != nil {
		q = q.Where("consumer_id = ?", *f.ConsumerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.DueOnOrBefore != nil {
		q = q.Where("schedule_date <= ?", *f.DueOnOrBefore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "schedule_date"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ScheduleTransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toScheduleModels(entities), total, nil
}

// ListDue returns SCHEDULED rows due on or before the given date in
// ascending schedule_date order, so installments within one consumer's
// plan settle oldest first.
func (r *ScheduleRepository) ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*model.ScheduleTransaction, error) {
	if limit <= 0 {
		limit = 500
	}

	var entities []*ScheduleTransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND schedule_date <= ?", string(model.ScheduleStatusScheduled), dueBy).
		Order("consumer_id ASC, schedule_date ASC").
		Limit(limit).
		Find(&entities).
		Error

	if err != nil {
		return nil, err
	}

	return toScheduleModels(entities), nil
}

// MarkSuccessful finalizes a settled row with its Transaction id.
func (r *ScheduleRepository) MarkSuccessful(ctx context.Context, id int64, transactionID int64, attemptedAt time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ScheduleTransactionEntity{}).
		Where("id = ? AND status = ?", id, string(model.ScheduleStatusScheduled)).
		Updates(map[string]interface{}{
			"status":            string(model.ScheduleStatusSuccessful),
			"transaction_id":    transactionID,
			"attempt_count":     gorm.Expr("attempt_count + 1"),
			"last_attempted_at": attemptedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTerminalState
	}
	return nil
}

// MarkFailed records a failed attempt. The row stays re-enterable only
// through an explicit reschedule or change-date operation.
func (r *ScheduleRepository) MarkFailed(ctx context.Context, id int64, attemptedAt time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ScheduleTransactionEntity{}).
		Where("id = ? AND status = ?", id, string(model.ScheduleStatusScheduled)).
		Updates(map[string]interface{}{
			"status":            string(model.ScheduleStatusFailed),
			"attempt_count":     gorm.Expr("attempt_count + 1"),
			"last_attempted_at": attemptedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTerminalState
	}
	return nil
}

// MarkReplaced stamps the terminal marker (RESCHEDULED or
// CONSUMER_CHANGE_DATE) on a FAILED row that is being replaced.
func (r *ScheduleRepository) MarkReplaced(ctx context.Context, id int64, marker model.ScheduleStatus) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ScheduleTransactionEntity{}).
		Where("id = ? AND status = ?", id, string(model.ScheduleStatusFailed)).
		Update("status", string(marker))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTerminalState
	}
	return nil
}

// Cancel marks a SCHEDULED row cancelled (administrative).
func (r *ScheduleRepository) Cancel(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ScheduleTransactionEntity{}).
		Where("id = ? AND status = ?", id, string(model.ScheduleStatusScheduled)).
		Update("status", string(model.ScheduleStatusCancelled))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTerminalState
	}
	return nil
}

// AdvanceDate moves a SCHEDULED row's date forward in place (skip).
func (r *ScheduleRepository) AdvanceDate(ctx context.Context, id int64, newDate time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ScheduleTransactionEntity{}).
		Where("id = ? AND status = ?", id, string(model.ScheduleStatusScheduled)).
		Update("schedule_date", newDate)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTerminalState
	}
	return nil
}

// NextScheduledAfter returns the consumer's next SCHEDULED row strictly
// after the given date, or ErrScheduleNotFound.
func (r *ScheduleRepository) NextScheduledAfter(ctx context.Context, consumerID int64, after time.Time) (*model.ScheduleTransaction, error) {
	var entity ScheduleTransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("consumer_id = ? AND status = ? AND schedule_date > ?", consumerID, string(model.ScheduleStatusScheduled), after).
		Order("schedule_date ASC").
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	return toScheduleModel(&entity), nil
}

// HasScheduledOn reports whether the consumer already has a SCHEDULED
// row on the given calendar date.
func (r *ScheduleRepository) HasScheduledOn(ctx context.Context, consumerID int64, date time.Time) (bool, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	next := day.AddDate(0, 0, 1)

	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ScheduleTransactionEntity{}).
		Where("consumer_id = ? AND status = ? AND schedule_date >= ? AND schedule_date < ?",
			consumerID, string(model.ScheduleStatusScheduled), day, next).
		Count(&count).
		Error

	if err != nil {
		return false, err
	}
	return count > 0, nil
}
