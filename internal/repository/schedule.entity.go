package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

type ScheduleTransactionEntity struct {
	ID            int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	ConsumerID    int64           `db:"consumer_id"    gorm:"column:consumer_id;not null;index"`
	NegotiationID int64           `db:"negotiation_id" gorm:"column:negotiation_id;not null;index"`
	Amount        decimal.Decimal `db:"amount"         gorm:"column:amount;type:decimal(12,2);not null"`
	ScheduleDate  time.Time       `db:"schedule_date"  gorm:"column:schedule_date;not null;index"`
	Status        string          `db:"status"         gorm:"column:status;not null;default:scheduled;index"`

	AttemptCount    int        `db:"attempt_count"     gorm:"column:attempt_count;not null;default:0"`
	LastAttemptedAt *time.Time `db:"last_attempted_at" gorm:"column:last_attempted_at"`

	PreviousScheduleDate *time.Time `db:"previous_schedule_date" gorm:"column:previous_schedule_date"`
	TransactionID        *int64     `db:"transaction_id"         gorm:"column:transaction_id;index"`

	RevenueSharePercentage decimal.Decimal `db:"revenue_share_percentage" gorm:"column:revenue_share_percentage;type:decimal(5,2);not null"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ScheduleTransactionEntity) TableName() string {
	return "schedule_transactions"
}

func toScheduleEntity(m *model.ScheduleTransaction) *ScheduleTransactionEntity {
	if m == nil {
		return nil
	}
	return &ScheduleTransactionEntity{
		ID:                     m.ID,
		ConsumerID:             m.ConsumerID,
		NegotiationID:          m.NegotiationID,
		Amount:                 m.Amount,
		ScheduleDate:           m.ScheduleDate,
		Status:                 string(m.Status),
		AttemptCount:           m.AttemptCount,
		LastAttemptedAt:        m.LastAttemptedAt,
		PreviousScheduleDate:   m.PreviousScheduleDate,
		TransactionID:          m.TransactionID,
		RevenueSharePercentage: m.RevenueSharePercentage,
		CreatedAt:              m.CreatedAt,
	}
}

func toScheduleModel(e *ScheduleTransactionEntity) *model.ScheduleTransaction {
	if e == nil {
		return nil
	}
	return &model.ScheduleTransaction{
		ID:                     e.ID,
		ConsumerID:             e.ConsumerID,
		NegotiationID:          e.NegotiationID,
		Amount:                 e.Amount,
		ScheduleDate:           e.ScheduleDate,
		Status:                 model.ScheduleStatus(e.Status),
		AttemptCount:           e.AttemptCount,
		LastAttemptedAt:        e.LastAttemptedAt,
		PreviousScheduleDate:   e.PreviousScheduleDate,
		TransactionID:          e.TransactionID,
		RevenueSharePercentage: e.RevenueSharePercentage,
		CreatedAt:              e.CreatedAt,
	}
}

func toScheduleModels(entities []*ScheduleTransactionEntity) []*model.ScheduleTransaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.ScheduleTransaction, len(entities))
	for i, e := range entities {
		models[i] = toScheduleModel(e)
	}
	return models
}
