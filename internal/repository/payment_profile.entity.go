package repository

import (
	"time"

	"github.com/younegotiate/settlement-engine/internal/model"
)

type PaymentProfileEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	ConsumerID int64     `db:"consumer_id" gorm:"column:consumer_id;not null;index"`
	Gateway    string    `db:"gateway"     gorm:"column:gateway;not null"`
	ProfileRef string    `db:"profile_ref" gorm:"column:profile_ref;not null"`
	Last4      string    `db:"last4"       gorm:"column:last4"`
	Method     string    `db:"method"      gorm:"column:method;not null;default:card"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (PaymentProfileEntity) TableName() string {
	return "payment_profiles"
}

func toPaymentProfileEntity(m *model.PaymentProfile) *PaymentProfileEntity {
	if m == nil {
		return nil
	}
	return &PaymentProfileEntity{
		ID:         m.ID,
		ConsumerID: m.ConsumerID,
		Gateway:    m.Gateway,
		ProfileRef: m.ProfileRef,
		Last4:      m.Last4,
		Method:     m.Method,
		CreatedAt:  m.CreatedAt,
	}
}

func toPaymentProfileModel(e *PaymentProfileEntity) *model.PaymentProfile {
	if e == nil {
		return nil
	}
	return &model.PaymentProfile{
		ID:         e.ID,
		ConsumerID: e.ConsumerID,
		Gateway:    e.Gateway,
		ProfileRef: e.ProfileRef,
		Last4:      e.Last4,
		Method:     e.Method,
		CreatedAt:  e.CreatedAt,
	}
}
