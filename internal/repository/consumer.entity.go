package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

type ConsumerEntity struct {
	ID               int64           `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	CompanyID        int64           `db:"company_id"         gorm:"column:company_id;not null;index"`
	SubclientID      *int64          `db:"subclient_id"       gorm:"column:subclient_id;index"`
	AccountNumber    string          `db:"account_number"     gorm:"column:account_number;not null"`
	CurrentBalance   decimal.Decimal `db:"current_balance"    gorm:"column:current_balance;type:decimal(12,2);not null"`
	Status           string          `db:"status"             gorm:"column:status;not null;default:joined"`
	HasFailedPayment bool            `db:"has_failed_payment" gorm:"column:has_failed_payment;not null;default:false"`

	PifDiscountPercent *decimal.Decimal `db:"pif_discount_percent" gorm:"column:pif_discount_percent;type:decimal(5,2)"`
	PpaDiscountPercent *decimal.Decimal `db:"ppa_discount_percent" gorm:"column:ppa_discount_percent;type:decimal(5,2)"`
	MinMonthlyPercent  *decimal.Decimal `db:"min_monthly_percent"  gorm:"column:min_monthly_percent;type:decimal(5,2)"`
	MaxFirstPayDays    *int             `db:"max_first_pay_days"   gorm:"column:max_first_pay_days"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ConsumerEntity) TableName() string {
	return "consumers"
}

func toConsumerEntity(m *model.Consumer) *ConsumerEntity {
	if m == nil {
		return nil
	}
	return &ConsumerEntity{
		ID:                 m.ID,
		CompanyID:          m.CompanyID,
		SubclientID:        m.SubclientID,
		AccountNumber:      m.AccountNumber,
		CurrentBalance:     m.CurrentBalance,
		Status:             string(m.Status),
		HasFailedPayment:   m.HasFailedPayment,
		PifDiscountPercent: m.PifDiscountPercent,
		PpaDiscountPercent: m.PpaDiscountPercent,
		MinMonthlyPercent:  m.MinMonthlyPercent,
		MaxFirstPayDays:    m.MaxFirstPayDays,
		CreatedAt:          m.CreatedAt,
	}
}

func toConsumerModel(e *ConsumerEntity) *model.Consumer {
	if e == nil {
		return nil
	}
	return &model.Consumer{
		ID:                 e.ID,
		CompanyID:          e.CompanyID,
		SubclientID:        e.SubclientID,
		AccountNumber:      e.AccountNumber,
		CurrentBalance:     e.CurrentBalance,
		Status:             model.ConsumerStatus(e.Status),
		HasFailedPayment:   e.HasFailedPayment,
		PifDiscountPercent: e.PifDiscountPercent,
		PpaDiscountPercent: e.PpaDiscountPercent,
		MinMonthlyPercent:  e.MinMonthlyPercent,
		MaxFirstPayDays:    e.MaxFirstPayDays,
		CreatedAt:          e.CreatedAt,
	}
}
