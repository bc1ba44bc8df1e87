package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

type NegotiationEntity struct {
	ID         int64  `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	ConsumerID int64  `db:"consumer_id"      gorm:"column:consumer_id;not null;index"`
	Type       string `db:"negotiation_type" gorm:"column:negotiation_type;not null"`

	OfferAccepted        bool `db:"offer_accepted"         gorm:"column:offer_accepted;not null;default:false"`
	CounterOfferAccepted bool `db:"counter_offer_accepted" gorm:"column:counter_offer_accepted;not null;default:false"`

	OneTimeSettlement    *decimal.Decimal `db:"one_time_settlement"     gorm:"column:one_time_settlement;type:decimal(12,2)"`
	CounterOneTimeAmount *decimal.Decimal `db:"counter_one_time_amount" gorm:"column:counter_one_time_amount;type:decimal(12,2)"`

	NegotiateAmount        *decimal.Decimal `db:"negotiate_amount"         gorm:"column:negotiate_amount;type:decimal(12,2)"`
	CounterNegotiateAmount *decimal.Decimal `db:"counter_negotiate_amount" gorm:"column:counter_negotiate_amount;type:decimal(12,2)"`

	NoOfInstallments int             `db:"no_of_installments" gorm:"column:no_of_installments;not null;default:0"`
	MonthlyAmount    decimal.Decimal `db:"monthly_amount"     gorm:"column:monthly_amount;type:decimal(12,2);not null"`
	LastMonthAmount  decimal.Decimal `db:"last_month_amount"  gorm:"column:last_month_amount;type:decimal(12,2);not null"`
	Cadence          string          `db:"cadence"            gorm:"column:cadence;not null;default:monthly"`
	FirstPayDate     time.Time       `db:"first_pay_date"     gorm:"column:first_pay_date"`

	PaymentPlanCurrentBalance *decimal.Decimal `db:"payment_plan_current_balance" gorm:"column:payment_plan_current_balance;type:decimal(12,2)"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (NegotiationEntity) TableName() string {
	return "negotiation_records"
}

func toNegotiationEntity(m *model.NegotiationRecord) *NegotiationEntity {
	if m == nil {
		return nil
	}
	return &NegotiationEntity{
		ID:                        m.ID,
		ConsumerID:                m.ConsumerID,
		Type:                      string(m.Type),
		OfferAccepted:             m.OfferAccepted,
		CounterOfferAccepted:      m.CounterOfferAccepted,
		OneTimeSettlement:         m.OneTimeSettlement,
		CounterOneTimeAmount:      m.CounterOneTimeAmount,
		NegotiateAmount:           m.NegotiateAmount,
		CounterNegotiateAmount:    m.CounterNegotiateAmount,
		NoOfInstallments:          m.NoOfInstallments,
		MonthlyAmount:             m.MonthlyAmount,
		LastMonthAmount:           m.LastMonthAmount,
		Cadence:                   string(m.Cadence),
		FirstPayDate:              m.FirstPayDate,
		PaymentPlanCurrentBalance: m.PaymentPlanCurrentBalance,
		CreatedAt:                 m.CreatedAt,
	}
}

func toNegotiationModel(e *NegotiationEntity) *model.NegotiationRecord {
	if e == nil {
		return nil
	}
	return &model.NegotiationRecord{
		ID:                        e.ID,
		ConsumerID:                e.ConsumerID,
		Type:                      model.NegotiationType(e.Type),
		OfferAccepted:             e.OfferAccepted,
		CounterOfferAccepted:      e.CounterOfferAccepted,
		OneTimeSettlement:         e.OneTimeSettlement,
		CounterOneTimeAmount:      e.CounterOneTimeAmount,
		NegotiateAmount:           e.NegotiateAmount,
		CounterNegotiateAmount:    e.CounterNegotiateAmount,
		NoOfInstallments:          e.NoOfInstallments,
		MonthlyAmount:             e.MonthlyAmount,
		LastMonthAmount:           e.LastMonthAmount,
		Cadence:                   model.InstallmentCadence(e.Cadence),
		FirstPayDate:              e.FirstPayDate,
		PaymentPlanCurrentBalance: e.PaymentPlanCurrentBalance,
		CreatedAt:                 e.CreatedAt,
	}
}
