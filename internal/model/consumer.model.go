package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsumerStatus is the lifecycle state of a consumer account.
type ConsumerStatus string

const (
	ConsumerStatusJoined          ConsumerStatus = "joined"
	ConsumerStatusPaymentAccepted ConsumerStatus = "payment_accepted"
	ConsumerStatusSettled         ConsumerStatus = "settled"
	ConsumerStatusHold            ConsumerStatus = "hold"
	ConsumerStatusDeactivated     ConsumerStatus = "deactivated"
)

type Consumer struct {
	ID               int64           `json:"id"`
	CompanyID        int64           `json:"company_id"`
	SubclientID      *int64          `json:"subclient_id,omitempty"`
	AccountNumber    string          `json:"account_number"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	Status           ConsumerStatus  `json:"status"`
	HasFailedPayment bool            `json:"has_failed_payment"`

	// Per-consumer overrides for the discount cascade; nil means
	// fall through to subclient/company settings.
	PifDiscountPercent *decimal.Decimal `json:"pif_discount_percent,omitempty"`
	PpaDiscountPercent *decimal.Decimal `json:"ppa_discount_percent,omitempty"`
	MinMonthlyPercent  *decimal.Decimal `json:"min_monthly_percent,omitempty"`
	MaxFirstPayDays    *int             `json:"max_first_pay_days,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Consumer) TableName() string { return "consumers" }
