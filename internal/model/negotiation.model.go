package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NegotiationType distinguishes a lump-sum payoff from a payment plan.
type NegotiationType string

const (
	NegotiationTypePIF         NegotiationType = "pif"
	NegotiationTypeInstallment NegotiationType = "installment"
)

// InstallmentCadence is the spacing between scheduled installments.
type InstallmentCadence string

const (
	CadenceWeekly    InstallmentCadence = "weekly"
	CadenceBimonthly InstallmentCadence = "bimonthly"
	CadenceMonthly   InstallmentCadence = "monthly"
)

// NegotiationRecord holds the accepted terms governing a consumer's
// settlement. At most one of OfferAccepted/CounterOfferAccepted is set;
// the accepted side drives the authoritative amounts. Only the
// settlement coordinator mutates PaymentPlanCurrentBalance.
type NegotiationRecord struct {
	ID         int64           `json:"id"`
	ConsumerID int64           `json:"consumer_id"`
	Type       NegotiationType `json:"negotiation_type"`

	OfferAccepted        bool `json:"offer_accepted"`
	CounterOfferAccepted bool `json:"counter_offer_accepted"`

	OneTimeSettlement    *decimal.Decimal `json:"one_time_settlement,omitempty"`
	CounterOneTimeAmount *decimal.Decimal `json:"counter_one_time_amount,omitempty"`

	NegotiateAmount        *decimal.Decimal `json:"negotiate_amount,omitempty"`
	CounterNegotiateAmount *decimal.Decimal `json:"counter_negotiate_amount,omitempty"`

	NoOfInstallments int                `json:"no_of_installments"`
	MonthlyAmount    decimal.Decimal    `json:"monthly_amount"`
	LastMonthAmount  decimal.Decimal    `json:"last_month_amount"`
	Cadence          InstallmentCadence `json:"cadence"`
	FirstPayDate     time.Time          `json:"first_pay_date"`

	// Running outstanding total; authoritative once non-nil.
	PaymentPlanCurrentBalance *decimal.Decimal `json:"payment_plan_current_balance,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (NegotiationRecord) TableName() string { return "negotiation_records" }

// ActiveAmount returns the amount driven by the accepted side of the
// negotiation: counter-offer fields win when the counter was accepted.
func (n *NegotiationRecord) ActiveAmount() decimal.Decimal {
	if n.Type == NegotiationTypePIF {
		if n.CounterOfferAccepted && n.CounterOneTimeAmount != nil {
			return *n.CounterOneTimeAmount
		}
		if n.OneTimeSettlement != nil {
			return *n.OneTimeSettlement
		}
		return decimal.Zero
	}
	if n.CounterOfferAccepted && n.CounterNegotiateAmount != nil {
		return *n.CounterNegotiateAmount
	}
	if n.NegotiateAmount != nil {
		return *n.NegotiateAmount
	}
	return decimal.Zero
}

// Outstanding returns the authoritative remaining total for the plan.
// PaymentPlanCurrentBalance wins once it has been initialized.
func (n *NegotiationRecord) Outstanding() decimal.Decimal {
	if n.PaymentPlanCurrentBalance != nil {
		return *n.PaymentPlanCurrentBalance
	}
	return n.ActiveAmount()
}
