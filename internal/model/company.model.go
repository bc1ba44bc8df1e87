package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company is a creditor onboarded on the platform. Its discount settings
// are the last stop of the resolution cascade, so they are required for
// any consumer that has no override of its own.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	PifDiscountPercent *decimal.Decimal `json:"pif_discount_percent,omitempty"`
	PpaDiscountPercent *decimal.Decimal `json:"ppa_discount_percent,omitempty"`
	MinMonthlyPercent  *decimal.Decimal `json:"min_monthly_percent,omitempty"`
	MaxFirstPayDays    *int             `json:"max_first_pay_days,omitempty"`

	// Gateway the company's consumers are charged through.
	MerchantGateway string `json:"merchant_gateway"`
}

func (Company) TableName() string { return "companies" }

// Subclient is an optional grouping of accounts under a company with its
// own discount settings.
type Subclient struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`

	PifDiscountPercent *decimal.Decimal `json:"pif_discount_percent,omitempty"`
	PpaDiscountPercent *decimal.Decimal `json:"ppa_discount_percent,omitempty"`
	MinMonthlyPercent  *decimal.Decimal `json:"min_monthly_percent,omitempty"`
	MaxFirstPayDays    *int             `json:"max_first_pay_days,omitempty"`
}

func (Subclient) TableName() string { return "subclients" }

// Membership is a company's platform subscription. The active membership
// with the latest plan start date carries the revenue share fee percent.
type Membership struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"company_id"`
	FeePercent    decimal.Decimal `json:"fee_percent"`
	PlanStartedAt time.Time       `json:"plan_started_at"`
	Active        bool            `json:"active"`
}

func (Membership) TableName() string { return "memberships" }
