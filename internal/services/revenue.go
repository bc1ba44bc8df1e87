package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

// ShareBreakdown is the split of a settled amount between the platform
// and the creditor company. It is a pure value: compute it once, pass
// it into the bookkeeping step, never mutate it.
//
// CompanyShare is the residual of Amount - PlatformShare, so the two
// always sum to the settled amount exactly.
type ShareBreakdown struct {
	Amount        decimal.Decimal
	PlatformShare decimal.Decimal
	CompanyShare  decimal.Decimal
	FeePercent    decimal.Decimal
}

// SplitRevenue computes the platform/company split for a settled amount
// at the given membership fee percent.
func SplitRevenue(amount, feePercent decimal.Decimal) ShareBreakdown {
	platform := amount.Mul(feePercent).Div(decimal.NewFromInt(100)).Round(2)
	return ShareBreakdown{
		Amount:        amount,
		PlatformShare: platform,
		CompanyShare:  amount.Sub(platform).Round(2),
		FeePercent:    feePercent,
	}
}

type MembershipRepository interface {
	ActiveMembership(ctx context.Context, companyID int64) (*model.Membership, error)
}

// RevenueShareCalculator resolves a company's current fee percent and
// splits settled amounts with it.
type RevenueShareCalculator struct {
	memberships MembershipRepository
}

func NewRevenueShareCalculator(memberships MembershipRepository) *RevenueShareCalculator {
	return &RevenueShareCalculator{
		memberships: memberships,
	}
}

// FeePercent returns the fee percent of the company's most recently
// started active membership.
func (c *RevenueShareCalculator) FeePercent(ctx context.Context, companyID int64) (decimal.Decimal, error) {
	m, err := c.memberships.ActiveMembership(ctx, companyID)
	if err != nil {
		return decimal.Zero, err
	}
	return m.FeePercent, nil
}

// Split resolves the company's fee percent and splits the amount.
func (c *RevenueShareCalculator) Split(ctx context.Context, companyID int64, amount decimal.Decimal) (ShareBreakdown, error) {
	fee, err := c.FeePercent(ctx, companyID)
	if err != nil {
		return ShareBreakdown{}, err
	}
	return SplitRevenue(amount, fee), nil
}
