package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

var (
	// ErrDiscountNotConfigured means the cascade bottomed out: neither
	// the consumer, nor its subclient, nor the company defines the
	// requested percent. Computing a silent zero discount here would
	// corrupt every downstream amount, so this is a hard error.
	ErrDiscountNotConfigured = errors.New("discount percent not configured for company")
)

// DefaultMaxFirstPayDays bounds the first-payment date when no level of
// the cascade configures a window.
const DefaultMaxFirstPayDays = 30

type SubclientRepository interface {
	GetSubclient(ctx context.Context, id int64) (*model.Subclient, error)
	Get(ctx context.Context, id int64) (*model.Company, error)
}

// DiscountEngine resolves payoff and plan percentages through the
// cascade: consumer override, then subclient (when the consumer belongs
// to one), then company.
type DiscountEngine struct {
	companyRepo SubclientRepository
}

func NewDiscountEngine(companyRepo SubclientRepository) *DiscountEngine {
	return &DiscountEngine{
		companyRepo: companyRepo,
	}
}

// discountSettings is the slice of the cascade relevant at one level.
type discountSettings struct {
	pif        *decimal.Decimal
	ppa        *decimal.Decimal
	minMonthly *decimal.Decimal
	firstPay   *int
}

func (e *DiscountEngine) settingsFor(ctx context.Context, c *model.Consumer) ([]discountSettings, error) {
	levels := []discountSettings{
		{pif: c.PifDiscountPercent, ppa: c.PpaDiscountPercent, minMonthly: c.MinMonthlyPercent, firstPay: c.MaxFirstPayDays},
	}

	if c.SubclientID != nil {
		sub, err := e.companyRepo.GetSubclient(ctx, *c.SubclientID)
		if err != nil {
			return nil, err
		}
		levels = append(levels, discountSettings{
			pif: sub.PifDiscountPercent, ppa: sub.PpaDiscountPercent,
			minMonthly: sub.MinMonthlyPercent, firstPay: sub.MaxFirstPayDays,
		})
	}

	company, err := e.companyRepo.Get(ctx, c.CompanyID)
	if err != nil {
		return nil, err
	}
	levels = append(levels, discountSettings{
		pif: company.PifDiscountPercent, ppa: company.PpaDiscountPercent,
		minMonthly: company.MinMonthlyPercent, firstPay: company.MaxFirstPayDays,
	})

	return levels, nil
}

// PifDiscountPercent resolves the pay-in-full discount percent.
func (e *DiscountEngine) PifDiscountPercent(ctx context.Context, c *model.Consumer) (decimal.Decimal, error) {
	levels, err := e.settingsFor(ctx, c)
	if err != nil {
		return decimal.Zero, err
	}
	for _, l := range levels {
		if l.pif != nil {
			return *l.pif, nil
		}
	}
	return decimal.Zero, ErrDiscountNotConfigured
}

// PpaDiscountPercent resolves the installment-plan discount percent.
func (e *DiscountEngine) PpaDiscountPercent(ctx context.Context, c *model.Consumer) (decimal.Decimal, error) {
	levels, err := e.settingsFor(ctx, c)
	if err != nil {
		return decimal.Zero, err
	}
	for _, l := range levels {
		if l.ppa != nil {
			return *l.ppa, nil
		}
	}
	return decimal.Zero, ErrDiscountNotConfigured
}

// MinMonthlyPercent resolves the minimum monthly payment percent.
func (e *DiscountEngine) MinMonthlyPercent(ctx context.Context, c *model.Consumer) (decimal.Decimal, error) {
	levels, err := e.settingsFor(ctx, c)
	if err != nil {
		return decimal.Zero, err
	}
	for _, l := range levels {
		if l.minMonthly != nil {
			return *l.minMonthly, nil
		}
	}
	return decimal.Zero, ErrDiscountNotConfigured
}

// MaxFirstPayWindow resolves the day count bounding the first payment
// date. Unlike the percent fields this one has a default.
func (e *DiscountEngine) MaxFirstPayWindow(ctx context.Context, c *model.Consumer) (int, error) {
	levels, err := e.settingsFor(ctx, c)
	if err != nil {
		return 0, err
	}
	for _, l := range levels {
		if l.firstPay != nil {
			return *l.firstPay, nil
		}
	}
	return DefaultMaxFirstPayDays, nil
}

// PayoffDiscount is round(balance * percent / 100, 2).
func PayoffDiscount(balance, percent decimal.Decimal) decimal.Decimal {
	return balance.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// PayoffAmount is the balance minus the payoff discount.
func PayoffAmount(balance, percent decimal.Decimal) decimal.Decimal {
	return balance.Sub(PayoffDiscount(balance, percent))
}

// MinimumMonthlyAmount is round(discountedAmount * percent / 100, 2).
func MinimumMonthlyAmount(discountedAmount, percent decimal.Decimal) decimal.Decimal {
	return discountedAmount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}
