package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

var (
	ErrInvalidMonthlyAmount = errors.New("monthly amount must be positive")
	ErrInvalidTotalPayable  = errors.New("total payable must be positive")
)

// minTrailingInstallment is the smallest final installment the planner
// will emit; remainders below it are merged into the prior installment.
var minTrailingInstallment = decimal.NewFromInt(10)

// InstallmentPlan is the result of dividing a discounted total into
// equal installments plus a corrected last one.
//
// Invariant: Monthly*N + Last == Total exactly, to the cent.
type InstallmentPlan struct {
	Total   decimal.Decimal
	Monthly decimal.Decimal
	N       int
	Last    decimal.Decimal
}

// Installments returns the count of rows the plan materializes to.
func (p InstallmentPlan) Installments() int {
	if p.Last.IsPositive() {
		return p.N + 1
	}
	return p.N
}

// BuildPlan divides totalPayable into N payments of monthlyAmount plus
// a final corrected payment.
//
// The division result is rounded to 10 places before flooring to guard
// against artifacts from the decimal division's fixed precision. A
// remainder under $10 is merged into the previous installment rather
// than materialized as its own trailing payment; a zero remainder means
// the total divides evenly and no trailing payment exists.
func BuildPlan(totalPayable, monthlyAmount decimal.Decimal) (InstallmentPlan, error) {
	if !totalPayable.IsPositive() {
		return InstallmentPlan{}, ErrInvalidTotalPayable
	}
	if !monthlyAmount.IsPositive() {
		return InstallmentPlan{}, ErrInvalidMonthlyAmount
	}

	n := totalPayable.Div(monthlyAmount).Round(10).Floor().IntPart()
	remainder := totalPayable.Sub(monthlyAmount.Mul(decimal.NewFromInt(n))).Round(2)

	// The merge needs a prior installment to fold into; a total below
	// both the monthly amount and the threshold is simply one payment
	// of the total.
	var last decimal.Decimal
	if n > 0 && remainder.IsPositive() && remainder.LessThan(minTrailingInstallment) {
		n--
		last = monthlyAmount.Add(remainder)
	} else {
		last = remainder
	}

	return InstallmentPlan{
		Total:   totalPayable,
		Monthly: monthlyAmount,
		N:       int(n),
		Last:    last,
	}, nil
}

// NextScheduleDate advances one cadence step from the given date.
// Monthly cadence snaps to end-of-month when snapEOM is set, so a plan
// anchored on Jan 31 lands on Feb 28/29, Mar 31, and so on.
func NextScheduleDate(d time.Time, cadence model.InstallmentCadence, snapEOM bool) time.Time {
	switch cadence {
	case model.CadenceWeekly:
		return d.AddDate(0, 0, 7)
	case model.CadenceBimonthly:
		return d.AddDate(0, 0, 15)
	default:
		if snapEOM {
			firstOfNext := time.Date(d.Year(), d.Month(), 1, d.Hour(), d.Minute(), d.Second(), 0, d.Location()).AddDate(0, 2, 0)
			return firstOfNext.AddDate(0, 0, -1)
		}
		// AddDate normalizes overflow (Jan 30 + 1 month = Mar 2); clamp
		// back to the last day of the intended month instead.
		next := d.AddDate(0, 1, 0)
		if next.Day() != d.Day() {
			next = next.AddDate(0, 0, -next.Day())
		}
		return next
	}
}

// IsLastDayOfMonth reports whether d falls on the final day of its month.
func IsLastDayOfMonth(d time.Time) bool {
	return d.AddDate(0, 0, 1).Day() == 1
}

// MaterializeSchedule emits the dated schedule transactions for a plan.
//
// The first date is the negotiated first-pay date, falling back to now
// when that date already passed before payment setup completed. Monthly
// plans whose first date is the last day of its month keep snapping to
// month-end for every subsequent installment.
func MaterializeSchedule(plan InstallmentPlan, negotiation *model.NegotiationRecord, feePercent decimal.Decimal, now time.Time) []*model.ScheduleTransaction {
	first := negotiation.FirstPayDate
	if first.Before(now) {
		first = now
	}

	snapEOM := negotiation.Cadence == model.CadenceMonthly && IsLastDayOfMonth(first)

	rows := make([]*model.ScheduleTransaction, 0, plan.Installments())
	date := first
	for i := 0; i < plan.N; i++ {
		rows = append(rows, &model.ScheduleTransaction{
			ConsumerID:             negotiation.ConsumerID,
			NegotiationID:          negotiation.ID,
			Amount:                 plan.Monthly,
			ScheduleDate:           date,
			Status:                 model.ScheduleStatusScheduled,
			RevenueSharePercentage: feePercent,
		})
		date = NextScheduleDate(date, negotiation.Cadence, snapEOM)
	}

	if plan.Last.IsPositive() {
		rows = append(rows, &model.ScheduleTransaction{
			ConsumerID:             negotiation.ConsumerID,
			NegotiationID:          negotiation.ID,
			Amount:                 plan.Last,
			ScheduleDate:           date,
			Status:                 model.ScheduleStatusScheduled,
			RevenueSharePercentage: feePercent,
		})
	}

	return rows
}
