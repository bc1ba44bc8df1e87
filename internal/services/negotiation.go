package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/internal/repository"
	"github.com/younegotiate/settlement-engine/pkg/logger"
)

var (
	ErrConsumerInactive       = errors.New("consumer account cannot negotiate in its current status")
	ErrNegotiationExists      = errors.New("consumer already has an active negotiation")
	ErrMonthlyBelowMinimum    = errors.New("monthly amount is below the minimum")
	ErrFirstPayOutOfWindow    = errors.New("first pay date is outside the allowed window")
	ErrDateNotAfterToday      = errors.New("new date must be after today")
	ErrDateBeyondNext         = errors.New("new date must fall before the next scheduled payment")
	ErrScheduleDateTaken      = errors.New("consumer already has a payment scheduled on that date")
	ErrScheduleNotReplaceable = errors.New("only failed schedule transactions can be given a new date")
)

// OfferRequest carries the terms being accepted. For the offer flow the
// engine computes the amounts from the discount cascade; for the
// counter-offer flow the company's proposed amount is taken as is.
type OfferRequest struct {
	ConsumerID    int64
	Type          model.NegotiationType
	MonthlyAmount decimal.Decimal
	Cadence       model.InstallmentCadence
	FirstPayDate  time.Time

	// CounterAmount is the company-proposed total, set only on the
	// counter-offer path.
	CounterAmount decimal.Decimal
}

// PlanPreview is the non-persisted dry run of an installment offer.
type PlanPreview struct {
	Balance         decimal.Decimal `json:"balance"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Discount        decimal.Decimal `json:"discount"`
	TotalPayable    decimal.Decimal `json:"total_payable"`
	MinMonthly      decimal.Decimal `json:"min_monthly"`
	Plan            InstallmentPlan `json:"plan"`
}

// NegotiationService owns the acceptance flow and every schedule-shape
// operation (reschedule, consumer change-date, skip). Settlement money
// movement stays with the coordinator.
type NegotiationService struct {
	consumers    ConsumerStore
	negotiations NegotiationStore
	schedules    ScheduleStore
	discounts    *DiscountEngine
	revenue      *RevenueShareCalculator
	now          func() time.Time
}

func NewNegotiationService(
	consumers ConsumerStore,
	negotiations NegotiationStore,
	schedules ScheduleStore,
	discounts *DiscountEngine,
	revenue *RevenueShareCalculator,
) *NegotiationService {
	return &NegotiationService{
		consumers:    consumers,
		negotiations: negotiations,
		schedules:    schedules,
		discounts:    discounts,
		revenue:      revenue,
		now:          time.Now,
	}
}

// AcceptOffer accepts the platform-computed offer: the discount cascade
// drives the payoff or plan total. The negotiation record, its schedule
// rows and the consumer status flip commit atomically.
func (s *NegotiationService) AcceptOffer(ctx context.Context, req OfferRequest) (*model.NegotiationRecord, error) {
	return s.accept(ctx, req, false)
}

// AcceptCounterOffer accepts a company-proposed amount instead of the
// cascade-computed one. The counter side of the record becomes
// authoritative.
func (s *NegotiationService) AcceptCounterOffer(ctx context.Context, req OfferRequest) (*model.NegotiationRecord, error) {
	if !req.CounterAmount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	return s.accept(ctx, req, true)
}

func (s *NegotiationService) accept(ctx context.Context, req OfferRequest, counter bool) (*model.NegotiationRecord, error) {
	consumer, err := s.consumers.Get(ctx, req.ConsumerID)
	if err != nil {
		return nil, err
	}
	if consumer.Status != model.ConsumerStatusJoined {
		return nil, fmt.Errorf("%w: status=%s", ErrConsumerInactive, consumer.Status)
	}

	if existing, err := s.negotiations.GetByConsumer(ctx, req.ConsumerID); err == nil {
		if existing.Outstanding().IsPositive() {
			return nil, ErrNegotiationExists
		}
	} else if !errors.Is(err, repository.ErrNegotiationNotFound) {
		return nil, err
	}

	var record *model.NegotiationRecord
	switch req.Type {
	case model.NegotiationTypePIF:
		record, err = s.buildPayoff(ctx, consumer, req, counter)
	default:
		record, err = s.buildInstallment(ctx, consumer, req, counter)
	}
	if err != nil {
		return nil, err
	}

	feePercent, err := s.revenue.FeePercent(ctx, consumer.CompanyID)
	if err != nil {
		return nil, err
	}

	plan := InstallmentPlan{
		Total:   record.ActiveAmount(),
		Monthly: record.MonthlyAmount,
		N:       record.NoOfInstallments,
		Last:    record.LastMonthAmount,
	}

	var created *model.NegotiationRecord
	err = s.consumers.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err = s.negotiations.Create(ctx, record)
		if err != nil {
			return fmt.Errorf("create negotiation: %w", err)
		}

		rows := MaterializeSchedule(plan, created, feePercent, s.now())
		if _, err := s.schedules.CreateBatch(ctx, rows); err != nil {
			return fmt.Errorf("materialize schedule: %w", err)
		}

		if err := s.consumers.SetStatus(ctx, consumer.ID, model.ConsumerStatusPaymentAccepted); err != nil {
			return fmt.Errorf("set consumer status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[negotiation] accepted",
		"consumer_id", consumer.ID,
		"type", string(created.Type),
		"total", created.ActiveAmount().StringFixed(2),
		"installments", plan.Installments(),
	)
	return created, nil
}

func (s *NegotiationService) buildPayoff(ctx context.Context, consumer *model.Consumer, req OfferRequest, counter bool) (*model.NegotiationRecord, error) {
	record := &model.NegotiationRecord{
		ConsumerID:   consumer.ID,
		Type:         model.NegotiationTypePIF,
		FirstPayDate: req.FirstPayDate,
		Cadence:      model.CadenceMonthly,
	}

	if counter {
		record.CounterOfferAccepted = true
		record.CounterOneTimeAmount = &req.CounterAmount
	} else {
		percent, err := s.discounts.PifDiscountPercent(ctx, consumer)
		if err != nil {
			return nil, err
		}
		amount := PayoffAmount(consumer.CurrentBalance, percent)
		record.OfferAccepted = true
		record.OneTimeSettlement = &amount
	}

	if err := s.checkFirstPayDate(ctx, consumer, req.FirstPayDate); err != nil {
		return nil, err
	}

	// A payoff materializes as a single trailing payment.
	total := record.ActiveAmount()
	record.LastMonthAmount = total
	record.PaymentPlanCurrentBalance = &total
	return record, nil
}

func (s *NegotiationService) buildInstallment(ctx context.Context, consumer *model.Consumer, req OfferRequest, counter bool) (*model.NegotiationRecord, error) {
	record := &model.NegotiationRecord{
		ConsumerID:   consumer.ID,
		Type:         model.NegotiationTypeInstallment,
		Cadence:      req.Cadence,
		FirstPayDate: req.FirstPayDate,
	}
	if record.Cadence == "" {
		record.Cadence = model.CadenceMonthly
	}

	var total decimal.Decimal
	if counter {
		total = req.CounterAmount
		record.CounterOfferAccepted = true
		record.CounterNegotiateAmount = &total
	} else {
		percent, err := s.discounts.PpaDiscountPercent(ctx, consumer)
		if err != nil {
			return nil, err
		}
		total = PayoffAmount(consumer.CurrentBalance, percent)
		record.OfferAccepted = true
		record.NegotiateAmount = &total
	}

	minPercent, err := s.discounts.MinMonthlyPercent(ctx, consumer)
	if err != nil {
		return nil, err
	}
	if req.MonthlyAmount.LessThan(MinimumMonthlyAmount(total, minPercent)) {
		return nil, fmt.Errorf("%w: monthly=%s minimum=%s",
			ErrMonthlyBelowMinimum, req.MonthlyAmount.StringFixed(2), MinimumMonthlyAmount(total, minPercent).StringFixed(2))
	}

	if err := s.checkFirstPayDate(ctx, consumer, req.FirstPayDate); err != nil {
		return nil, err
	}

	plan, err := BuildPlan(total, req.MonthlyAmount)
	if err != nil {
		return nil, err
	}

	record.NoOfInstallments = plan.N
	record.MonthlyAmount = plan.Monthly
	record.LastMonthAmount = plan.Last
	record.PaymentPlanCurrentBalance = &total
	return record, nil
}

// checkFirstPayDate enforces the cascade-resolved window: the first
// payment may not be in the past nor further out than the window allows.
func (s *NegotiationService) checkFirstPayDate(ctx context.Context, consumer *model.Consumer, firstPay time.Time) error {
	window, err := s.discounts.MaxFirstPayWindow(ctx, consumer)
	if err != nil {
		return err
	}

	today := startOfDay(s.now())
	if firstPay.Before(today) {
		return fmt.Errorf("%w: date=%s is in the past", ErrFirstPayOutOfWindow, firstPay.Format("2006-01-02"))
	}
	if firstPay.After(today.AddDate(0, 0, window)) {
		return fmt.Errorf("%w: date=%s exceeds %d days", ErrFirstPayOutOfWindow, firstPay.Format("2006-01-02"), window)
	}
	return nil
}

// PreviewPlan runs the discount cascade and the planner without
// persisting anything.
func (s *NegotiationService) PreviewPlan(ctx context.Context, consumerID int64, monthlyAmount decimal.Decimal) (*PlanPreview, error) {
	consumer, err := s.consumers.Get(ctx, consumerID)
	if err != nil {
		return nil, err
	}

	percent, err := s.discounts.PpaDiscountPercent(ctx, consumer)
	if err != nil {
		return nil, err
	}
	minPercent, err := s.discounts.MinMonthlyPercent(ctx, consumer)
	if err != nil {
		return nil, err
	}

	total := PayoffAmount(consumer.CurrentBalance, percent)
	plan, err := BuildPlan(total, monthlyAmount)
	if err != nil {
		return nil, err
	}

	return &PlanPreview{
		Balance:         consumer.CurrentBalance,
		DiscountPercent: percent,
		Discount:        PayoffDiscount(consumer.CurrentBalance, percent),
		TotalPayable:    total,
		MinMonthly:      MinimumMonthlyAmount(total, minPercent),
		Plan:            plan,
	}, nil
}

// Reschedule gives a FAILED schedule transaction a new date. The failed
// row keeps its history under the RESCHEDULED marker and a fresh
// SCHEDULED row carries the amount forward.
func (s *NegotiationService) Reschedule(ctx context.Context, scheduleTransactionID int64, newDate time.Time) (*model.ScheduleTransaction, error) {
	return s.replace(ctx, scheduleTransactionID, newDate, model.ScheduleStatusRescheduled)
}

// ChangeDate is the consumer-initiated variant of Reschedule with
// stricter validation: the new date must be after today, before the
// consumer's next scheduled payment, and free of other scheduled rows.
func (s *NegotiationService) ChangeDate(ctx context.Context, scheduleTransactionID int64, newDate time.Time) (*model.ScheduleTransaction, error) {
	st, err := s.schedules.Get(ctx, scheduleTransactionID)
	if err != nil {
		return nil, err
	}

	next, err := s.schedules.NextScheduledAfter(ctx, st.ConsumerID, startOfDay(s.now()))
	if err != nil && !errors.Is(err, repository.ErrScheduleNotFound) {
		return nil, err
	}
	if next != nil && !newDate.Before(next.ScheduleDate) {
		return nil, fmt.Errorf("%w: next payment is %s", ErrDateBeyondNext, next.ScheduleDate.Format("2006-01-02"))
	}

	taken, err := s.schedules.HasScheduledOn(ctx, st.ConsumerID, newDate)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrScheduleDateTaken
	}

	return s.replace(ctx, scheduleTransactionID, newDate, model.ScheduleStatusConsumerChangeDate)
}

func (s *NegotiationService) replace(ctx context.Context, scheduleTransactionID int64, newDate time.Time, marker model.ScheduleStatus) (*model.ScheduleTransaction, error) {
	tomorrow := startOfDay(s.now()).AddDate(0, 0, 1)
	if newDate.Before(tomorrow) {
		return nil, ErrDateNotAfterToday
	}

	st, err := s.schedules.Get(ctx, scheduleTransactionID)
	if err != nil {
		return nil, err
	}
	if st.Status != model.ScheduleStatusFailed {
		return nil, fmt.Errorf("%w: status=%s", ErrScheduleNotReplaceable, st.Status)
	}

	var replacement *model.ScheduleTransaction
	err = s.consumers.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.schedules.MarkReplaced(ctx, st.ID, marker); err != nil {
			if errors.Is(err, repository.ErrTerminalState) {
				return fmt.Errorf("%w: status=%s", ErrScheduleNotReplaceable, st.Status)
			}
			return err
		}

		prev := st.ScheduleDate
		replacement, err = s.schedules.Create(ctx, &model.ScheduleTransaction{
			ConsumerID:             st.ConsumerID,
			NegotiationID:          st.NegotiationID,
			Amount:                 st.Amount,
			ScheduleDate:           newDate,
			Status:                 model.ScheduleStatusScheduled,
			PreviousScheduleDate:   &prev,
			RevenueSharePercentage: st.RevenueSharePercentage,
		})
		if err != nil {
			return fmt.Errorf("create replacement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[negotiation] schedule replaced",
		"schedule_id", st.ID,
		"replacement_id", replacement.ID,
		"marker", string(marker),
		"new_date", newDate.Format("2006-01-02"),
	)
	return replacement, nil
}

// Skip pushes a SCHEDULED row one cadence step forward in place. A row
// already due today cannot be skipped out from under the processor.
func (s *NegotiationService) Skip(ctx context.Context, scheduleTransactionID int64) (*model.ScheduleTransaction, error) {
	st, err := s.schedules.Get(ctx, scheduleTransactionID)
	if err != nil {
		return nil, err
	}
	if st.Status != model.ScheduleStatusScheduled {
		return nil, fmt.Errorf("%w: id=%d status=%s", ErrNotSettleable, st.ID, st.Status)
	}
	if sameDay(st.ScheduleDate, s.now()) {
		return st, nil
	}

	negotiation, err := s.negotiations.Get(ctx, st.NegotiationID)
	if err != nil {
		return nil, err
	}

	snapEOM := negotiation.Cadence == model.CadenceMonthly && IsLastDayOfMonth(st.ScheduleDate)
	newDate := NextScheduleDate(st.ScheduleDate, negotiation.Cadence, snapEOM)

	if err := s.schedules.AdvanceDate(ctx, st.ID, newDate); err != nil {
		if errors.Is(err, repository.ErrTerminalState) {
			return nil, fmt.Errorf("%w: id=%d", ErrNotSettleable, st.ID)
		}
		return nil, err
	}

	st.ScheduleDate = newDate
	return st, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
