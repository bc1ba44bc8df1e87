package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	gateway "github.com/younegotiate/settlement-engine/internal/gateways"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/internal/notify"
	"github.com/younegotiate/settlement-engine/internal/repository"
	"github.com/younegotiate/settlement-engine/pkg/logger"
	"github.com/younegotiate/settlement-engine/pkg/prom"
)

var (
	ErrNotSettleable     = errors.New("schedule transaction is not settleable")
	ErrOverspend         = errors.New("amount exceeds outstanding balance")
	ErrDataIntegrity     = errors.New("settlement blocked by inconsistent account data")
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

type ConsumerStore interface {
	Get(ctx context.Context, id int64) (*model.Consumer, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Consumer, error)
	DecrementBalance(ctx context.Context, consumerID int64, amount decimal.Decimal) error
	SetStatus(ctx context.Context, consumerID int64, status model.ConsumerStatus) error
	SetHasFailedPayment(ctx context.Context, consumerID int64, failed bool) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type NegotiationStore interface {
	Create(ctx context.Context, n *model.NegotiationRecord) (*model.NegotiationRecord, error)
	Get(ctx context.Context, id int64) (*model.NegotiationRecord, error)
	GetByConsumer(ctx context.Context, consumerID int64) (*model.NegotiationRecord, error)
	DecrementPlanBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
}

type ScheduleStore interface {
	Create(ctx context.Context, st *model.ScheduleTransaction) (*model.ScheduleTransaction, error)
	CreateBatch(ctx context.Context, sts []*model.ScheduleTransaction) ([]*model.ScheduleTransaction, error)
	Get(ctx context.Context, id int64) (*model.ScheduleTransaction, error)
	MarkSuccessful(ctx context.Context, id int64, transactionID int64, attemptedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, attemptedAt time.Time) error
	MarkReplaced(ctx context.Context, id int64, marker model.ScheduleStatus) error
	AdvanceDate(ctx context.Context, id int64, newDate time.Time) error
	NextScheduledAfter(ctx context.Context, consumerID int64, after time.Time) (*model.ScheduleTransaction, error)
	HasScheduledOn(ctx context.Context, consumerID int64, date time.Time) (bool, error)
}

type TransactionStore interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
}

type ProfileStore interface {
	GetByConsumer(ctx context.Context, consumerID int64) (*model.PaymentProfile, error)
}

type CompanyStore interface {
	Get(ctx context.Context, id int64) (*model.Company, error)
}

// SettlementOutcome is what one settlement attempt produced: the
// immutable transaction row plus the balances after bookkeeping.
type SettlementOutcome struct {
	Transaction     *model.Transaction
	PlanBalance     decimal.Decimal
	ConsumerSettled bool

	Declined    bool
	DeclineCode string
}

// SettlementCoordinator runs the money movement and every piece of
// bookkeeping around it. It is the only writer of consumer balances,
// plan balances and schedule transitions.
type SettlementCoordinator struct {
	consumers    ConsumerStore
	negotiations NegotiationStore
	schedules    ScheduleStore
	transactions TransactionStore
	profiles     ProfileStore
	companies    CompanyStore
	gateways     *gateway.Registry
	revenue      *RevenueShareCalculator
	notifier     notify.Notifier
}

func NewSettlementCoordinator(
	consumers ConsumerStore,
	negotiations NegotiationStore,
	schedules ScheduleStore,
	transactions TransactionStore,
	profiles ProfileStore,
	companies CompanyStore,
	gateways *gateway.Registry,
	revenue *RevenueShareCalculator,
	notifier notify.Notifier,
) *SettlementCoordinator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &SettlementCoordinator{
		consumers:    consumers,
		negotiations: negotiations,
		schedules:    schedules,
		transactions: transactions,
		profiles:     profiles,
		companies:    companies,
		gateways:     gateways,
		revenue:      revenue,
		notifier:     notifier,
	}
}

// Settle runs one settlement attempt against a schedule transaction.
//
// Preconditions: the row must be SCHEDULED; a missing payment profile or
// negotiation record is a data integrity failure that leaves the row
// untouched for an operator to fix. Any gateway failure, decline,
// transport error or panic alike, resolves to FAILED bookkeeping with a
// nil error: the attempt ran, its outcome is recorded.
func (c *SettlementCoordinator) Settle(ctx context.Context, scheduleTransactionID int64) (*SettlementOutcome, error) {
	st, err := c.schedules.Get(ctx, scheduleTransactionID)
	if err != nil {
		return nil, err
	}
	if st.Status != model.ScheduleStatusScheduled {
		return nil, fmt.Errorf("%w: id=%d status=%s", ErrNotSettleable, st.ID, st.Status)
	}

	consumer, err := c.consumers.Get(ctx, st.ConsumerID)
	if err != nil {
		return nil, err
	}

	profile, err := c.profiles.GetByConsumer(ctx, st.ConsumerID)
	if err != nil {
		return nil, fmt.Errorf("%w: consumer=%d has no payment profile: %v", ErrDataIntegrity, st.ConsumerID, err)
	}

	if _, err := c.negotiations.Get(ctx, st.NegotiationID); err != nil {
		return nil, fmt.Errorf("%w: schedule=%d references negotiation=%d: %v", ErrDataIntegrity, st.ID, st.NegotiationID, err)
	}

	adapter, err := c.adapterFor(ctx, consumer, profile)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, chargeErr := safeCharge(ctx, adapter, st.Amount, profile.ProfileRef)

	if chargeErr != nil {
		outcome, err := c.bookkeepFailure(ctx, st, adapter.Name(), chargeErr)
		observeSettlement(adapter.Name(), outcome, err, started)
		return outcome, err
	}

	outcome, err := c.bookkeepSuccess(ctx, st, consumer, adapter.Name(), result)
	observeSettlement(adapter.Name(), outcome, err, started)
	return outcome, err
}

// SettleImmediate charges an ad-hoc amount outside the schedule, e.g. a
// consumer paying extra from the portal. The outstanding total is
// re-read under the consumer row lock before the charge so two
// concurrent payments cannot jointly overspend the balance.
func (c *SettlementCoordinator) SettleImmediate(ctx context.Context, consumerID int64, amount decimal.Decimal) (*SettlementOutcome, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	consumer, err := c.consumers.Get(ctx, consumerID)
	if err != nil {
		return nil, err
	}

	profile, err := c.profiles.GetByConsumer(ctx, consumerID)
	if err != nil {
		return nil, fmt.Errorf("%w: consumer=%d has no payment profile: %v", ErrDataIntegrity, consumerID, err)
	}

	adapter, err := c.adapterFor(ctx, consumer, profile)
	if err != nil {
		return nil, err
	}

	breakdown, err := c.revenue.Split(ctx, consumer.CompanyID, amount)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var outcome *SettlementOutcome

	err = c.consumers.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := c.consumers.GetForUpdate(ctx, consumerID)
		if err != nil {
			return err
		}

		// Outstanding is re-read inside the critical section. The
		// pre-lock value may already be stale.
		outstanding := locked.CurrentBalance
		var negotiationID *int64
		negotiation, err := c.negotiations.GetByConsumer(ctx, consumerID)
		switch {
		case err == nil:
			outstanding = negotiation.Outstanding()
			negotiationID = &negotiation.ID
		case errors.Is(err, repository.ErrNegotiationNotFound):
			// No accepted plan yet; the raw balance caps the payment.
		default:
			return err
		}

		if amount.GreaterThan(outstanding) {
			return fmt.Errorf("%w: amount=%s outstanding=%s", ErrOverspend, amount.StringFixed(2), outstanding.StringFixed(2))
		}

		result, chargeErr := safeCharge(ctx, adapter, amount, profile.ProfileRef)
		if chargeErr != nil {
			outcome, err = c.recordFailure(ctx, consumerID, amount, adapter.Name(), chargeErr)
			return err
		}

		txn, err := c.transactions.Create(ctx, &model.Transaction{
			ConsumerID:             consumerID,
			Amount:                 amount,
			Status:                 model.TransactionStatusSuccessful,
			GatewayName:            adapter.Name(),
			ExternalID:             result.ExternalID,
			StatusCode:             result.StatusCode,
			RawResponse:            result.Raw,
			RnnShare:               breakdown.PlatformShare,
			CompanyShare:           breakdown.CompanyShare,
			RevenueSharePercentage: breakdown.FeePercent,
		})
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		planBalance := decimal.Zero
		if negotiationID != nil {
			planBalance, err = c.negotiations.DecrementPlanBalance(ctx, *negotiationID, amount)
			if err != nil {
				return fmt.Errorf("decrement plan balance: %w", err)
			}
		}

		if err := c.consumers.DecrementBalance(ctx, consumerID, amount); err != nil {
			return fmt.Errorf("decrement consumer balance: %w", err)
		}

		settled := planBalance.IsZero()
		if negotiationID == nil {
			settled = !locked.CurrentBalance.GreaterThan(amount)
		}
		if err := c.finalizeConsumer(ctx, locked, settled); err != nil {
			return err
		}

		outcome = &SettlementOutcome{
			Transaction:     txn,
			PlanBalance:     planBalance,
			ConsumerSettled: settled,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.emit(ctx, consumerID, amount, outcome)
	observeSettlement(adapter.Name(), outcome, err, started)
	return outcome, nil
}

func (c *SettlementCoordinator) adapterFor(ctx context.Context, consumer *model.Consumer, profile *model.PaymentProfile) (gateway.Adapter, error) {
	name := profile.Gateway
	if name == "" {
		company, err := c.companies.Get(ctx, consumer.CompanyID)
		if err != nil {
			return nil, err
		}
		name = company.MerchantGateway
	}

	adapter, err := c.gateways.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("%w: consumer=%d gateway=%q", ErrDataIntegrity, consumer.ID, name)
	}
	return adapter, nil
}

func (c *SettlementCoordinator) bookkeepSuccess(ctx context.Context, st *model.ScheduleTransaction, consumer *model.Consumer, gatewayName string, result *gateway.ChargeResult) (*SettlementOutcome, error) {
	// The fee percent was snapshotted onto the row when the plan was
	// materialized; a membership change mid-plan never reprices
	// already-scheduled installments.
	breakdown := SplitRevenue(st.Amount, st.RevenueSharePercentage)

	var outcome *SettlementOutcome
	err := c.consumers.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := c.transactions.Create(ctx, &model.Transaction{
			ConsumerID:             st.ConsumerID,
			Amount:                 st.Amount,
			Status:                 model.TransactionStatusSuccessful,
			GatewayName:            gatewayName,
			ExternalID:             result.ExternalID,
			StatusCode:             result.StatusCode,
			RawResponse:            result.Raw,
			RnnShare:               breakdown.PlatformShare,
			CompanyShare:           breakdown.CompanyShare,
			RevenueSharePercentage: breakdown.FeePercent,
		})
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		if err := c.schedules.MarkSuccessful(ctx, st.ID, txn.ID, time.Now()); err != nil {
			return fmt.Errorf("mark schedule successful: %w", err)
		}

		planBalance, err := c.negotiations.DecrementPlanBalance(ctx, st.NegotiationID, st.Amount)
		if err != nil {
			return fmt.Errorf("decrement plan balance: %w", err)
		}

		if err := c.consumers.DecrementBalance(ctx, st.ConsumerID, st.Amount); err != nil {
			return fmt.Errorf("decrement consumer balance: %w", err)
		}

		settled := planBalance.IsZero()
		if err := c.finalizeConsumer(ctx, consumer, settled); err != nil {
			return err
		}

		outcome = &SettlementOutcome{
			Transaction:     txn,
			PlanBalance:     planBalance,
			ConsumerSettled: settled,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.emit(ctx, st.ConsumerID, st.Amount, outcome)
	return outcome, nil
}

func (c *SettlementCoordinator) bookkeepFailure(ctx context.Context, st *model.ScheduleTransaction, gatewayName string, chargeErr error) (*SettlementOutcome, error) {
	var outcome *SettlementOutcome
	err := c.consumers.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = c.recordFailure(ctx, st.ConsumerID, st.Amount, gatewayName, chargeErr)
		if err != nil {
			return err
		}
		if err := c.schedules.MarkFailed(ctx, st.ID, time.Now()); err != nil {
			return fmt.Errorf("mark schedule failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.emit(ctx, st.ConsumerID, st.Amount, outcome)
	return outcome, nil
}

// recordFailure appends the FAILED transaction row and flags the
// consumer. Balances never move on a failed attempt.
func (c *SettlementCoordinator) recordFailure(ctx context.Context, consumerID int64, amount decimal.Decimal, gatewayName string, chargeErr error) (*SettlementOutcome, error) {
	code, message, raw := "", chargeErr.Error(), ""
	if d, ok := gateway.AsDecline(chargeErr); ok {
		code, message, raw = d.Code, d.Message, d.Raw
	}

	txn, err := c.transactions.Create(ctx, &model.Transaction{
		ConsumerID:  consumerID,
		Amount:      amount,
		Status:      model.TransactionStatusFailed,
		GatewayName: gatewayName,
		StatusCode:  code,
		RawResponse: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	if err := c.consumers.SetHasFailedPayment(ctx, consumerID, true); err != nil {
		return nil, fmt.Errorf("flag failed payment: %w", err)
	}

	logger.Warn("[settlement] charge failed",
		"consumer_id", consumerID,
		"gateway", gatewayName,
		"code", code,
		"reason", message,
	)

	return &SettlementOutcome{
		Transaction: txn,
		Declined:    true,
		DeclineCode: code,
	}, nil
}

// finalizeConsumer flips the account to SETTLED when the plan is paid
// off and clears the failed-payment flag after any successful charge.
// The clear is unconditional: a concurrent attempt may have raised the
// flag after our pre-charge snapshot was read.
func (c *SettlementCoordinator) finalizeConsumer(ctx context.Context, consumer *model.Consumer, settled bool) error {
	if settled {
		if err := c.consumers.SetStatus(ctx, consumer.ID, model.ConsumerStatusSettled); err != nil {
			return fmt.Errorf("set consumer settled: %w", err)
		}
	}
	if err := c.consumers.SetHasFailedPayment(ctx, consumer.ID, false); err != nil {
		return fmt.Errorf("clear failed payment: %w", err)
	}
	return nil
}

func (c *SettlementCoordinator) emit(ctx context.Context, consumerID int64, amount decimal.Decimal, outcome *SettlementOutcome) {
	e := notify.Event{
		ConsumerID: consumerID,
		Amount:     amount,
	}
	switch {
	case outcome.Declined:
		e.Code = notify.EventPaymentFailed
		e.Detail = outcome.DeclineCode
	case outcome.ConsumerSettled:
		e.Code = notify.EventBalancePaid
	default:
		e.Code = notify.EventInstallmentPaid
	}

	if err := c.notifier.Notify(ctx, e); err != nil {
		logger.Warn("[settlement] notify failed", "consumer_id", consumerID, "event", string(e.Code), "error", err)
	}
}

// safeCharge shields the coordinator from misbehaving adapters: a panic
// during the charge becomes an error and therefore a FAILED attempt.
func safeCharge(ctx context.Context, adapter gateway.Adapter, amount decimal.Decimal, profileRef string) (result *gateway.ChargeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("gateway panic: %v", r)
		}
	}()
	return adapter.Charge(ctx, amount, profileRef)
}

func observeSettlement(gatewayName string, outcome *SettlementOutcome, err error, started time.Time) {
	status := "failed"
	if err == nil && outcome != nil && !outcome.Declined {
		status = "successful"
	}
	prom.ObserveSettlementDuration(time.Since(started).Seconds(), gatewayName, status)
	prom.IncSettlementOutcome(gatewayName, status)
}
