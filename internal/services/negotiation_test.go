package services

import (
	"context"
	"testing"
	"time"

	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type negotiationFixture struct {
	consumers    *MockConsumerStore
	negotiations *MockNegotiationStore
	schedules    *MockScheduleStore
	companies    *MockCompanyStore
	service      *NegotiationService
}

func newNegotiationFixture(now time.Time) *negotiationFixture {
	f := &negotiationFixture{
		consumers:    new(MockConsumerStore),
		negotiations: new(MockNegotiationStore),
		schedules:    new(MockScheduleStore),
		companies:    new(MockCompanyStore),
	}
	f.service = NewNegotiationService(
		f.consumers,
		f.negotiations,
		f.schedules,
		NewDiscountEngine(f.companies),
		NewRevenueShareCalculator(f.companies),
	)
	f.service.now = func() time.Time { return now }
	return f
}

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func joinedConsumer() *model.Consumer {
	return &model.Consumer{
		ID:             1,
		CompanyID:      10,
		CurrentBalance: d("1000"),
		Status:         model.ConsumerStatusJoined,
	}
}

func configuredCompany() *model.Company {
	return &model.Company{
		ID:                 10,
		PifDiscountPercent: dp("20"),
		PpaDiscountPercent: dp("10"),
		MinMonthlyPercent:  dp("5"),
		MerchantGateway:    "stripe",
	}
}

func TestNegotiationService_AcceptOffer_Installment(t *testing.T) {
	ctx := context.Background()
	f := newNegotiationFixture(testNow)

	f.consumers.On("Get", ctx, int64(1)).Return(joinedConsumer(), nil)
	f.negotiations.On("GetByConsumer", ctx, int64(1)).Return(nil, repository.ErrNegotiationNotFound)
	f.companies.On("Get", ctx, int64(10)).Return(configuredCompany(), nil)
	f.companies.On("ActiveMembership", ctx, int64(10)).Return(&model.Membership{
		ID: 1, CompanyID: 10, FeePercent: d("12"), Active: true,
	}, nil)

	f.consumers.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)

	f.negotiations.On("Create", ctx, mock.AnythingOfType("*model.NegotiationRecord")).
		Return(&model.NegotiationRecord{}, nil)

	var rows []*model.ScheduleTransaction
	f.schedules.On("CreateBatch", ctx, mock.AnythingOfType("[]*model.ScheduleTransaction")).
		Run(func(args mock.Arguments) {
			rows = args.Get(1).([]*model.ScheduleTransaction)
		}).
		Return([]*model.ScheduleTransaction{}, nil)

	f.consumers.On("SetStatus", ctx, int64(1), model.ConsumerStatusPaymentAccepted).Return(nil)

	record, err := f.service.AcceptOffer(ctx, OfferRequest{
		ConsumerID:    1,
		Type:          model.NegotiationTypeInstallment,
		MonthlyAmount: d("100"),
		Cadence:       model.CadenceMonthly,
		FirstPayDate:  time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotNil(t, record)

	// 10% off $1000 leaves $900: nine monthly installments of $100.
	assert.True(t, record.OfferAccepted)
	assert.False(t, record.CounterOfferAccepted)
	require.NotNil(t, record.NegotiateAmount)
	assert.True(t, record.NegotiateAmount.Equal(d("900")))
	assert.Equal(t, 9, record.NoOfInstallments)
	assert.True(t, record.LastMonthAmount.IsZero())
	require.NotNil(t, record.PaymentPlanCurrentBalance)
	assert.True(t, record.PaymentPlanCurrentBalance.Equal(d("900")))

	require.Len(t, rows, 9)
	for _, row := range rows {
		assert.True(t, row.RevenueSharePercentage.Equal(d("12")))
		assert.Equal(t, record.ID, row.NegotiationID)
	}

	f.consumers.AssertExpectations(t)
}

func TestNegotiationService_AcceptOffer_Payoff(t *testing.T) {
	ctx := context.Background()
	f := newNegotiationFixture(testNow)

	f.consumers.On("Get", ctx, int64(1)).Return(joinedConsumer(), nil)
	f.negotiations.On("GetByConsumer", ctx, int64(1)).Return(nil, repository.ErrNegotiationNotFound)
	f.companies.On("Get", ctx, int64(10)).Return(configuredCompany(), nil)
	f.companies.On("ActiveMembership", ctx, int64(10)).Return(&model.Membership{
		ID: 1, CompanyID: 10, FeePercent: d("12"), Active: true,
	}, nil)
	f.consumers.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)

	f.negotiations.On("Create", ctx, mock.AnythingOfType("*model.NegotiationRecord")).
		Return(&model.NegotiationRecord{}, nil)

	var rows []*model.ScheduleTransaction
	f.schedules.On("CreateBatch", ctx, mock.AnythingOfType("[]*model.ScheduleTransaction")).
		Run(func(args mock.Arguments) {
			rows = args.Get(1).([]*model.ScheduleTransaction)
		}).
		Return([]*model.ScheduleTransaction{}, nil)
	f.consumers.On("SetStatus", ctx, int64(1), model.ConsumerStatusPaymentAccepted).Return(nil)

	record, err := f.service.AcceptOffer(ctx, OfferRequest{
		ConsumerID:   1,
		Type:         model.NegotiationTypePIF,
		FirstPayDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// 20% off $1000: one payment of $800.
	require.NotNil(t, record.OneTimeSettlement)
	assert.True(t, record.OneTimeSettlement.Equal(d("800")))

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(d("800")))
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), rows[0].ScheduleDate)
}

func TestNegotiationService_AcceptCounterOffer(t *testing.T) {
	ctx := context.Background()
	f := newNegotiationFixture(testNow)

	f.consumers.On("Get", ctx, int64(1)).Return(joinedConsumer(), nil)
	f.negotiations.On("GetByConsumer", ctx, int64(1)).Return(nil, repository.ErrNegotiationNotFound)
	f.companies.On("Get", ctx, int64(10)).Return(configuredCompany(), nil)
	f.companies.On("ActiveMembership", ctx, int64(10)).Return(&model.Membership{
		ID: 1, CompanyID: 10, FeePercent: d("12"), Active: true,
	}, nil)
	f.consumers.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	f.negotiations.On("Create", ctx, mock.AnythingOfType("*model.NegotiationRecord")).
		Return(&model.NegotiationRecord{}, nil)
	f.schedules.On("CreateBatch", ctx, mock.AnythingOfType("[]*model.ScheduleTransaction")).
		Return([]*model.ScheduleTransaction{}, nil)
	f.consumers.On("SetStatus", ctx, int64(1), model.ConsumerStatusPaymentAccepted).Return(nil)

	record, err := f.service.AcceptCounterOffer(ctx, OfferRequest{
		ConsumerID:    1,
		Type:          model.NegotiationTypeInstallment,
		MonthlyAmount: d("120"),
		Cadence:       model.CadenceMonthly,
		FirstPayDate:  time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		CounterAmount: d("840"),
	})
	require.NoError(t, err)

	// The counter side is authoritative.
	assert.True(t, record.CounterOfferAccepted)
	assert.False(t, record.OfferAccepted)
	require.NotNil(t, record.CounterNegotiateAmount)
	assert.True(t, record.CounterNegotiateAmount.Equal(d("840")))
	assert.True(t, record.ActiveAmount().Equal(d("840")))
	assert.Equal(t, 7, record.NoOfInstallments)
}

func TestNegotiationService_AcceptOffer_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("monthly below minimum", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		f.consumers.On("Get", ctx, int64(1)).Return(joinedConsumer(), nil)
		f.negotiations.On("GetByConsumer", ctx, int64(1)).Return(nil, repository.ErrNegotiationNotFound)
		f.companies.On("Get", ctx, int64(10)).Return(configuredCompany(), nil)

		// Minimum is 5% of $900 = $45.
		_, err := f.service.AcceptOffer(ctx, OfferRequest{
			ConsumerID:    1,
			Type:          model.NegotiationTypeInstallment,
			MonthlyAmount: d("40"),
			FirstPayDate:  time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		})
		assert.ErrorIs(t, err, ErrMonthlyBelowMinimum)
	})

	t.Run("first pay date out of window", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		f.consumers.On("Get", ctx, int64(1)).Return(joinedConsumer(), nil)
		f.negotiations.On("GetByConsumer", ctx, int64(1)).Return(nil, repository.ErrNegotiationNotFound)
		f.companies.On("Get", ctx, int64(10)).Return(configuredCompany(), nil)

		_, err := f.service.AcceptOffer(ctx, OfferRequest{
			ConsumerID:    1,
			Type:          model.NegotiationTypeInstallment,
			MonthlyAmount: d("100"),
			FirstPayDate:  testNow.AddDate(0, 0, 45),
		})
		assert.ErrorIs(t, err, ErrFirstPayOutOfWindow)
	})

	t.Run("settled consumer cannot negotiate", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		settled := joinedConsumer()
		settled.Status = model.ConsumerStatusSettled
		f.consumers.On("Get", ctx, int64(1)).Return(settled, nil)

		_, err := f.service.AcceptOffer(ctx, OfferRequest{
			ConsumerID: 1,
			Type:       model.NegotiationTypeInstallment,
		})
		assert.ErrorIs(t, err, ErrConsumerInactive)
	})

	t.Run("outstanding negotiation blocks a second one", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		f.consumers.On("Get", ctx, int64(1)).Return(joinedConsumer(), nil)

		remaining := d("500")
		f.negotiations.On("GetByConsumer", ctx, int64(1)).Return(&model.NegotiationRecord{
			ID: 3, ConsumerID: 1, PaymentPlanCurrentBalance: &remaining,
		}, nil)

		_, err := f.service.AcceptOffer(ctx, OfferRequest{
			ConsumerID: 1,
			Type:       model.NegotiationTypeInstallment,
		})
		assert.ErrorIs(t, err, ErrNegotiationExists)
	})
}

func TestNegotiationService_Reschedule(t *testing.T) {
	ctx := context.Background()
	f := newNegotiationFixture(testNow)

	prev := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	failed := &model.ScheduleTransaction{
		ID:                     100,
		ConsumerID:             1,
		NegotiationID:          7,
		Amount:                 d("100"),
		ScheduleDate:           prev,
		Status:                 model.ScheduleStatusFailed,
		RevenueSharePercentage: d("12"),
	}
	newDate := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	f.schedules.On("Get", ctx, int64(100)).Return(failed, nil)
	f.consumers.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	f.schedules.On("MarkReplaced", ctx, int64(100), model.ScheduleStatusRescheduled).Return(nil)

	var created *model.ScheduleTransaction
	f.schedules.On("Create", ctx, mock.AnythingOfType("*model.ScheduleTransaction")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*model.ScheduleTransaction)
		}).
		Return(&model.ScheduleTransaction{ID: 101}, nil)

	_, err := f.service.Reschedule(ctx, 100, newDate)
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, model.ScheduleStatusScheduled, created.Status)
	assert.Equal(t, newDate, created.ScheduleDate)
	require.NotNil(t, created.PreviousScheduleDate)
	assert.Equal(t, prev, *created.PreviousScheduleDate)
	assert.True(t, created.Amount.Equal(d("100")))
	assert.True(t, created.RevenueSharePercentage.Equal(d("12")))
}

func TestNegotiationService_Reschedule_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("date must be after today", func(t *testing.T) {
		f := newNegotiationFixture(testNow)

		_, err := f.service.Reschedule(ctx, 100, testNow)
		assert.ErrorIs(t, err, ErrDateNotAfterToday)
	})

	t.Run("only failed rows are replaceable", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		f.schedules.On("Get", ctx, int64(100)).Return(&model.ScheduleTransaction{
			ID: 100, Status: model.ScheduleStatusScheduled,
		}, nil)

		_, err := f.service.Reschedule(ctx, 100, testNow.AddDate(0, 0, 5))
		assert.ErrorIs(t, err, ErrScheduleNotReplaceable)
	})
}

func TestNegotiationService_ChangeDate_Validation(t *testing.T) {
	ctx := context.Background()
	newDate := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	failedRow := func() *model.ScheduleTransaction {
		return &model.ScheduleTransaction{
			ID:           100,
			ConsumerID:   1,
			ScheduleDate: time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC),
			Status:       model.ScheduleStatusFailed,
		}
	}

	t.Run("date beyond next scheduled payment", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		f.schedules.On("Get", ctx, int64(100)).Return(failedRow(), nil)
		f.schedules.On("NextScheduledAfter", ctx, int64(1), mock.AnythingOfType("time.Time")).
			Return(&model.ScheduleTransaction{
				ID: 101, ScheduleDate: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			}, nil)

		_, err := f.service.ChangeDate(ctx, 100, newDate)
		assert.ErrorIs(t, err, ErrDateBeyondNext)
	})

	t.Run("date already taken", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		f.schedules.On("Get", ctx, int64(100)).Return(failedRow(), nil)
		f.schedules.On("NextScheduledAfter", ctx, int64(1), mock.AnythingOfType("time.Time")).
			Return(nil, repository.ErrScheduleNotFound)
		f.schedules.On("HasScheduledOn", ctx, int64(1), newDate).Return(true, nil)

		_, err := f.service.ChangeDate(ctx, 100, newDate)
		assert.ErrorIs(t, err, ErrScheduleDateTaken)
	})

	t.Run("valid change leaves the consumer marker", func(t *testing.T) {
		f := newNegotiationFixture(testNow)
		f.schedules.On("Get", ctx, int64(100)).Return(failedRow(), nil)
		f.schedules.On("NextScheduledAfter", ctx, int64(1), mock.AnythingOfType("time.Time")).
			Return(nil, repository.ErrScheduleNotFound)
		f.schedules.On("HasScheduledOn", ctx, int64(1), newDate).Return(false, nil)
		f.consumers.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		f.schedules.On("MarkReplaced", ctx, int64(100), model.ScheduleStatusConsumerChangeDate).Return(nil)
		f.schedules.On("Create", ctx, mock.AnythingOfType("*model.ScheduleTransaction")).
			Return(&model.ScheduleTransaction{ID: 101}, nil)

		_, err := f.service.ChangeDate(ctx, 100, newDate)
		require.NoError(t, err)
		f.schedules.AssertExpectations(t)
	})
}

func TestNegotiationService_Skip(t *testing.T) {
	ctx := context.Background()
	f := newNegotiationFixture(testNow)

	st := &model.ScheduleTransaction{
		ID:            100,
		ConsumerID:    1,
		NegotiationID: 7,
		ScheduleDate:  time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Status:        model.ScheduleStatusScheduled,
	}
	f.schedules.On("Get", ctx, int64(100)).Return(st, nil)
	f.negotiations.On("Get", ctx, int64(7)).Return(&model.NegotiationRecord{
		ID: 7, Cadence: model.CadenceBimonthly,
	}, nil)
	f.schedules.On("AdvanceDate", ctx, int64(100), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)).Return(nil)

	updated, err := f.service.Skip(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), updated.ScheduleDate)
}

func TestNegotiationService_Skip_DueTodayIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newNegotiationFixture(testNow)

	st := &model.ScheduleTransaction{
		ID:           100,
		ConsumerID:   1,
		ScheduleDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:       model.ScheduleStatusScheduled,
	}
	f.schedules.On("Get", ctx, int64(100)).Return(st, nil)

	updated, err := f.service.Skip(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, st.ScheduleDate, updated.ScheduleDate)
	f.schedules.AssertNotCalled(t, "AdvanceDate", mock.Anything, mock.Anything, mock.Anything)
}
