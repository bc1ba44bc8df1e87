package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	gateway "github.com/younegotiate/settlement-engine/internal/gateways"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockConsumerStore struct {
	mock.Mock
}

func (m *MockConsumerStore) Get(ctx context.Context, id int64) (*model.Consumer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Consumer), args.Error(1)
}

func (m *MockConsumerStore) GetForUpdate(ctx context.Context, id int64) (*model.Consumer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Consumer), args.Error(1)
}

func (m *MockConsumerStore) DecrementBalance(ctx context.Context, consumerID int64, amount decimal.Decimal) error {
	args := m.Called(ctx, consumerID, amount)
	return args.Error(0)
}

func (m *MockConsumerStore) SetStatus(ctx context.Context, consumerID int64, status model.ConsumerStatus) error {
	args := m.Called(ctx, consumerID, status)
	return args.Error(0)
}

func (m *MockConsumerStore) SetHasFailedPayment(ctx context.Context, consumerID int64, failed bool) error {
	args := m.Called(ctx, consumerID, failed)
	return args.Error(0)
}

func (m *MockConsumerStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockNegotiationStore struct {
	mock.Mock
}

func (m *MockNegotiationStore) Create(ctx context.Context, n *model.NegotiationRecord) (*model.NegotiationRecord, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	created := *args.Get(0).(*model.NegotiationRecord)
	if created.ID == 0 {
		created = *n
		created.ID = 1
	}
	return &created, args.Error(1)
}

func (m *MockNegotiationStore) Get(ctx context.Context, id int64) (*model.NegotiationRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NegotiationRecord), args.Error(1)
}

func (m *MockNegotiationStore) GetByConsumer(ctx context.Context, consumerID int64) (*model.NegotiationRecord, error) {
	args := m.Called(ctx, consumerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NegotiationRecord), args.Error(1)
}

func (m *MockNegotiationStore) DecrementPlanBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, id, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockScheduleStore struct {
	mock.Mock
}

func (m *MockScheduleStore) Create(ctx context.Context, st *model.ScheduleTransaction) (*model.ScheduleTransaction, error) {
	args := m.Called(ctx, st)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduleTransaction), args.Error(1)
}

func (m *MockScheduleStore) CreateBatch(ctx context.Context, sts []*model.ScheduleTransaction) ([]*model.ScheduleTransaction, error) {
	args := m.Called(ctx, sts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ScheduleTransaction), args.Error(1)
}

func (m *MockScheduleStore) Get(ctx context.Context, id int64) (*model.ScheduleTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduleTransaction), args.Error(1)
}

func (m *MockScheduleStore) MarkSuccessful(ctx context.Context, id int64, transactionID int64, attemptedAt time.Time) error {
	args := m.Called(ctx, id, transactionID, attemptedAt)
	return args.Error(0)
}

func (m *MockScheduleStore) MarkFailed(ctx context.Context, id int64, attemptedAt time.Time) error {
	args := m.Called(ctx, id, attemptedAt)
	return args.Error(0)
}

func (m *MockScheduleStore) MarkReplaced(ctx context.Context, id int64, marker model.ScheduleStatus) error {
	args := m.Called(ctx, id, marker)
	return args.Error(0)
}

func (m *MockScheduleStore) AdvanceDate(ctx context.Context, id int64, newDate time.Time) error {
	args := m.Called(ctx, id, newDate)
	return args.Error(0)
}

func (m *MockScheduleStore) NextScheduledAfter(ctx context.Context, consumerID int64, after time.Time) (*model.ScheduleTransaction, error) {
	args := m.Called(ctx, consumerID, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduleTransaction), args.Error(1)
}

func (m *MockScheduleStore) HasScheduledOn(ctx context.Context, consumerID int64, date time.Time) (bool, error) {
	args := m.Called(ctx, consumerID, date)
	return args.Bool(0), args.Error(1)
}

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	created := *args.Get(0).(*model.Transaction)
	if created.ID == 0 {
		created = *txn
		created.ID = 1
	}
	return &created, args.Error(1)
}

type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetByConsumer(ctx context.Context, consumerID int64) (*model.PaymentProfile, error) {
	args := m.Called(ctx, consumerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentProfile), args.Error(1)
}

type MockCompanyStore struct {
	mock.Mock
}

func (m *MockCompanyStore) Get(ctx context.Context, id int64) (*model.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *MockCompanyStore) GetSubclient(ctx context.Context, id int64) (*model.Subclient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subclient), args.Error(1)
}

func (m *MockCompanyStore) ActiveMembership(ctx context.Context, companyID int64) (*model.Membership, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Membership), args.Error(1)
}

// stubAdapter lets a test script the gateway outcome directly.
type stubAdapter struct {
	name      string
	chargeFn  func(ctx context.Context, amount decimal.Decimal, profileRef string) (*gateway.ChargeResult, error)
	profileFn func(ctx context.Context, d gateway.ProfileDetails) (string, error)
}

func (s *stubAdapter) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubAdapter) CreatePaymentProfile(ctx context.Context, d gateway.ProfileDetails) (string, error) {
	if s.profileFn == nil {
		return "prof_stub", nil
	}
	return s.profileFn(ctx, d)
}

func (s *stubAdapter) Charge(ctx context.Context, amount decimal.Decimal, profileRef string) (*gateway.ChargeResult, error) {
	if s.chargeFn == nil {
		return &gateway.ChargeResult{ExternalID: "ext_stub", StatusCode: "ok"}, nil
	}
	return s.chargeFn(ctx, amount, profileRef)
}
