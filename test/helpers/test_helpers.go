package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/repository"
	"github.com/younegotiate/settlement-engine/pkg/pg"
	"github.com/younegotiate/settlement-engine/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.CompanyEntity{},
		&repository.SubclientEntity{},
		&repository.MembershipEntity{},
		&repository.ConsumerEntity{},
		&repository.NegotiationEntity{},
		&repository.ScheduleTransactionEntity{},
		&repository.TransactionEntity{},
		&repository.PaymentProfileEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestCompany(t *testing.T, db *pg.DB, id int64, pifDiscount, ppaDiscount string) *repository.CompanyEntity {
	ctx := context.Background()
	pif := decimal.RequireFromString(pifDiscount)
	ppa := decimal.RequireFromString(ppaDiscount)
	minMonthly := decimal.RequireFromString("5")
	company := &repository.CompanyEntity{
		ID:                 id,
		Name:               "Test Company",
		PifDiscountPercent: &pif,
		PpaDiscountPercent: &ppa,
		MinMonthlyPercent:  &minMonthly,
		MerchantGateway:    "stripe",
	}
	err := db.Write(ctx).Create(company).Error
	require.NoError(t, err)
	return company
}

func CreateTestMembership(t *testing.T, db *pg.DB, companyID int64, feePercent string) *repository.MembershipEntity {
	ctx := context.Background()
	membership := &repository.MembershipEntity{
		CompanyID:     companyID,
		FeePercent:    decimal.RequireFromString(feePercent),
		PlanStartedAt: time.Now().AddDate(0, -1, 0),
		Active:        true,
	}
	err := db.Write(ctx).Create(membership).Error
	require.NoError(t, err)
	return membership
}

func CreateTestConsumer(t *testing.T, db *pg.DB, id, companyID int64, balance string) *repository.ConsumerEntity {
	ctx := context.Background()
	consumer := &repository.ConsumerEntity{
		ID:             id,
		CompanyID:      companyID,
		AccountNumber:  RandomAccountNumber(),
		CurrentBalance: decimal.RequireFromString(balance),
		Status:         "joined",
	}
	err := db.Write(ctx).Create(consumer).Error
	require.NoError(t, err)
	return consumer
}

func CreateTestPaymentProfile(t *testing.T, db *pg.DB, consumerID int64, gateway string) *repository.PaymentProfileEntity {
	ctx := context.Background()
	profile := &repository.PaymentProfileEntity{
		ConsumerID: consumerID,
		Gateway:    gateway,
		ProfileRef: "prof_test_" + time.Now().Format("150405"),
		Last4:      "4242",
		Method:     "card",
	}
	err := db.Write(ctx).Create(profile).Error
	require.NoError(t, err)
	return profile
}

func CreateTestScheduleTransaction(t *testing.T, db *pg.DB, consumerID, negotiationID int64, amount string, date time.Time) *repository.ScheduleTransactionEntity {
	ctx := context.Background()
	st := &repository.ScheduleTransactionEntity{
		ConsumerID:             consumerID,
		NegotiationID:          negotiationID,
		Amount:                 decimal.RequireFromString(amount),
		ScheduleDate:           date,
		Status:                 "scheduled",
		RevenueSharePercentage: decimal.RequireFromString("10"),
	}
	err := db.Write(ctx).Create(st).Error
	require.NoError(t, err)
	return st
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomAccountNumber() string {
	return "acct-" + time.Now().Format("20060102150405")
}

func Ptr[T any](v T) *T {
	return &v
}
