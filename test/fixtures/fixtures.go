package fixtures

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

var (
	TestCompany = model.Company{
		ID:                 1,
		Name:               "Acme Collections",
		PifDiscountPercent: dp("20"),
		PpaDiscountPercent: dp("10"),
		MinMonthlyPercent:  dp("5"),
		MerchantGateway:    "stripe",
	}

	TestMembership = model.Membership{
		ID:            1,
		CompanyID:     1,
		FeePercent:    d("12"),
		PlanStartedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:        true,
	}
)

func NewTestConsumer(id, companyID int64, balance string) *model.Consumer {
	return &model.Consumer{
		ID:             id,
		CompanyID:      companyID,
		AccountNumber:  "acct-0001",
		CurrentBalance: d(balance),
		Status:         model.ConsumerStatusJoined,
		CreatedAt:      time.Now(),
	}
}

func NewTestNegotiation(id, consumerID int64, total string) *model.NegotiationRecord {
	amount := d(total)
	return &model.NegotiationRecord{
		ID:                        id,
		ConsumerID:                consumerID,
		Type:                      model.NegotiationTypeInstallment,
		OfferAccepted:             true,
		NegotiateAmount:           &amount,
		Cadence:                   model.CadenceMonthly,
		PaymentPlanCurrentBalance: &amount,
		CreatedAt:                 time.Now(),
	}
}

func NewTestScheduleTransaction(id, consumerID, negotiationID int64, amount string, date time.Time) *model.ScheduleTransaction {
	return &model.ScheduleTransaction{
		ID:                     id,
		ConsumerID:             consumerID,
		NegotiationID:          negotiationID,
		Amount:                 d(amount),
		ScheduleDate:           date,
		Status:                 model.ScheduleStatusScheduled,
		RevenueSharePercentage: d("12"),
		CreatedAt:              time.Now(),
	}
}

func NewTestPaymentProfile(id, consumerID int64, gateway string) *model.PaymentProfile {
	return &model.PaymentProfile{
		ID:         id,
		ConsumerID: consumerID,
		Gateway:    gateway,
		ProfileRef: "prof_fixture",
		Last4:      "4242",
		Method:     "card",
		CreatedAt:  time.Now(),
	}
}

var GatewayNames = []string{
	"stripe",
	"authorize_net",
	"usaepay",
	"paytab",
}

func ScheduleFilterByConsumer(consumerID int64) model.ScheduleFilter {
	return model.ScheduleFilter{
		ConsumerID: &consumerID,
		Limit:      50,
		Offset:     0,
		Desc:       false,
	}
}

func TransactionFilterByConsumer(consumerID int64) model.TransactionFilter {
	return model.TransactionFilter{
		ConsumerID: &consumerID,
		Limit:      50,
		Offset:     0,
		Desc:       false,
	}
}
