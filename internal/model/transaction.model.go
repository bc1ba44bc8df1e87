package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the outcome recorded for one settlement attempt.
type TransactionStatus string

const (
	TransactionStatusSuccessful TransactionStatus = "successful"
	TransactionStatusFailed     TransactionStatus = "failed"
)

// Transaction is the immutable settlement record: one row per attempt
// outcome, success or failure. Rows are append-only and never updated.
type Transaction struct {
	ID         int64             `json:"id"`
	ConsumerID int64             `json:"consumer_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Status     TransactionStatus `json:"status"`

	GatewayName string `json:"gateway_name"`
	ExternalID  string `json:"external_id"`
	StatusCode  string `json:"status_code"`
	RawResponse string `json:"raw_response"`

	RnnShare               decimal.Decimal `json:"rnn_share"`
	CompanyShare           decimal.Decimal `json:"company_share"`
	RevenueSharePercentage decimal.Decimal `json:"revenue_share_percentage"`

	CreatedAt time.Time `json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

// TransactionFilter controls List queries.
type TransactionFilter struct {
	ConsumerID *int64
	Statuses   []TransactionStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}
