package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleStatus is the state of one scheduled payment.
//
// SCHEDULED is the only state a settlement attempt may start from.
// RESCHEDULED and CONSUMER_CHANGE_DATE are terminal markers left behind
// when a replacement row is created; FAILED re-enters SCHEDULED only
// through those explicit operations, never automatically.
type ScheduleStatus string

const (
	ScheduleStatusScheduled          ScheduleStatus = "scheduled"
	ScheduleStatusSuccessful         ScheduleStatus = "successful"
	ScheduleStatusFailed             ScheduleStatus = "failed"
	ScheduleStatusCancelled          ScheduleStatus = "cancelled"
	ScheduleStatusRescheduled        ScheduleStatus = "rescheduled"
	ScheduleStatusConsumerChangeDate ScheduleStatus = "consumer_change_date"
)

// Terminal reports whether no settlement attempt may run against a row
// in this state.
func (s ScheduleStatus) Terminal() bool {
	return s != ScheduleStatusScheduled && s != ScheduleStatusFailed
}

type ScheduleTransaction struct {
	ID            int64           `json:"id"`
	ConsumerID    int64           `json:"consumer_id"`
	NegotiationID int64           `json:"negotiation_id"`
	Amount        decimal.Decimal `json:"amount"`
	ScheduleDate  time.Time       `json:"schedule_date"`
	Status        ScheduleStatus  `json:"status"`

	AttemptCount    int        `json:"attempt_count"`
	LastAttemptedAt *time.Time `json:"last_attempted_at,omitempty"`

	// Set when a reschedule/change-date replaced another row.
	PreviousScheduleDate *time.Time `json:"previous_schedule_date,omitempty"`

	// FK to the settlement Transaction once settled.
	TransactionID *int64 `json:"transaction_id,omitempty"`

	// Fee percent snapshotted at plan materialization time.
	RevenueSharePercentage decimal.Decimal `json:"revenue_share_percentage"`

	CreatedAt time.Time `json:"created_at"`
}

func (ScheduleTransaction) TableName() string { return "schedule_transactions" }

// ScheduleFilter controls due/listing queries.
type ScheduleFilter struct {
	ConsumerID    *int64
	Statuses      []ScheduleStatus
	DueOnOrBefore *time.Time
	Limit         int
	Offset        int
	Desc          bool
}
