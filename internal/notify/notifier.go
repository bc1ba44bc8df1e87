package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventCode identifies the consumer-facing notification to send. The
// engine only emits events; rendering and delivery happen downstream.
type EventCode string

const (
	EventBalancePaid     EventCode = "balance_paid"
	EventInstallmentPaid EventCode = "installment_paid"
	EventPaymentFailed   EventCode = "payment_failed"
)

type Event struct {
	Code       EventCode       `json:"code"`
	ConsumerID int64           `json:"consumer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Detail     string          `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// QueueNotifier publishes events onto a stream for the notification
// workers to pick up. A failed publish never fails the settlement that
// produced the event; callers log and move on.
type QueueNotifier struct {
	queue publisher
}

func NewQueueNotifier(q publisher) *QueueNotifier {
	return &QueueNotifier{
		queue: q,
	}
}

func (n *QueueNotifier) Notify(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	_, err := n.queue.PublishJSON(ctx, e, map[string]string{"event": string(e.Code)})
	return err
}

// Nop discards events. Used by the CLI and in tests.
type Nop struct{}

func (Nop) Notify(ctx context.Context, e Event) error { return nil }
