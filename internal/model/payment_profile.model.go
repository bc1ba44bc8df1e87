package model

import "time"

// PaymentProfile is a tokenized reference to a payment method stored at
// a specific gateway. Read-only from the engine's perspective: it is
// created at enrollment time and only ever handed to the gateway
// adapter as the charge target.
type PaymentProfile struct {
	ID         int64     `json:"id"`
	ConsumerID int64     `json:"consumer_id"`
	Gateway    string    `json:"gateway"`
	ProfileRef string    `json:"profile_ref"`
	Last4      string    `json:"last4"`
	Method     string    `json:"method"` // "card" | "ach"
	CreatedAt  time.Time `json:"created_at"`
}

func (PaymentProfile) TableName() string { return "payment_profiles" }
