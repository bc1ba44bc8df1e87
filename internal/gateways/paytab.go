package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

const paytabName = "paytab"

// PaytabAdapter covers the aggregator-style gateway: a single JSON API
// fronting multiple acquirers. Requests carry an idempotency key so a
// replayed charge after a timeout cannot double-bill.
type PaytabAdapter struct {
	httpConfig
	apiKey string
}

func NewPaytabAdapter(baseURL, apiKey string, timeout time.Duration) *PaytabAdapter {
	return &PaytabAdapter{
		httpConfig: newHTTPConfig(baseURL, timeout),
		apiKey:     apiKey,
	}
}

func (a *PaytabAdapter) Name() string { return paytabName }

func (a *PaytabAdapter) headers() map[string]string {
	return map[string]string{
		"X-Api-Key":    a.apiKey,
		"Content-Type": "application/json",
	}
}

type paytabChargeRequest struct {
	ProfileID      string `json:"profile_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

type paytabChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"` // "approved" | "declined"
	DeclineCode   string `json:"decline_code,omitempty"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

func (a *PaytabAdapter) CreatePaymentProfile(ctx context.Context, d ProfileDetails) (string, error) {
	payload := map[string]string{
		"holder_name": d.HolderName,
		"card_number": d.CardNumber,
		"exp_month":   d.ExpMonth,
		"exp_year":    d.ExpYear,
		"cvv":         d.CVV,
		"method":      d.Method,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	status, respBody, err := a.do(ctx, fasthttp.MethodPost, "/api/v2/profiles", a.headers(), body)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated {
		return "", fmt.Errorf("unexpected status code: %d, body: %s", status, respBody)
	}

	var resp struct {
		ProfileID string `json:"profile_id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp.ProfileID, nil
}

func (a *PaytabAdapter) Charge(ctx context.Context, amount decimal.Decimal, profileRef string) (*ChargeResult, error) {
	reqBody, err := json.Marshal(paytabChargeRequest{
		ProfileID:      profileRef,
		AmountCents:    amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:       "USD",
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, body, err := a.do(ctx, fasthttp.MethodPost, "/api/v2/charges", a.headers(), reqBody)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", status, body)
	}

	var resp paytabChargeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.Status != "approved" {
		return nil, &DeclineError{
			Code:    resp.DeclineCode,
			Message: resp.DeclineReason,
			Raw:     string(body),
		}
	}

	return &ChargeResult{
		ExternalID: resp.TransactionID,
		StatusCode: resp.Status,
		Raw:        string(body),
	}, nil
}
