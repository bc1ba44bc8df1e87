package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

const stripeName = "stripe"

// StripeAdapter charges stored customers through a Stripe-style REST
// API. Amounts go over the wire in cents.
type StripeAdapter struct {
	httpConfig
	secretKey string
}

func NewStripeAdapter(baseURL, secretKey string, timeout time.Duration) *StripeAdapter {
	return &StripeAdapter{
		httpConfig: newHTTPConfig(baseURL, timeout),
		secretKey:  secretKey,
	}
}

func (a *StripeAdapter) Name() string { return stripeName }

type stripeCharge struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Paid     bool   `json:"paid"`
	Currency string `json:"currency"`

	FailureCode    string `json:"failure_code"`
	FailureMessage string `json:"failure_message"`
}

type stripeError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"`
	} `json:"error"`
}

func (a *StripeAdapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.secretKey,
		"Content-Type":  "application/x-www-form-urlencoded",
	}
}

func (a *StripeAdapter) CreatePaymentProfile(ctx context.Context, d ProfileDetails) (string, error) {
	form := url.Values{}
	form.Set("card[number]", d.CardNumber)
	form.Set("card[exp_month]", d.ExpMonth)
	form.Set("card[exp_year]", d.ExpYear)
	form.Set("card[cvc]", d.CVV)
	form.Set("name", d.HolderName)

	status, body, err := a.do(ctx, fasthttp.MethodPost, "/v1/customers", a.headers(), []byte(form.Encode()))
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", parseStripeError(status, body)
	}

	var cust struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &cust); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return cust.ID, nil
}

func (a *StripeAdapter) Charge(ctx context.Context, amount decimal.Decimal, profileRef string) (*ChargeResult, error) {
	form := url.Values{}
	form.Set("amount", amount.Mul(decimal.NewFromInt(100)).Round(0).String())
	form.Set("currency", "usd")
	form.Set("customer", profileRef)

	status, body, err := a.do(ctx, fasthttp.MethodPost, "/v1/charges", a.headers(), []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, parseStripeError(status, body)
	}

	var ch stripeCharge
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !ch.Paid || ch.Status != "succeeded" {
		return nil, &DeclineError{
			Code:    ch.FailureCode,
			Message: ch.FailureMessage,
			Raw:     string(body),
		}
	}

	return &ChargeResult{
		ExternalID: ch.ID,
		StatusCode: ch.Status,
		Raw:        string(body),
	}, nil
}

func parseStripeError(status int, body []byte) error {
	var se stripeError
	if err := json.Unmarshal(body, &se); err == nil && se.Error.Type == "card_error" {
		code := se.Error.DeclineCode
		if code == "" {
			code = se.Error.Code
		}
		return &DeclineError{
			Code:    code,
			Message: se.Error.Message,
			Raw:     string(body),
		}
	}
	return fmt.Errorf("unexpected status code: %d, body: %s", status, body)
}
