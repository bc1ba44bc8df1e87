package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

const authorizeNetName = "authorize_net"

// Authorize.net response codes.
const (
	anetResponseApproved = "1"
	anetResultOk         = "Ok"
)

// AuthorizeNetAdapter speaks the Authorize.net-style JSON envelope API:
// every request wraps a merchantAuthentication block, every response a
// messages block with a resultCode.
type AuthorizeNetAdapter struct {
	httpConfig
	loginID        string
	transactionKey string
}

func NewAuthorizeNetAdapter(baseURL, loginID, transactionKey string, timeout time.Duration) *AuthorizeNetAdapter {
	return &AuthorizeNetAdapter{
		httpConfig:     newHTTPConfig(baseURL, timeout),
		loginID:        loginID,
		transactionKey: transactionKey,
	}
}

func (a *AuthorizeNetAdapter) Name() string { return authorizeNetName }

type anetAuth struct {
	Name           string `json:"name"`
	TransactionKey string `json:"transactionKey"`
}

type anetMessages struct {
	ResultCode string `json:"resultCode"`
	Message    []struct {
		Code string `json:"code"`
		Text string `json:"text"`
	} `json:"message"`
}

func (a *AuthorizeNetAdapter) auth() anetAuth {
	return anetAuth{Name: a.loginID, TransactionKey: a.transactionKey}
}

func (a *AuthorizeNetAdapter) post(ctx context.Context, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	status, respBody, err := a.do(ctx, fasthttp.MethodPost, "/xml/v1/request.api", headers, body)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", status, respBody)
	}
	return respBody, nil
}

func (a *AuthorizeNetAdapter) CreatePaymentProfile(ctx context.Context, d ProfileDetails) (string, error) {
	payload := map[string]any{
		"createCustomerProfileRequest": map[string]any{
			"merchantAuthentication": a.auth(),
			"profile": map[string]any{
				"paymentProfiles": map[string]any{
					"payment": map[string]any{
						"creditCard": map[string]string{
							"cardNumber":     d.CardNumber,
							"expirationDate": d.ExpYear + "-" + d.ExpMonth,
							"cardCode":       d.CVV,
						},
					},
				},
			},
		},
	}

	body, err := a.post(ctx, payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		CustomerProfileID string       `json:"customerProfileId"`
		Messages          anetMessages `json:"messages"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Messages.ResultCode != anetResultOk {
		return "", anetDecline(resp.Messages, body)
	}
	return resp.CustomerProfileID, nil
}

func (a *AuthorizeNetAdapter) Charge(ctx context.Context, amount decimal.Decimal, profileRef string) (*ChargeResult, error) {
	payload := map[string]any{
		"createTransactionRequest": map[string]any{
			"merchantAuthentication": a.auth(),
			"transactionRequest": map[string]any{
				"transactionType": "authCaptureTransaction",
				"amount":          amount.StringFixed(2),
				"profile": map[string]string{
					"customerProfileId": profileRef,
				},
			},
		},
	}

	body, err := a.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TransactionResponse struct {
			ResponseCode string `json:"responseCode"`
			TransID      string `json:"transId"`
			Errors       []struct {
				ErrorCode string `json:"errorCode"`
				ErrorText string `json:"errorText"`
			} `json:"errors"`
		} `json:"transactionResponse"`
		Messages anetMessages `json:"messages"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	tr := resp.TransactionResponse
	if resp.Messages.ResultCode != anetResultOk || tr.ResponseCode != anetResponseApproved {
		code := tr.ResponseCode
		message := "transaction declined"
		if len(tr.Errors) > 0 {
			code = tr.Errors[0].ErrorCode
			message = tr.Errors[0].ErrorText
		}
		return nil, &DeclineError{
			Code:    code,
			Message: message,
			Raw:     string(body),
		}
	}

	return &ChargeResult{
		ExternalID: tr.TransID,
		StatusCode: tr.ResponseCode,
		Raw:        string(body),
	}, nil
}

func anetDecline(m anetMessages, raw []byte) error {
	code, text := "", "request rejected"
	if len(m.Message) > 0 {
		code = m.Message[0].Code
		text = m.Message[0].Text
	}
	return &DeclineError{Code: code, Message: text, Raw: string(raw)}
}
