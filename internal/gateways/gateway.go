package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

var (
	ErrUnknownGateway = errors.New("unknown gateway")
)

// ProfileDetails is the input for tokenizing a payment method. The
// engine hands it to the gateway once and stores only the returned ref.
type ProfileDetails struct {
	HolderName string
	CardNumber string
	ExpMonth   string
	ExpYear    string
	CVV        string

	// ACH fields, used when Method is "ach".
	RoutingNumber string
	AccountNumber string

	Method string // "card" | "ach"
}

// ChargeResult is the success payload of a charge.
type ChargeResult struct {
	ExternalID string
	StatusCode string
	Raw        string
}

// DeclineError is a structured decline returned by a provider, as
// opposed to a transport failure. Both resolve to a FAILED attempt, but
// declines carry the provider's code and message into the transaction
// record.
type DeclineError struct {
	Code    string
	Message string
	Raw     string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("gateway declined: %s (%s)", e.Message, e.Code)
}

// AsDecline unwraps a *DeclineError from err, if present.
func AsDecline(err error) (*DeclineError, bool) {
	var d *DeclineError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Adapter is the uniform contract over the supported payment gateways.
// Adapters only move money; every piece of post-charge bookkeeping
// belongs to the settlement coordinator.
type Adapter interface {
	Name() string
	CreatePaymentProfile(ctx context.Context, d ProfileDetails) (string, error)
	Charge(ctx context.Context, amount decimal.Decimal, profileRef string) (*ChargeResult, error)
}

// Registry maps merchant gateway names to adapters. Resolution happens
// once per settlement, at the boundary.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
	}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Resolve(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	return names
}

// httpConfig is shared by the REST-style adapters.
type httpConfig struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
}

func newHTTPConfig(baseURL string, timeout time.Duration) httpConfig {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return httpConfig{
		baseURL: baseURL,
		timeout: timeout,
		client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

// do performs an HTTP request honoring the context deadline, falling
// back to the adapter's own timeout.
func (c *httpConfig) do(ctx context.Context, method, path string, headers map[string]string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return resp.StatusCode(), result, nil
}
