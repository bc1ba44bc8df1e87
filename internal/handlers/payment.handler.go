package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"
	gateway "github.com/younegotiate/settlement-engine/internal/gateways"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/internal/services"
	xhttp "github.com/younegotiate/settlement-engine/pkg/http"
)

type PaymentService interface {
	SettleImmediate(ctx context.Context, consumerID int64, amount decimal.Decimal) (*services.SettlementOutcome, error)
}

type ProfileCreator interface {
	Create(ctx context.Context, p *model.PaymentProfile) (*model.PaymentProfile, error)
}

type GatewayResolver interface {
	Resolve(name string) (gateway.Adapter, error)
}

type PaymentHandler struct {
	svc      PaymentService
	profiles ProfileCreator
	gateways GatewayResolver
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	e.POST("/payments", h.CreatePayment)
	e.POST("/payment-profiles", h.CreatePaymentProfile)
}

func NewPaymentHandler(paymentService PaymentService, profiles ProfileCreator, gateways GatewayResolver) *PaymentHandler {
	return &PaymentHandler{
		svc:      paymentService,
		profiles: profiles,
		gateways: gateways,
	}
}

type createPaymentRequest struct {
	ConsumerID int64           `json:"consumer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type paymentResponse struct {
	Transaction     *model.Transaction `json:"transaction"`
	PlanBalance     decimal.Decimal    `json:"plan_balance"`
	ConsumerSettled bool               `json:"consumer_settled"`
	Declined        bool               `json:"declined"`
	DeclineCode     string             `json:"decline_code,omitempty"`
}

type createProfileRequest struct {
	ConsumerID int64  `json:"consumer_id"`
	Gateway    string `json:"gateway"`
	Method     string `json:"method"`

	HolderName string `json:"holder_name"`
	CardNumber string `json:"card_number"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CVV        string `json:"cvv"`

	RoutingNumber string `json:"routing_number"`
	AccountNumber string `json:"account_number"`
}

/* --------------------------------- Routes ----------------------------------- */

// CreatePayment runs an immediate settlement for an arbitrary positive
// amount. A gateway decline is still a 201: the attempt happened and was
// recorded, the body carries the decline.
func (h *PaymentHandler) CreatePayment(ctx *xhttp.RequestCtx) {
	var req createPaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	outcome, err := h.svc.SettleImmediate(ctx, req.ConsumerID, req.Amount)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 201, paymentResponse{
		Transaction:     outcome.Transaction,
		PlanBalance:     outcome.PlanBalance,
		ConsumerSettled: outcome.ConsumerSettled,
		Declined:        outcome.Declined,
		DeclineCode:     outcome.DeclineCode,
	})
}

// CreatePaymentProfile tokenizes a payment method at the named gateway
// and stores the returned ref. Raw card and account numbers never touch
// the database; only the token and the last four digits survive.
func (h *PaymentHandler) CreatePaymentProfile(ctx *xhttp.RequestCtx) {
	var req createProfileRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.ConsumerID == 0 {
		writeError(ctx, 400, "consumer_id is required")
		return
	}

	adapter, err := h.gateways.Resolve(req.Gateway)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	ref, err := adapter.CreatePaymentProfile(ctx, gateway.ProfileDetails{
		HolderName:    req.HolderName,
		CardNumber:    req.CardNumber,
		ExpMonth:      req.ExpMonth,
		ExpYear:       req.ExpYear,
		CVV:           req.CVV,
		RoutingNumber: req.RoutingNumber,
		AccountNumber: req.AccountNumber,
		Method:        req.Method,
	})
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	profile, err := h.profiles.Create(ctx, &model.PaymentProfile{
		ConsumerID: req.ConsumerID,
		Gateway:    adapter.Name(),
		ProfileRef: ref,
		Last4:      last4(req),
		Method:     req.Method,
	})
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 201, profile)
}

func last4(req createProfileRequest) string {
	number := req.CardNumber
	if req.Method == "ach" {
		number = req.AccountNumber
	}
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}
