package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/internal/repository"
	"github.com/younegotiate/settlement-engine/internal/services"
	xhttp "github.com/younegotiate/settlement-engine/pkg/http"
)

type NegotiationService interface {
	AcceptOffer(ctx context.Context, req services.OfferRequest) (*model.NegotiationRecord, error)
	AcceptCounterOffer(ctx context.Context, req services.OfferRequest) (*model.NegotiationRecord, error)
	PreviewPlan(ctx context.Context, consumerID int64, monthlyAmount decimal.Decimal) (*services.PlanPreview, error)
}
type NegotiationHandler struct {
	svc NegotiationService
}

func RegisterNegotiationRoutes(e *router.Group, h *NegotiationHandler) {
	e.POST("/negotiations/offer", h.AcceptOffer)
	e.POST("/negotiations/counter-offer", h.AcceptCounterOffer)
	e.GET("/negotiations/preview", h.PreviewPlan)
}

func NewNegotiationHandler(negotiationService NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{
		svc: negotiationService,
	}
}

type acceptOfferRequest struct {
	ConsumerID    int64           `json:"consumer_id"`
	Type          string          `json:"negotiation_type"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	Cadence       string          `json:"cadence"`
	FirstPayDate  string          `json:"first_pay_date"`
	CounterAmount decimal.Decimal `json:"counter_amount"`
}

func (r acceptOfferRequest) toOffer() (services.OfferRequest, error) {
	req := services.OfferRequest{
		ConsumerID:    r.ConsumerID,
		Type:          model.NegotiationType(r.Type),
		MonthlyAmount: r.MonthlyAmount,
		Cadence:       model.InstallmentCadence(r.Cadence),
		CounterAmount: r.CounterAmount,
	}
	if r.FirstPayDate != "" {
		t, err := parseTime(r.FirstPayDate)
		if err != nil {
			return req, errors.New("invalid first_pay_date: " + r.FirstPayDate)
		}
		req.FirstPayDate = t
	}
	return req, nil
}

/* --------------------------------- Routes ----------------------------------- */

func (h *NegotiationHandler) AcceptOffer(ctx *xhttp.RequestCtx) {
	var req acceptOfferRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	offer, err := req.toOffer()
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	record, err := h.svc.AcceptOffer(ctx, offer)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 201, record)
}

func (h *NegotiationHandler) AcceptCounterOffer(ctx *xhttp.RequestCtx) {
	var req acceptOfferRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	offer, err := req.toOffer()
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	record, err := h.svc.AcceptCounterOffer(ctx, offer)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 201, record)
}

func (h *NegotiationHandler) PreviewPlan(ctx *xhttp.RequestCtx) {
	consumerID, err := paramInt64(ctx, "consumer_id")
	if err != nil {
		writeError(ctx, 400, "invalid consumer_id")
		return
	}
	monthly, err := decimal.NewFromString(query(ctx, "monthly_amount"))
	if err != nil {
		writeError(ctx, 400, "invalid monthly_amount")
		return
	}

	preview, err := h.svc.PreviewPlan(ctx, consumerID, monthly)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, preview)
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// statusFor maps service and repository sentinels onto HTTP statuses.
// Anything unmapped is the caller's fault until proven otherwise.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrConsumerNotFound),
		errors.Is(err, repository.ErrNegotiationNotFound),
		errors.Is(err, repository.ErrScheduleNotFound),
		errors.Is(err, repository.ErrPaymentProfileNotFound):
		return 404
	case errors.Is(err, services.ErrNegotiationExists),
		errors.Is(err, services.ErrScheduleDateTaken),
		errors.Is(err, services.ErrOverspend):
		return 409
	default:
		return 400
	}
}

func paramInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	idStr := ctx.QueryArgs().Peek(name)
	return strconv.ParseInt(string(idStr), 10, 64)
}

// pathInt64 reads a {name} segment captured by the router.
func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
