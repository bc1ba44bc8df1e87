package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/younegotiate/settlement-engine/internal/model"
	xhttp "github.com/younegotiate/settlement-engine/pkg/http"
)

type ScheduleService interface {
	Reschedule(ctx context.Context, scheduleTransactionID int64, newDate time.Time) (*model.ScheduleTransaction, error)
	ChangeDate(ctx context.Context, scheduleTransactionID int64, newDate time.Time) (*model.ScheduleTransaction, error)
	Skip(ctx context.Context, scheduleTransactionID int64) (*model.ScheduleTransaction, error)
}

type ScheduleLister interface {
	List(ctx context.Context, f model.ScheduleFilter) ([]*model.ScheduleTransaction, int64, error)
}

type ScheduleHandler struct {
	svc   ScheduleService
	store ScheduleLister
}

func RegisterScheduleRoutes(e *router.Group, h *ScheduleHandler) {
	e.GET("/schedules", h.ListSchedules)
	e.POST("/schedules/{id}/reschedule", h.Reschedule)
	e.POST("/schedules/{id}/change-date", h.ChangeDate)
	e.POST("/schedules/{id}/skip", h.Skip)
}

func NewScheduleHandler(scheduleService ScheduleService, store ScheduleLister) *ScheduleHandler {
	return &ScheduleHandler{
		svc:   scheduleService,
		store: store,
	}
}

type newDateRequest struct {
	NewDate string `json:"new_date"`
}

type scheduleListResponse struct {
	Items []*model.ScheduleTransaction `json:"items"`
	Total int64                        `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ScheduleHandler) ListSchedules(ctx *xhttp.RequestCtx) {
	var f model.ScheduleFilter

	if v := query(ctx, "consumer_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.ConsumerID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.ScheduleStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "due_before"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.DueOnOrBefore = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.store.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, scheduleListResponse{Items: items, Total: total})
}

// Reschedule gives a failed payment a new future date. The failed row is
// closed with a RESCHEDULED marker and the replacement is returned.
func (h *ScheduleHandler) Reschedule(ctx *xhttp.RequestCtx) {
	h.replaceDate(ctx, h.svc.Reschedule)
}

// ChangeDate is the consumer-initiated variant: same replacement
// mechanics, stricter date validation, CONSUMER_CHANGE_DATE marker.
func (h *ScheduleHandler) ChangeDate(ctx *xhttp.RequestCtx) {
	h.replaceDate(ctx, h.svc.ChangeDate)
}

func (h *ScheduleHandler) replaceDate(ctx *xhttp.RequestCtx, op func(context.Context, int64, time.Time) (*model.ScheduleTransaction, error)) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid schedule transaction id")
		return
	}
	var req newDateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	newDate, err := parseTime(req.NewDate)
	if err != nil {
		writeError(ctx, 400, "invalid new_date: "+req.NewDate)
		return
	}

	st, err := op(ctx, id, newDate)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, st)
}

func (h *ScheduleHandler) Skip(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid schedule transaction id")
		return
	}

	st, err := h.svc.Skip(ctx, id)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, st)
}
