package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/services"
	xhttp "github.com/dealerdesk/lead-engine/pkg/http"
)

type InquiryService interface {
	Create(ctx context.Context, req model.InquiryCreateRequest) (*model.Inquiry, error)
	Get(ctx context.Context, id int64) (*model.Inquiry, error)
	UpdateStatus(ctx context.Context, id int64, next model.InquiryStatus) error
	ListByStatus(ctx context.Context, status model.InquiryStatus, limit int) ([]*model.Inquiry, error)
}

type InquiryHandler struct {
	svc InquiryService
}

func RegisterInquiryRoutes(e *router.Group, h *InquiryHandler) {
	e.POST("/inquiries", h.CreateInquiry)
	e.GET("/inquiries", h.ListInquiries)
	e.GET("/inquiries/{id}", h.GetInquiry)
	e.PATCH("/inquiries/{id}/status", h.UpdateInquiryStatus)
}

func NewInquiryHandler(svc InquiryService) *InquiryHandler {
	return &InquiryHandler{svc: svc}
}

func (h *InquiryHandler) CreateInquiry(ctx *xhttp.RequestCtx) {
	var req model.InquiryCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	inq, err := h.svc.Create(ctx, req)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, inq)
}

func (h *InquiryHandler) GetInquiry(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid inquiry id")
		return
	}
	inq, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(ctx, 404, "inquiry not found")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, inq)
}

func (h *InquiryHandler) ListInquiries(ctx *xhttp.RequestCtx) {
	status := model.InquiryStatus(query(ctx, "status"))
	if status == "" {
		status = model.InquiryStatusNew
	}
	limit := 50
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			limit = n
		}
	}
	items, err := h.svc.ListByStatus(ctx, status, limit)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}

type updateInquiryStatusRequest struct {
	Status model.InquiryStatus `json:"status"`
}

func (h *InquiryHandler) UpdateInquiryStatus(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid inquiry id")
		return
	}
	var req updateInquiryStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if err := h.svc.UpdateStatus(ctx, id, req.Status); err != nil {
		writeError(ctx, 409, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"id": id, "status": req.Status})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
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

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
