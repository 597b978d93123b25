package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/services"
	xhttp "github.com/dealerdesk/lead-engine/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error)
	Send(ctx context.Context, id int64) (*services.SendResult, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	ListByStatus(ctx context.Context, status model.CampaignStatus, limit int) ([]*model.Campaign, error)
}

type DeliveryLogReader interface {
	ListForCampaign(ctx context.Context, campaignID int64, limit, offset int) ([]*model.DeliveryLog, error)
}

type CampaignHandler struct {
	svc  CampaignService
	logs DeliveryLogReader
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns", h.ListCampaigns)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.POST("/campaigns/{id}/send", h.SendCampaign)
	e.GET("/campaigns/{id}/deliveries", h.ListCampaignDeliveries)
}

func NewCampaignHandler(svc CampaignService, logs DeliveryLogReader) *CampaignHandler {
	return &CampaignHandler{svc: svc, logs: logs}
}

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req model.CampaignCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	c, err := h.svc.Create(ctx, req)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, c)
}

// SendCampaign answers 202 when dispatch was queued and 409 when the
// campaign is not in a sendable state. The conflict body carries the
// current status so the caller can tell a double-send from a finished one.
func (h *CampaignHandler) SendCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	result, err := h.svc.Send(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(ctx, 404, "campaign not found")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	if !result.Accepted {
		writeJSON(ctx, 409, map[string]any{
			"accepted": false,
			"status":   result.Status,
		})
		return
	}
	writeJSON(ctx, 202, map[string]any{
		"accepted": true,
		"status":   result.Status,
	})
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	c, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(ctx, 404, "campaign not found")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, c)
}

func (h *CampaignHandler) ListCampaigns(ctx *xhttp.RequestCtx) {
	status := model.CampaignStatus(query(ctx, "status"))
	if status == "" {
		status = model.CampaignStatusScheduled
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

func (h *CampaignHandler) ListCampaignDeliveries(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	limit, offset := 100, 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n >= 0 {
			offset = n
		}
	}
	items, err := h.logs.ListForCampaign(ctx, id, limit, offset)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}
