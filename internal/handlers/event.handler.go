package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/dealerdesk/lead-engine/internal/model"
	xhttp "github.com/dealerdesk/lead-engine/pkg/http"
)

type EngagementService interface {
	Record(ctx context.Context, req model.EngagementEventCreateRequest) error
}

// EventHandler receives engagement tracking events from the storefront and
// email-open pixels. Ingest is accept-and-queue; the score pipeline does
// the rest.
type EventHandler struct {
	svc EngagementService
}

func RegisterEventRoutes(e *router.Group, h *EventHandler) {
	e.POST("/events", h.RecordEvent)
}

func NewEventHandler(svc EngagementService) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) RecordEvent(ctx *xhttp.RequestCtx) {
	var req model.EngagementEventCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if err := h.svc.Record(ctx, req); err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 202, map[string]string{"status": "queued"})
}
