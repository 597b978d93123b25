package handlers

import (
	"github.com/fasthttp/router"
	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	xhttp "github.com/dealerdesk/lead-engine/pkg/http"
)

// WebhookHandler terminates provider callbacks. The HTTP surface only
// validates and enqueues; correlation against delivery history happens in
// the receipt processor, so providers get a fast 202 and retries are
// absorbed by the queue's replay protection.
type WebhookHandler struct {
	dispatcher jobs.Dispatcher
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/email", h.EmailCallback)
	e.POST("/webhooks/sms", h.SMSCallback)
}

func NewWebhookHandler(dispatcher jobs.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

type emailCallbackRequest struct {
	MessageID  string `json:"message_id"`
	Email      string `json:"email"`
	CampaignID *int64 `json:"campaign_id"`
	Event      string `json:"event"`
	BounceType string `json:"bounce_type"`
	Error      string `json:"error"`
}

func (h *WebhookHandler) EmailCallback(ctx *xhttp.RequestCtx) {
	var req emailCallbackRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.MessageID == "" {
		writeError(ctx, 400, "message_id is required")
		return
	}

	var err error
	if req.Event == "bounce" {
		payload := jobs.ProcessEmailBounce{
			MessageID:  req.MessageID,
			Email:      req.Email,
			CampaignID: req.CampaignID,
			BounceType: req.BounceType,
		}
		err = h.dispatcher.Enqueue(ctx, jobs.TypeProcessEmailBounce, payload, jobs.HighPriority())
	} else {
		payload := jobs.DeliveryReceipt{
			MessageID: req.MessageID,
			Channel:   model.ChannelEmail,
			Status:    req.Event,
			Error:     req.Error,
		}
		err = h.dispatcher.Enqueue(ctx, jobs.TypeDeliveryReceipt, payload, jobs.HighPriority())
	}
	if err != nil {
		writeError(ctx, 500, "failed to queue callback")
		return
	}
	writeJSON(ctx, 202, map[string]string{"status": "queued"})
}

type smsCallbackRequest struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

func (h *WebhookHandler) SMSCallback(ctx *xhttp.RequestCtx) {
	var req smsCallbackRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.MessageID == "" {
		writeError(ctx, 400, "message_id is required")
		return
	}
	payload := jobs.DeliveryReceipt{
		MessageID: req.MessageID,
		Channel:   model.ChannelSMS,
		Status:    req.Status,
		Error:     req.Error,
	}
	if err := h.dispatcher.Enqueue(ctx, jobs.TypeDeliveryReceipt, payload, jobs.HighPriority()); err != nil {
		writeError(ctx, 500, "failed to queue callback")
		return
	}
	writeJSON(ctx, 202, map[string]string{"status": "queued"})
}
