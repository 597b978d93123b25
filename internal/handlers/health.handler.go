package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/dealerdesk/lead-engine/internal/queue"
	xhttp "github.com/dealerdesk/lead-engine/pkg/http"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type QueueStats interface {
	Stats() map[string]*queue.Stats
}

type HealthHandler struct {
	db    Pinger
	redis Pinger
	queue QueueStats
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
	e.GET("/health/ready", h.GetReadiness)
}

func NewHealthHandler(db, redis Pinger, q QueueStats) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, queue: q}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	ctx.Response.SetBodyString("success")
}

// GetReadiness answers 503 until both backing stores respond, so the load
// balancer keeps traffic off an instance that cannot serve it.
func (h *HealthHandler) GetReadiness(ctx *xhttp.RequestCtx) {
	checks := map[string]string{"postgres": "ok", "redis": "ok"}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	body := map[string]any{"checks": checks}
	if h.queue != nil && healthy {
		depth := make(map[string]int64)
		for jobType, st := range h.queue.Stats() {
			if st != nil {
				depth[jobType] = st.ReadyJobs + st.DelayedJobs
			}
		}
		body["queue_depth"] = depth
	}

	status := 200
	if !healthy {
		status = 503
	}
	writeJSON(ctx, status, body)
}
