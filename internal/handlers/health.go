package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse reports service and dependency status.
type HealthResponse struct {
	Status   string            `json:"status"`
	Time     time.Time         `json:"time"`
	Services map[string]string `json:"services"`
}

// Check pings the backing stores and reports degraded with a 503 when
// any of them is unreachable.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:   "ok",
		Time:     time.Now().UTC(),
		Services: map[string]string{},
	}

	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Services["database"] = "unreachable"
		h.logger.Warn().Err(err).Msg("health check: database unreachable")
	} else {
		resp.Services["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Client().Ping(ctx).Err(); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unreachable"
			h.logger.Warn().Err(err).Msg("health check: redis unreachable")
		} else {
			resp.Services["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.JSON(w, status, resp)
}

// Root serves a small service description for unauthenticated probes.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]any{
		"service": "chatwire",
		"status":  "running",
		"endpoints": map[string]string{
			"health":    "/health",
			"metrics":   "/metrics",
			"auth":      "/api/auth",
			"chat":      "/api/chat",
			"websocket": "/ws",
		},
	})
}
