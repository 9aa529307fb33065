package api

import (
	"context"
	"net/http"
	"time"

	"github.com/trendscout/trendscout/internal/api/shared"
)

// Pinger checks one backing dependency's liveness.
type Pinger func(ctx context.Context) error

// HealthHandler reports service health including backing dependencies.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a HealthHandler over named dependency checks.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Check handles GET /health. Returns 200 with status "ok" when every
// dependency responds, 503 with status "degraded" otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}

	status := http.StatusOK
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			resp.Components[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	shared.RespondWithJSON(w, r, status, resp)
}
