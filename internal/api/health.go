package api

import (
	"net/http"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/api/respond"
	"github.com/anjalik1505/town-functions-sub002/internal/health"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *health.ServiceHealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(c *health.ServiceHealthChecker) *HealthHandler {
	return &HealthHandler{checker: c}
}

// CheckHealth handles GET /v1/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.checker.IsHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
