package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck probes one dependency; the name keys the checks map.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	startedAt time.Time
	checks    []ReadinessCheck
}

// NewHealthHandler builds a health handler with the given readiness checks.
func NewHealthHandler(checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{startedAt: time.Now().UTC(), checks: checks}
}

// Status handles GET /healthz.
func (h *HealthHandler) Status(c *gin.Context) {
	RespondOK(c, http.StatusOK, "ok", HealthData{Status: "ok", StartedAt: h.startedAt})
}

// Ready handles GET /readyz, probing each dependency with a short timeout.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			results[check.Name] = err.Error()
			healthy = false
			continue
		}
		results[check.Name] = "ok"
	}

	if !healthy {
		respond(c, http.StatusServiceUnavailable, false, "not ready", ReadyData{Status: "unavailable", Checks: results})
		return
	}

	RespondOK(c, http.StatusOK, "ready", ReadyData{Status: "ok", Checks: results})
}
