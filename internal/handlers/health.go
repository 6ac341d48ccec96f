package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/models"
	"go.uber.org/zap"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

var startTime = time.Now()

// Pinger is anything the readiness probe can check
type Pinger interface {
	Health(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Health calls f.
func (f PingFunc) Health(ctx context.Context) error { return f(ctx) }

// HealthHandler provides health check endpoints
type HealthHandler struct {
	gateway Pinger
	journal Pinger
	bus     Pinger
	logger  *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. journal and bus may be nil.
func NewHealthHandler(gateway, journal, bus Pinger, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{gateway: gateway, journal: journal, bus: bus, logger: logger}
}

// Check handles GET /api/v1/health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := models.HealthStatus{
		Status:  "ready",
		Version: Version,
		Uptime:  time.Since(startTime).String(),
		Gateway: "reachable",
	}
	code := http.StatusOK

	if err := h.gateway.Health(ctx); err != nil {
		h.logger.Warnw("Gateway not reachable", "error", err)
		status.Gateway = "unreachable"
		status.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	if h.journal != nil {
		status.Journal = "connected"
		if err := h.journal.Health(ctx); err != nil {
			h.logger.Warnw("Journal database not reachable", "error", err)
			status.Journal = "disconnected"
			status.Status = "not ready"
			code = http.StatusServiceUnavailable
		}
	}
	if h.bus != nil {
		status.Bus = "connected"
		if err := h.bus.Health(ctx); err != nil {
			h.logger.Warnw("Refresh bus not reachable", "error", err)
			status.Bus = "disconnected"
			status.Status = "not ready"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, status)
}
