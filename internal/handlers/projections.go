package handlers

import (
	"errors"
	"net/http"

	"github.com/aawaaz/complaint-analyzer/internal/services"
	"go.uber.org/zap"
)

// RecordsHandler serves the filterable record list
type RecordsHandler struct {
	proj   *services.RecordProjection
	logger *zap.SugaredLogger
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(proj *services.RecordProjection, logger *zap.SugaredLogger) *RecordsHandler {
	return &RecordsHandler{proj: proj, logger: logger}
}

// List handles GET /api/v1/records?priority=all|high|medium|low
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	tier, ok := services.ParseTier(r.URL.Query().Get("priority"))
	if !ok {
		respondError(w, http.StatusBadRequest, "priority must be one of all, high, medium, low")
		return
	}
	respondJSON(w, http.StatusOK, h.proj.View(tier))
}

// Refresh handles POST /api/v1/records/refresh
func (h *RecordsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.proj.Load(r.Context()); err != nil && !errors.Is(err, services.ErrSuperseded) {
		h.logger.Debugw("Record refresh failed", "error", err)
	}
	tier, _ := services.ParseTier(r.URL.Query().Get("priority"))
	respondJSON(w, http.StatusOK, h.proj.View(tier))
}

// AnalyticsHandler serves the aggregate dashboard
type AnalyticsHandler struct {
	proj   *services.AggregateProjection
	logger *zap.SugaredLogger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(proj *services.AggregateProjection, logger *zap.SugaredLogger) *AnalyticsHandler {
	return &AnalyticsHandler{proj: proj, logger: logger}
}

// Get handles GET /api/v1/analytics
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.proj.View())
}

// Refresh handles POST /api/v1/analytics/refresh
func (h *AnalyticsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.proj.Load(r.Context()); err != nil && !errors.Is(err, services.ErrSuperseded) {
		h.logger.Debugw("Analytics refresh failed", "error", err)
	}
	respondJSON(w, http.StatusOK, h.proj.View())
}
