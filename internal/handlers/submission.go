package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aawaaz/complaint-analyzer/internal/models"
	"github.com/aawaaz/complaint-analyzer/internal/services"
	"go.uber.org/zap"
)

// SubmissionHandler exposes the submission lifecycle controller
type SubmissionHandler struct {
	ctrl   *services.SubmissionController
	logger *zap.SugaredLogger
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(ctrl *services.SubmissionController, logger *zap.SugaredLogger) *SubmissionHandler {
	return &SubmissionHandler{ctrl: ctrl, logger: logger}
}

// Get handles GET /api/v1/submission
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// UpdateDraft handles PUT /api/v1/submission/draft
func (h *SubmissionHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	snap, err := h.ctrl.UpdateDraft(draft)
	if err != nil {
		h.respondTransitionError(w, snap, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Submit handles POST /api/v1/submission
// The request returns as soon as the controller enters the submitting
// state; clients poll Get for the outcome.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	snap, err := h.ctrl.Start(r.Context(), draft)
	if err != nil {
		h.respondTransitionError(w, snap, err)
		return
	}

	h.logger.Infow("Complaint submission started", "attempt_id", snap.AttemptID)
	respondJSON(w, http.StatusAccepted, snap)
}

// Acknowledge handles POST /api/v1/submission/ack
func (h *SubmissionHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ctrl.Acknowledge()
	if err != nil {
		h.respondTransitionError(w, snap, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *SubmissionHandler) respondTransitionError(w http.ResponseWriter, snap services.SubmissionSnapshot, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrSubmissionInFlight):
		status = http.StatusConflict
	case errors.Is(err, services.ErrDraftTooShort):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.Errorw("Submission transition failed", "error", err)
	}
	respondJSON(w, status, map[string]interface{}{
		"error":      err.Error(),
		"submission": snap,
	})
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (models.Draft, bool) {
	var draft models.Draft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDraftBytes)).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return models.Draft{}, false
	}
	return draft, true
}
