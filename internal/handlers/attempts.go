package handlers

import (
	"context"
	"net/http"

	"github.com/aawaaz/complaint-analyzer/internal/models"
	"go.uber.org/zap"
)

// AttemptReader reads journaled submission attempts
type AttemptReader interface {
	Recent(ctx context.Context, limit int) ([]models.SubmissionAttempt, error)
	ByFingerprint(ctx context.Context, fingerprint string, limit int) ([]models.SubmissionAttempt, error)
}

// AttemptsHandler serves the submission journal
type AttemptsHandler struct {
	journal AttemptReader
	logger  *zap.SugaredLogger
}

// NewAttemptsHandler creates a new attempts handler. journal may be nil when
// no database is configured.
func NewAttemptsHandler(journal AttemptReader, logger *zap.SugaredLogger) *AttemptsHandler {
	return &AttemptsHandler{journal: journal, logger: logger}
}

// List handles GET /api/v1/attempts?fingerprint=&limit=
func (h *AttemptsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		respondError(w, http.StatusNotFound, "Submission journal is not configured")
		return
	}

	q := r.URL.Query()
	limit := queryInt(q, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var (
		attempts []models.SubmissionAttempt
		err      error
	)
	if fp := q.Get("fingerprint"); fp != "" {
		attempts, err = h.journal.ByFingerprint(r.Context(), fp, limit)
	} else {
		attempts, err = h.journal.Recent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Errorw("Failed to read submission journal", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch submission attempts")
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}
