// Package services contains the core of the console: the submission
// lifecycle controller, the record and aggregate projections, the refresher
// that keeps the projections current, and the optional submission journal.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/events"
	"github.com/aawaaz/complaint-analyzer/internal/gateway"
	"github.com/aawaaz/complaint-analyzer/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// SubmissionState is a state of the submission lifecycle.
type SubmissionState string

const (
	StateIdle       SubmissionState = "idle"
	StateSubmitting SubmissionState = "submitting"
	StateSucceeded  SubmissionState = "succeeded"
	StateFailed     SubmissionState = "failed"
)

var (
	// ErrSubmissionInFlight is returned when an operation needs the
	// controller to be out of the submitting state.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	// ErrDraftTooShort is returned for drafts below the minimum length.
	ErrDraftTooShort = errors.New("complaint text must be at least 10 characters")
)

// Placeholder values used when the gateway answers without a classification.
const (
	placeholderCategory      = "Unknown"
	placeholderSentiment     = models.SentimentNeutral
	placeholderPriority      = models.PriorityMedium
	placeholderConfidence    = 0.5
	placeholderSentScore     = 0.5
	placeholderPriorityScore = 2
)

// Submitter sends a draft to the gateway
type Submitter interface {
	SubmitComplaint(ctx context.Context, draft models.Draft, meta gateway.RequestMeta) (*models.SubmitPayload, int, error)
}

// Publisher emits refresh signals
type Publisher interface {
	Publish(ctx context.Context, sig events.Signal) error
}

// AttemptRecorder persists submission attempts
type AttemptRecorder interface {
	Record(ctx context.Context, attempt *models.SubmissionAttempt) error
}

// SubmissionConfig tunes the controller
type SubmissionConfig struct {
	Timeout  time.Duration // bound on a single submission
	Endpoint string        // gateway address quoted in network errors
}

// SubmissionSnapshot is an immutable view of the controller.
type SubmissionSnapshot struct {
	State     SubmissionState              `json:"state"`
	Draft     models.Draft                 `json:"draft"`
	Result    *models.ClassificationResult `json:"result,omitempty"`
	Error     *ClassifiedError             `json:"error,omitempty"`
	AttemptID string                       `json:"attempt_id,omitempty"`
	CanSubmit bool                         `json:"can_submit"`
}

// SubmissionController owns the single-complaint submit/result/error cycle.
// At most one submission is in flight at a time.
type SubmissionController struct {
	mu        sync.Mutex
	state     SubmissionState
	draft     models.Draft
	result    *models.ClassificationResult
	err       *ClassifiedError
	attemptID uuid.UUID

	gw      Submitter
	bus     Publisher
	journal AttemptRecorder
	cfg     SubmissionConfig
	logger  *zap.SugaredLogger
	wg      sync.WaitGroup
}

// NewSubmissionController creates an idle controller. journal may be nil.
func NewSubmissionController(gw Submitter, bus Publisher, journal AttemptRecorder, cfg SubmissionConfig, logger *zap.SugaredLogger) *SubmissionController {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &SubmissionController{
		state:   StateIdle,
		gw:      gw,
		bus:     bus,
		journal: journal,
		cfg:     cfg,
		logger:  logger,
	}
}

type attempt struct {
	id          uuid.UUID
	draft       models.Draft
	fingerprint string
}

// Snapshot returns the current state.
func (c *SubmissionController) Snapshot() SubmissionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// UpdateDraft replaces the pending draft. Inputs are frozen while submitting.
func (c *SubmissionController) UpdateDraft(d models.Draft) (SubmissionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSubmitting {
		return c.snapshotLocked(), ErrSubmissionInFlight
	}
	c.draft = d
	return c.snapshotLocked(), nil
}

// Acknowledge returns a finished submission to idle, discarding its result
// or error. It is a no-op when already idle.
func (c *SubmissionController) Acknowledge() (SubmissionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateSubmitting:
		return c.snapshotLocked(), ErrSubmissionInFlight
	case StateSucceeded, StateFailed:
		c.state = StateIdle
		c.result = nil
		c.err = nil
	}
	return c.snapshotLocked(), nil
}

// Submit sends d to the gateway and blocks until the attempt finishes.
// It returns ErrSubmissionInFlight or ErrDraftTooShort without issuing a
// request, or the *ClassifiedError of a failed attempt.
func (c *SubmissionController) Submit(ctx context.Context, d models.Draft) (SubmissionSnapshot, error) {
	a, err := c.begin(d)
	if err != nil {
		return c.Snapshot(), err
	}
	if ce := c.run(ctx, a); ce != nil {
		return c.Snapshot(), ce
	}
	return c.Snapshot(), nil
}

// Start validates and enters the submitting state synchronously, then runs
// the request in the background. Cancellation of ctx does not abort the
// attempt; only the submission timeout does.
func (c *SubmissionController) Start(ctx context.Context, d models.Draft) (SubmissionSnapshot, error) {
	a, err := c.begin(d)
	if err != nil {
		return c.Snapshot(), err
	}
	runCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx, a)
	}()
	return c.Snapshot(), nil
}

// Wait blocks until background submissions started with Start finish.
func (c *SubmissionController) Wait() {
	c.wg.Wait()
}

func (c *SubmissionController) begin(d models.Draft) (attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitting {
		return attempt{}, ErrSubmissionInFlight
	}
	if !d.Submittable() {
		return attempt{}, ErrDraftTooShort
	}

	a := attempt{id: uuid.New(), draft: d, fingerprint: Fingerprint(d)}
	c.state = StateSubmitting
	c.draft = d
	c.result = nil
	c.err = nil
	c.attemptID = a.id
	return a, nil
}

func (c *SubmissionController) run(ctx context.Context, a attempt) *ClassifiedError {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	payload, status, err := c.gw.SubmitComplaint(ctx, a.draft, gateway.RequestMeta{
		RequestID:      a.id.String(),
		IdempotencyKey: a.fingerprint,
	})
	elapsed := time.Since(start)

	row := &models.SubmissionAttempt{
		ID:          a.id,
		Fingerprint: a.fingerprint,
		HTTPStatus:  status,
		Duration:    elapsed,
		CreatedAt:   start,
	}

	if err != nil {
		ce := ClassifyError(err, c.cfg.Endpoint)

		c.mu.Lock()
		c.state = StateFailed
		c.err = ce
		c.mu.Unlock()

		c.logger.Warnw("Complaint submission failed",
			"attempt_id", a.id,
			"kind", ce.Kind,
			"status", ce.Status,
			"latency", elapsed,
			"error", err,
		)
		row.Outcome = string(ce.Kind)
		row.Message = ce.Message
		if row.HTTPStatus == 0 {
			row.HTTPStatus = ce.Status
		}
		c.recordAttempt(row)
		return ce
	}

	result := NormalizeResult(payload, a.draft)

	c.mu.Lock()
	c.state = StateSucceeded
	c.result = &result
	// A blank classification keeps the draft so it can be resubmitted.
	if !result.Placeholder {
		c.draft = models.Draft{}
	}
	c.mu.Unlock()

	c.logger.Infow("Complaint classified",
		"attempt_id", a.id,
		"category", result.Category,
		"sentiment", result.Sentiment,
		"priority", result.Priority,
		"placeholder", result.Placeholder,
		"latency", elapsed,
	)

	c.publishChanged(a.id)
	row.Outcome = string(StateSucceeded)
	row.Category = result.Category
	row.Priority = result.Priority
	c.recordAttempt(row)
	return nil
}

func (c *SubmissionController) publishChanged(id uuid.UUID) {
	if c.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.bus.Publish(ctx, events.Signal{Reason: events.ReasonSubmission, AttemptID: id.String(), At: time.Now()}); err != nil {
		c.logger.Errorw("Failed to publish refresh signal", "attempt_id", id, "error", err)
	}
}

func (c *SubmissionController) recordAttempt(row *models.SubmissionAttempt) {
	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.journal.Record(ctx, row); err != nil {
		c.logger.Errorw("Failed to journal submission attempt", "attempt_id", row.ID, "error", err)
	}
}

func (c *SubmissionController) snapshotLocked() SubmissionSnapshot {
	s := SubmissionSnapshot{
		State:     c.state,
		Draft:     c.draft,
		Error:     c.err,
		CanSubmit: c.state != StateSubmitting && c.draft.Submittable(),
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	if c.attemptID != uuid.Nil {
		s.AttemptID = c.attemptID.String()
	}
	return s
}

// PlaceholderResult is the safe-default classification used when the gateway
// returns success without one.
func PlaceholderResult() models.ClassificationResult {
	return models.ClassificationResult{
		Category:           placeholderCategory,
		CategoryConfidence: placeholderConfidence,
		Sentiment:          placeholderSentiment,
		SentimentScore:     placeholderSentScore,
		Priority:           placeholderPriority,
		PriorityScore:      placeholderPriorityScore,
		Placeholder:        true,
	}
}

// NormalizeResult turns a success payload into a complete result. Payloads
// with neither category nor sentiment become the placeholder; individually
// missing fields take the placeholder defaults. Values are not range-checked.
func NormalizeResult(p *models.SubmitPayload, d models.Draft) models.ClassificationResult {
	if p == nil || (p.Category == "" && p.Sentiment == "") {
		return PlaceholderResult()
	}

	r := models.ClassificationResult{
		ID:                 p.ID,
		Text:               p.OriginalText,
		CustomerName:       d.CustomerName,
		CustomerEmail:      d.CustomerEmail,
		Category:           p.Category,
		CategoryConfidence: placeholderConfidence,
		Sentiment:          p.Sentiment,
		SentimentScore:     placeholderSentScore,
		Priority:           p.Priority,
		PriorityScore:      placeholderPriorityScore,
	}
	if r.Text == "" {
		r.Text = d.Text
	}
	if p.CustomerName != nil {
		r.CustomerName = *p.CustomerName
	}
	if p.CustomerEmail != nil {
		r.CustomerEmail = *p.CustomerEmail
	}
	if r.Category == "" {
		r.Category = placeholderCategory
	}
	if r.Sentiment == "" {
		r.Sentiment = placeholderSentiment
	}
	if r.Priority == "" {
		r.Priority = placeholderPriority
	}
	if p.CategoryConfidence != nil {
		r.CategoryConfidence = *p.CategoryConfidence
	}
	if p.SentimentScore != nil {
		r.SentimentScore = *p.SentimentScore
	}
	if p.PriorityScore != nil {
		r.PriorityScore = *p.PriorityScore
	}
	return r
}

// Fingerprint derives a stable key for a draft's content, sent as the
// Idempotency-Key so a retry after a timeout can be matched server-side.
func Fingerprint(d models.Draft) string {
	sum := blake2b.Sum256([]byte(d.Text + "\x00" + d.CustomerName + "\x00" + d.CustomerEmail))
	return hex.EncodeToString(sum[:])
}
