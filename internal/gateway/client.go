// Package gateway is the HTTP client for the remote complaint classification
// service. It performs the three contract requests (submit, list, analytics)
// and reports non-2xx answers as *StatusError so callers can classify them.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/models"
	"go.uber.org/zap"
)

const (
	complaintsPath = "/api/complaints"
	analyticsPath  = "/api/analytics"
	healthPath     = "/health"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 8 << 20
)

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("gateway returned %d", e.Status)
}

// ReadError is returned when a response status arrived but its body could
// not be read in full.
type ReadError struct {
	Status int
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d response body: %v", e.Status, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// RequestMeta carries per-request correlation headers.
type RequestMeta struct {
	RequestID      string
	IdempotencyKey string
}

// Client talks to the classification gateway
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a gateway client. Timeouts are applied per call through
// the context, so the supplied http.Client should not set its own.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

// BaseURL returns the configured gateway address.
func (c *Client) BaseURL() string { return c.baseURL }

// SubmitComplaint posts a draft for classification and returns the decoded
// success payload. A 2xx body that is not valid JSON, or is cut off, yields an
// empty payload rather than an error.
func (c *Client) SubmitComplaint(ctx context.Context, draft models.Draft, meta RequestMeta) (*models.SubmitPayload, int, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return nil, 0, fmt.Errorf("encode complaint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+complaintsPath, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if meta.RequestID != "" {
		req.Header.Set("X-Request-ID", meta.RequestID)
	}
	if meta.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", meta.IdempotencyKey)
	}

	raw, status, err := c.do(req)
	var re *ReadError
	if errors.As(err, &re) && isSuccess(re.Status) && ctx.Err() == nil {
		c.logger.Warnw("Gateway submit body was cut off", "status", status, "error", re.Err)
		return &models.SubmitPayload{}, status, nil
	}
	if err != nil {
		return nil, status, err
	}

	payload := &models.SubmitPayload{}
	data, ok := unwrapEnvelope(raw)
	if !ok {
		c.logger.Warnw("Gateway returned undecodable submit payload", "status", status, "bytes", len(raw))
		return payload, status, nil
	}
	if err := json.Unmarshal(data, payload); err != nil {
		c.logger.Warnw("Gateway submit payload has unexpected shape", "status", status, "error", err)
		return &models.SubmitPayload{}, status, nil
	}
	return payload, status, nil
}

// ListComplaints fetches every stored complaint record.
func (c *Client) ListComplaints(ctx context.Context) ([]models.ComplaintRecord, error) {
	var env struct {
		Data []models.ComplaintRecord `json:"data"`
	}
	if err := c.getJSON(ctx, complaintsPath, &env); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	if env.Data == nil {
		env.Data = []models.ComplaintRecord{}
	}
	return env.Data, nil
}

// FetchAnalytics fetches one aggregate statistics snapshot. A response
// without a data object yields nil stats.
func (c *Client) FetchAnalytics(ctx context.Context) (*models.AggregateStats, error) {
	var env struct {
		Data *models.AggregateStats `json:"data"`
	}
	if err := c.getJSON(ctx, analyticsPath, &env); err != nil {
		return nil, fmt.Errorf("fetch analytics: %w", err)
	}
	return env.Data, nil
}

// Health probes the gateway's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	if _, _, err := c.do(req); err != nil {
		return fmt.Errorf("gateway health: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	raw, _, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes req and returns the body of a 2xx response. Transport errors are
// returned unwrapped so callers can inspect them.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debugw("Gateway request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"latency", time.Since(start),
			"error", err,
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &ReadError{Status: resp.StatusCode, Err: err}
	}

	c.logger.Debugw("Gateway request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	if !isSuccess(resp.StatusCode) {
		return nil, resp.StatusCode, &StatusError{Status: resp.StatusCode, Detail: errorDetail(raw)}
	}
	return raw, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// unwrapEnvelope returns the `data` object when present, else the body itself.
func unwrapEnvelope(raw []byte) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	if data, ok := obj["data"]; ok && len(data) > 0 && data[0] == '{' {
		return data, true
	}
	return raw, true
}

func errorDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	// FastAPI validation errors carry a list of objects.
	return string(body.Detail)
}

// IsReadError reports whether err came from reading a response body.
func IsReadError(err error) (*ReadError, bool) {
	var re *ReadError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsStatus reports whether err carries a gateway status error.
func IsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
