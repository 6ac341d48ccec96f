// Package models defines the data structures used across the application.
// Wire shapes follow the classification gateway's JSON contract.
package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Canonical priority labels assigned by the gateway.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Canonical sentiment labels.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// MinComplaintLength is the minimum complaint text length accepted for submission.
const MinComplaintLength = 10

// Draft is the user's pending complaint input
type Draft struct {
	Text          string `json:"text"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// Submittable reports whether the draft meets the minimum length guard.
func (d Draft) Submittable() bool {
	return len([]rune(d.Text)) >= MinComplaintLength
}

// ComplaintRecord is a classified complaint as stored by the gateway.
// Timestamp is kept as the raw wire string so malformed instants can still be
// displayed with a fallback. Epoch-millisecond timestamps are normalized to
// RFC 3339 in UTC; any other non-string value decodes as empty.
type ComplaintRecord struct {
	ID                 string  `json:"id"`
	Text               string  `json:"text"`
	CustomerName       string  `json:"customer_name,omitempty"`
	CustomerEmail      string  `json:"customer_email,omitempty"`
	Category           string  `json:"category"`
	CategoryConfidence float64 `json:"category_confidence"`
	Sentiment          string  `json:"sentiment"`
	SentimentScore     float64 `json:"sentiment_score"`
	Priority           string  `json:"priority"`
	PriorityScore      int     `json:"priority_score"`
	Timestamp          string  `json:"timestamp"`
	CreatedAt          string  `json:"created_at,omitempty"`
	Timezone           string  `json:"timezone,omitempty"`
}

// UnmarshalJSON accepts both list-shaped (`_id`, `original_text`) and
// submit-shaped (`id`, `text`) records.
func (r *ComplaintRecord) UnmarshalJSON(data []byte) error {
	type plain ComplaintRecord
	var wire struct {
		plain
		MongoID      string          `json:"_id"`
		OriginalText string          `json:"original_text"`
		Timestamp    json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = ComplaintRecord(wire.plain)
	r.Timestamp = decodeTimestamp(wire.Timestamp)
	if r.ID == "" {
		r.ID = wire.MongoID
	}
	if wire.OriginalText != "" {
		r.Text = wire.OriginalText
	}
	return nil
}

// maxEpochMillis is the largest instant a browser Date accepts.
const maxEpochMillis = 8.64e15

// decodeTimestamp keeps strings as-is and converts epoch milliseconds. Values
// that cannot be an instant decode as empty, or as their raw text when
// numeric, so they render as invalid instead of failing the whole list.
func decodeTimestamp(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if math.Abs(ms) > maxEpochMillis {
			return string(raw)
		}
		return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// ClassificationResult is the normalized outcome of a successful submission.
type ClassificationResult struct {
	ID                 string  `json:"id,omitempty"`
	Text               string  `json:"text,omitempty"`
	CustomerName       string  `json:"customer_name,omitempty"`
	CustomerEmail      string  `json:"customer_email,omitempty"`
	Category           string  `json:"category"`
	CategoryConfidence float64 `json:"category_confidence"`
	Sentiment          string  `json:"sentiment"`
	SentimentScore     float64 `json:"sentiment_score"`
	Priority           string  `json:"priority"`
	PriorityScore      int     `json:"priority_score"`
	// Placeholder is set when the gateway answered 2xx without a classification.
	Placeholder bool `json:"placeholder"`
}

// SubmitPayload is the gateway's success payload. Pointer fields distinguish
// absent values from zero values.
type SubmitPayload struct {
	ID                 string   `json:"id"`
	OriginalText       string   `json:"original_text"`
	CustomerName       *string  `json:"customer_name"`
	CustomerEmail      *string  `json:"customer_email"`
	Category           string   `json:"category"`
	CategoryConfidence *float64 `json:"category_confidence"`
	Sentiment          string   `json:"sentiment"`
	SentimentScore     *float64 `json:"sentiment_score"`
	Priority           string   `json:"priority"`
	PriorityScore      *int     `json:"priority_score"`
}

// CountEntry is one `{_id, count}` bucket of an aggregate.
type CountEntry struct {
	ID    string `json:"_id"`
	Count int    `json:"count"`
}

// AggregateStats is a point-in-time analytics snapshot from the gateway.
// Bucket order is the order returned by the service.
type AggregateStats struct {
	Total      int          `json:"total"`
	Categories []CountEntry `json:"categories"`
	Sentiments []CountEntry `json:"sentiments"`
}

// CategoryCount returns the count for label, or false when absent.
func (s *AggregateStats) CategoryCount(label string) (int, bool) {
	return lookup(s.Categories, label)
}

// SentimentCount returns the count for label, or false when absent.
func (s *AggregateStats) SentimentCount(label string) (int, bool) {
	return lookup(s.Sentiments, label)
}

func lookup(entries []CountEntry, label string) (int, bool) {
	for _, e := range entries {
		if e.ID == label {
			return e.Count, true
		}
	}
	return 0, false
}

// SubmissionAttempt is a journal row describing one submission attempt
type SubmissionAttempt struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Fingerprint string        `json:"fingerprint" db:"fingerprint"`
	Outcome     string        `json:"outcome" db:"outcome"`
	Category    string        `json:"category,omitempty" db:"category"`
	Priority    string        `json:"priority,omitempty" db:"priority"`
	HTTPStatus  int           `json:"http_status,omitempty" db:"http_status"`
	Message     string        `json:"message,omitempty" db:"message"`
	Duration    time.Duration `json:"duration_ns" db:"duration_ns"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// HealthStatus represents the console health check response
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	Journal string `json:"journal,omitempty"`
	Bus     string `json:"bus,omitempty"`
}
