package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/models"
	"go.uber.org/zap"
)

// PriorityTier selects records by priority.
type PriorityTier string

const (
	TierAll    PriorityTier = "all"
	TierHigh   PriorityTier = "high"
	TierMedium PriorityTier = "medium"
	TierLow    PriorityTier = "low"
)

// InvalidDate is rendered for timestamps that cannot be parsed.
const InvalidDate = "Invalid date"

// ist is the display zone for record timestamps.
var ist = time.FixedZone("IST", 5*3600+30*60)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05 MST",
}

// ParseTier parses a tier name. Unknown names map to TierAll and false.
func ParseTier(s string) (PriorityTier, bool) {
	switch PriorityTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierAll, "":
		return TierAll, true
	case TierHigh:
		return TierHigh, true
	case TierMedium:
		return TierMedium, true
	case TierLow:
		return TierLow, true
	}
	return TierAll, false
}

// priorityLabel maps a tier to the canonical priority it matches.
func (t PriorityTier) priorityLabel() (string, bool) {
	switch t {
	case TierHigh:
		return models.PriorityHigh, true
	case TierMedium:
		return models.PriorityMedium, true
	case TierLow:
		return models.PriorityLow, true
	}
	return "", false
}

// FilterRecords returns the records matching tier in their original order.
// Matching is exact and case-sensitive; TierAll and unknown tiers keep every
// record, including those with unrecognized priorities.
func FilterRecords(records []models.ComplaintRecord, tier PriorityTier) []models.ComplaintRecord {
	label, ok := tier.priorityLabel()
	out := make([]models.ComplaintRecord, 0, len(records))
	for _, r := range records {
		if !ok || r.Priority == label {
			out = append(out, r)
		}
	}
	return out
}

// FormatTimestamp renders a stored instant in IST, e.g.
// "15 Jan 2024, 03:04:05 pm IST". Values without a zone are taken as IST.
func FormatTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return InvalidDate
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, ist); err == nil {
			return t.In(ist).Format("2 Jan 2006, 03:04:05 pm") + " IST"
		}
	}
	return InvalidDate
}

// WholePercent renders a [0,1] score as a whole percentage, e.g. "87%".
// Halves round away from zero.
func WholePercent(score float64) string {
	return strconv.FormatFloat(math.Round(score*100), 'f', 0, 64) + "%"
}

// Urgency renders a priority score out of five, e.g. "5/5".
func Urgency(score int) string {
	return fmt.Sprintf("%d/5", score)
}

// RecordRow is a record with its display fields.
type RecordRow struct {
	models.ComplaintRecord
	DisplayTime    string `json:"display_time"`
	ConfidenceText string `json:"confidence_text"`
	SentimentText  string `json:"sentiment_text"`
	UrgencyText    string `json:"urgency_text"`
}

// RecordView is the filtered record list as presented.
type RecordView struct {
	Status   LoadStatus       `json:"status"`
	Tier     PriorityTier     `json:"tier"`
	Count    int              `json:"count"`
	Total    int              `json:"total"`
	Records  []RecordRow      `json:"records"`
	Error    *ClassifiedError `json:"error,omitempty"`
	LoadedAt *time.Time       `json:"loaded_at,omitempty"`
}

// RecordLister fetches the complaint list
type RecordLister interface {
	ListComplaints(ctx context.Context) ([]models.ComplaintRecord, error)
}

// RecordProjection holds the most recently loaded complaint list
type RecordProjection struct {
	loader *snapshotLoader[[]models.ComplaintRecord]
}

// NewRecordProjection creates a record projection
func NewRecordProjection(lister RecordLister, fetchTimeout time.Duration, endpoint string, logger *zap.SugaredLogger) *RecordProjection {
	return &RecordProjection{
		loader: newSnapshotLoader("records", lister.ListComplaints, fetchTimeout, endpoint, logger),
	}
}

// Name identifies the projection in logs.
func (p *RecordProjection) Name() string { return "records" }

// Load fetches the full list and replaces the local copy wholesale.
func (p *RecordProjection) Load(ctx context.Context) error {
	return p.loader.load(ctx)
}

// Stop cancels an outstanding fetch.
func (p *RecordProjection) Stop() { p.loader.stop() }

// Records returns a copy of the loaded list.
func (p *RecordProjection) Records() []models.ComplaintRecord {
	records, _, _, _ := p.loader.snapshot()
	out := make([]models.ComplaintRecord, len(records))
	copy(out, records)
	return out
}

// Filter applies tier to the in-memory snapshot without re-fetching.
func (p *RecordProjection) Filter(tier PriorityTier) []models.ComplaintRecord {
	records, _, _, _ := p.loader.snapshot()
	return FilterRecords(records, tier)
}

// View returns the filtered list with display fields.
func (p *RecordProjection) View(tier PriorityTier) RecordView {
	records, status, lastErr, loadedAt := p.loader.snapshot()
	filtered := FilterRecords(records, tier)

	view := RecordView{
		Status:  status,
		Tier:    tier,
		Count:   len(filtered),
		Total:   len(records),
		Records: make([]RecordRow, 0, len(filtered)),
		Error:   lastErr,
	}
	if !loadedAt.IsZero() {
		view.LoadedAt = &loadedAt
	}
	for _, r := range filtered {
		view.Records = append(view.Records, RecordRow{
			ComplaintRecord: r,
			DisplayTime:     FormatTimestamp(r.Timestamp),
			ConfidenceText:  WholePercent(r.CategoryConfidence),
			SentimentText:   WholePercent(r.SentimentScore),
			UrgencyText:     Urgency(r.PriorityScore),
		})
	}
	return view
}
