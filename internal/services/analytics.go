package services

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/models"
	"go.uber.org/zap"
)

// ShareRow is one bucket of a distribution with its share of the total.
type ShareRow struct {
	Label       string  `json:"label"`
	Count       int     `json:"count"`
	Percent     float64 `json:"percent"`
	PercentText string  `json:"percent_text"`
	BarWidth    float64 `json:"bar_width"`
}

// SeriesPoint is a chart input pair.
type SeriesPoint struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// AnalyticsView is the aggregate dashboard as presented. When Empty is set no
// percentages are derived.
type AnalyticsView struct {
	Status          LoadStatus       `json:"status"`
	Empty           bool             `json:"empty"`
	Total           int              `json:"total"`
	Categories      []ShareRow       `json:"categories"`
	Sentiments      []ShareRow       `json:"sentiments"`
	CategorySeries  []SeriesPoint    `json:"category_series"`
	SentimentSeries []SeriesPoint    `json:"sentiment_series"`
	Error           *ClassifiedError `json:"error,omitempty"`
	LoadedAt        *time.Time       `json:"loaded_at,omitempty"`
}

// Percentage returns label's share of the total categories, in percent.
// It reports false for an empty snapshot or an unknown label.
func Percentage(stats *models.AggregateStats, label string) (float64, bool) {
	if stats == nil || stats.Total == 0 {
		return 0, false
	}
	count, ok := stats.CategoryCount(label)
	if !ok {
		return 0, false
	}
	return share(count, stats.Total), true
}

// FormatPercent renders a percentage with one decimal, e.g. "60.0%".
// Halves round away from zero, so 6.25 renders "6.3%".
func FormatPercent(p float64) string {
	return strconv.FormatFloat(math.Round(p*10)/10, 'f', 1, 64) + "%"
}

// BarWidth maps a percentage onto a 0 to 100 visual scale.
func BarWidth(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// ChartSeries re-keys buckets into ordered chart pairs, keeping service order.
func ChartSeries(entries []models.CountEntry) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(entries))
	for _, e := range entries {
		out = append(out, SeriesPoint{Name: e.ID, Value: e.Count})
	}
	return out
}

// DeriveAnalytics computes the dashboard from a snapshot. A nil snapshot or
// a zero total yields the empty view.
func DeriveAnalytics(stats *models.AggregateStats) AnalyticsView {
	if stats == nil || stats.Total == 0 {
		return AnalyticsView{
			Empty:           true,
			Categories:      []ShareRow{},
			Sentiments:      []ShareRow{},
			CategorySeries:  []SeriesPoint{},
			SentimentSeries: []SeriesPoint{},
		}
	}
	return AnalyticsView{
		Total:           stats.Total,
		Categories:      shareRows(stats.Categories, stats.Total),
		Sentiments:      shareRows(stats.Sentiments, stats.Total),
		CategorySeries:  ChartSeries(stats.Categories),
		SentimentSeries: ChartSeries(stats.Sentiments),
	}
}

func shareRows(entries []models.CountEntry, total int) []ShareRow {
	rows := make([]ShareRow, 0, len(entries))
	for _, e := range entries {
		p := share(e.Count, total)
		rows = append(rows, ShareRow{
			Label:       e.ID,
			Count:       e.Count,
			Percent:     p,
			PercentText: FormatPercent(p),
			BarWidth:    BarWidth(p),
		})
	}
	return rows
}

func share(count, total int) float64 {
	return float64(count) / float64(total) * 100
}

// StatsFetcher fetches an aggregate snapshot
type StatsFetcher interface {
	FetchAnalytics(ctx context.Context) (*models.AggregateStats, error)
}

// AggregateProjection holds the most recent analytics snapshot
type AggregateProjection struct {
	loader *snapshotLoader[*models.AggregateStats]
}

// NewAggregateProjection creates an aggregate projection
func NewAggregateProjection(fetcher StatsFetcher, fetchTimeout time.Duration, endpoint string, logger *zap.SugaredLogger) *AggregateProjection {
	return &AggregateProjection{
		loader: newSnapshotLoader("analytics", fetcher.FetchAnalytics, fetchTimeout, endpoint, logger),
	}
}

// Name identifies the projection in logs.
func (p *AggregateProjection) Name() string { return "analytics" }

// Load fetches one snapshot, replacing the previous one.
func (p *AggregateProjection) Load(ctx context.Context) error {
	return p.loader.load(ctx)
}

// Stop cancels an outstanding fetch.
func (p *AggregateProjection) Stop() { p.loader.stop() }

// Stats returns a copy of the current snapshot, or nil.
func (p *AggregateProjection) Stats() *models.AggregateStats {
	stats, _, _, _ := p.loader.snapshot()
	if stats == nil {
		return nil
	}
	cp := *stats
	cp.Categories = append([]models.CountEntry(nil), stats.Categories...)
	cp.Sentiments = append([]models.CountEntry(nil), stats.Sentiments...)
	return &cp
}

// View derives the dashboard from the current snapshot.
func (p *AggregateProjection) View() AnalyticsView {
	stats, status, lastErr, loadedAt := p.loader.snapshot()
	view := DeriveAnalytics(stats)
	view.Status = status
	view.Error = lastErr
	if !loadedAt.IsZero() {
		view.LoadedAt = &loadedAt
	}
	return view
}
