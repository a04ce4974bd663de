package models

import (
	"fmt"
	"time"
)

// TimeWindow bounds every analytics query. From must not be after To.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate checks the window invariant.
func (w TimeWindow) Validate() error {
	if w.From.After(w.To) {
		return fmt.Errorf("invalid time window: from %s is after to %s", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// IsZero reports whether the window is unset.
func (w TimeWindow) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// Contains reports whether t falls inside the window (inclusive).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// LastHours returns a window covering the last h hours ending at now.
func LastHours(now time.Time, h int) TimeWindow {
	return TimeWindow{From: now.Add(-time.Duration(h) * time.Hour), To: now}
}

// PostRecord is an immutable snapshot of a channel post and its counters.
type PostRecord struct {
	MessageID   int64            `json:"message_id"`
	PublishedAt time.Time        `json:"published_at"`
	Views       int64            `json:"views"`
	Forwards    int64            `json:"forwards"`
	Replies     int64            `json:"replies"`
	Reactions   map[string]int64 `json:"reactions"`
	Title       string           `json:"title"`
	Permalink   string           `json:"permalink"`
	// TrendScore is populated only by trending detection (z-score or
	// spike ratio, rounded to two decimals).
	TrendScore float64 `json:"trend_score,omitempty"`
}

// EngagementRate returns (forwards+replies)/views*100, or 0 for zero views.
func (p PostRecord) EngagementRate() float64 {
	if p.Views <= 0 {
		return 0
	}
	return float64(p.Forwards+p.Replies) / float64(p.Views) * 100
}

// SeriesPoint is one day of a named daily metric for a channel.
type SeriesPoint struct {
	Day    time.Time `json:"day"`
	Metric string    `json:"metric"`
	Value  float64   `json:"value"`
}

// Well-known daily metric names.
const (
	MetricFollowers   = "followers"
	MetricSubscribers = "subscribers"
	MetricViews       = "views"
	MetricEngagement  = "engagement"
	MetricGrowth      = "growth"
)

// OverviewSummary aggregates a channel's posting activity over a window.
// EngagementRatePct is nil when the follower count is unknown or zero.
// An all-zero summary with nil FollowerCount means the data sources were
// unavailable and the summary is degraded, not authoritative.
type OverviewSummary struct {
	Channel           string     `json:"channel"`
	PostCount         int64      `json:"post_count"`
	TotalViews        int64      `json:"total_views"`
	AvgReach          float64    `json:"avg_reach"`
	EngagementRatePct *float64   `json:"engagement_rate_pct"`
	FollowerCount     *int64     `json:"follower_count"`
	Window            TimeWindow `json:"window"`
}

// TimeSeriesPoint is one sample of a labeled time series.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TimeSeries is an ordered series for growth/reach charts. Growth series
// carry day-over-day deltas, not raw follower levels.
type TimeSeries struct {
	Label  string            `json:"label"`
	Points []TimeSeriesPoint `json:"points"`
}

// EdgeKind selects the mention or forward edge set.
type EdgeKind string

const (
	EdgeMention EdgeKind = "mention"
	EdgeForward EdgeKind = "forward"
)

// EdgeCount is an aggregated mention/forward edge between two channels.
type EdgeCount struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	Count int64  `json:"count"`
}
