// Package gateway defines the repository ports the analytics pipeline reads
// from, plus the database adapters that implement them. Each port is a narrow
// capability interface; callers depend on the interface, never on a concrete
// store.
package gateway

import (
	"context"
	"time"

	"spyglass/pkg/models"
)

// DailySeriesRepo reads per-day channel metrics (followers, views, ...).
type DailySeriesRepo interface {
	// DailySeries returns the named metric ordered by day ascending.
	DailySeries(ctx context.Context, channel, metric string, window models.TimeWindow) ([]models.SeriesPoint, error)
	// DailySeriesValue returns the metric value at a single day, or nil
	// when no row exists.
	DailySeriesValue(ctx context.Context, channel, metric string, day time.Time) (*float64, error)
	// LatestDay returns the most recent day with any metric row for the
	// channel, or nil when the channel has no series data.
	LatestDay(ctx context.Context, channel string) (*time.Time, error)
}

// PostRepo reads channel post snapshots.
type PostRepo interface {
	CountPosts(ctx context.Context, channel string, window models.TimeWindow) (int64, error)
	SumViews(ctx context.Context, channel string, window models.TimeWindow) (int64, error)
	// TopPostsByViews returns up to limit posts ordered by views descending.
	TopPostsByViews(ctx context.Context, channel string, window models.TimeWindow, limit int) ([]models.PostRecord, error)
}

// PostMetricsRepo reads per-post metric snapshot bookkeeping.
type PostMetricsRepo interface {
	// LatestSnapshotAt returns the newest post-metrics snapshot time for
	// the channel, or nil when none exist.
	LatestSnapshotAt(ctx context.Context, channel string) (*time.Time, error)
}

// EdgeRepo reads aggregated mention/forward edges between channels.
type EdgeRepo interface {
	TopEdges(ctx context.Context, channel string, window models.TimeWindow, kind models.EdgeKind, limit int) ([]models.EdgeCount, error)
}

// RawStatsRepo reads raw stats fetch bookkeeping.
type RawStatsRepo interface {
	// LastFetchedAt returns the newest raw-stats fetch time for the
	// channel, or nil when none exist.
	LastFetchedAt(ctx context.Context, channel string) (*time.Time, error)
}
