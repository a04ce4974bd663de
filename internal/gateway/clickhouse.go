package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spyglass/pkg/database"
	"spyglass/pkg/models"
)

// ClickHouseStore implements the daily-series, post-metrics and raw-stats
// ports on top of the time-series store (channel_daily_metrics,
// post_metrics, raw_stats_fetches).
type ClickHouseStore struct {
	db database.ClickHouseConn
}

// NewClickHouseStore wraps an existing connection.
func NewClickHouseStore(db database.ClickHouseConn) *ClickHouseStore {
	return &ClickHouseStore{db: db}
}

// DailySeries returns the named metric ordered by day ascending.
func (s *ClickHouseStore) DailySeries(ctx context.Context, channel, metric string, window models.TimeWindow) ([]models.SeriesPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, value
		FROM channel_daily_metrics
		WHERE channel_id = ? AND metric = ? AND day >= ? AND day <= ?
		ORDER BY day ASC`,
		channel, metric, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("daily series %s: %w", metric, err)
	}
	defer rows.Close()

	var points []models.SeriesPoint
	for rows.Next() {
		p := models.SeriesPoint{Metric: metric}
		if err := rows.Scan(&p.Day, &p.Value); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// DailySeriesValue returns one day's metric value, or nil when absent.
func (s *ClickHouseStore) DailySeriesValue(ctx context.Context, channel, metric string, day time.Time) (*float64, error) {
	var value float64
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM channel_daily_metrics
		WHERE channel_id = ? AND metric = ? AND day = ?
		LIMIT 1`,
		channel, metric, day).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("daily series value %s: %w", metric, err)
	}
	return &value, nil
}

// LatestDay returns the newest day with any metric row for the channel.
func (s *ClickHouseStore) LatestDay(ctx context.Context, channel string) (*time.Time, error) {
	return s.latestTime(ctx, `
		SELECT max(day) FROM channel_daily_metrics WHERE channel_id = ?`, channel)
}

// LatestSnapshotAt returns the newest post-metrics snapshot time.
func (s *ClickHouseStore) LatestSnapshotAt(ctx context.Context, channel string) (*time.Time, error) {
	return s.latestTime(ctx, `
		SELECT max(snapshot_at) FROM post_metrics WHERE channel_id = ?`, channel)
}

// LastFetchedAt returns the newest raw-stats fetch time.
func (s *ClickHouseStore) LastFetchedAt(ctx context.Context, channel string) (*time.Time, error) {
	return s.latestTime(ctx, `
		SELECT max(fetched_at) FROM raw_stats_fetches WHERE channel_id = ?`, channel)
}

func (s *ClickHouseStore) latestTime(ctx context.Context, query, channel string) (*time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx, query, channel).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest timestamp: %w", err)
	}
	// ClickHouse max() over an empty set yields the epoch zero value.
	if !ts.Valid || ts.Time.IsZero() || ts.Time.Unix() == 0 {
		return nil, nil
	}
	t := ts.Time
	return &t, nil
}
