package fusion

import (
	"math"
	"time"

	"spyglass/pkg/models"
)

// Pure trend computations over gateway data. No state, no I/O; the service
// in fusion.go feeds these from the repositories.

// BuildOverview assembles an overview summary from raw aggregates.
// AvgReach is 0 when there are no posts; the engagement rate is nil when
// the follower level is unknown or zero.
func BuildOverview(channel string, window models.TimeWindow, postCount, totalViews int64, followers *int64) models.OverviewSummary {
	summary := models.OverviewSummary{
		Channel:       channel,
		PostCount:     postCount,
		TotalViews:    totalViews,
		FollowerCount: followers,
		Window:        window,
	}
	if postCount > 0 {
		summary.AvgReach = float64(totalViews) / float64(postCount)
	}
	if followers != nil && *followers > 0 && summary.AvgReach > 0 {
		rate := summary.AvgReach / float64(*followers) * 100
		summary.EngagementRatePct = &rate
	}
	return summary
}

// GrowthDeltas converts a daily level series into first-difference deltas.
// Each delta is stamped with the later of the two days it spans, so a
// four-day series yields three points covering days two through four.
func GrowthDeltas(points []models.SeriesPoint) []models.TimeSeriesPoint {
	if len(points) < 2 {
		return nil
	}
	deltas := make([]models.TimeSeriesPoint, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		deltas = append(deltas, models.TimeSeriesPoint{
			Timestamp: points[i].Day,
			Value:     points[i].Value - points[i-1].Value,
		})
	}
	return deltas
}

// DailyReach computes views per post for a single day, 0 when no posts.
func DailyReach(views, postCount int64) float64 {
	if postCount <= 0 {
		return 0
	}
	return float64(views) / float64(postCount)
}

// CalendarDays enumerates the UTC calendar days the window touches,
// oldest first.
func CalendarDays(window models.TimeWindow) []time.Time {
	start := window.From.UTC().Truncate(24 * time.Hour)
	end := window.To.UTC().Truncate(24 * time.Hour)
	var days []time.Time
	for d := start; !d.After(end); d = d.Add(24 * time.Hour) {
		days = append(days, d)
	}
	return days
}

// meanStd returns population mean and standard deviation.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
