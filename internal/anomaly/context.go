package anomaly

import (
	"context"
	"sort"
	"time"

	"spyglass/internal/gateway"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

const (
	contextLookbackDays = 30
	contextPostLimit    = 50
)

// ContextBuilder gathers the historical context one anomaly analysis runs
// over. The context is built fresh for every orchestration call and never
// reused; a partially gathered context is still usable, just thinner.
type ContextBuilder struct {
	posts  gateway.PostRepo
	series gateway.DailySeriesRepo
	logger logging.Logger
	now    func() time.Time
}

// NewContextBuilder creates a historical context builder.
func NewContextBuilder(posts gateway.PostRepo, series gateway.DailySeriesRepo, logger logging.Logger) *ContextBuilder {
	return &ContextBuilder{posts: posts, series: series, logger: logger, now: time.Now}
}

// Healthy reports whether the builder has its required repositories.
func (b *ContextBuilder) Healthy() bool {
	return b.posts != nil && b.series != nil
}

// Gather collects posts, daily series and view/engagement baselines for
// the channel's last 30 days. Repository failures degrade to an emptier
// context rather than erroring; downstream stages handle thin contexts.
func (b *ContextBuilder) Gather(ctx context.Context, channel string) models.HistoricalContext {
	now := b.now()
	window := models.TimeWindow{From: now.AddDate(0, 0, -contextLookbackDays), To: now}
	hctx := models.HistoricalContext{
		Channel:      channel,
		DailyMetrics: make(map[string][]models.SeriesPoint),
		GatheredAt:   now,
	}

	posts, err := b.posts.TopPostsByViews(ctx, channel, window, contextPostLimit)
	if err != nil {
		b.warn(channel, "posts", err)
	} else {
		// Repository ranking is by views; the context contract wants
		// most-recent-first.
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].PublishedAt.After(posts[j].PublishedAt)
		})
		hctx.Posts = posts
	}

	for _, metric := range []string{models.MetricFollowers, models.MetricSubscribers, models.MetricViews} {
		points, err := b.series.DailySeries(ctx, channel, metric, window)
		if err != nil {
			b.warn(channel, metric, err)
			continue
		}
		if len(points) > 0 {
			hctx.DailyMetrics[metric] = points
		}
	}

	hctx.Views = viewBaselines(hctx.Posts)
	hctx.Engagement = engagementBaselines(hctx.Posts)
	return hctx
}

func (b *ContextBuilder) warn(channel, source string, err error) {
	if b.logger == nil {
		return
	}
	b.logger.WithError(err).WithFields(logging.Fields{
		"channel": channel,
		"source":  source,
	}).Warn("Historical context gathering degraded")
}

func viewBaselines(posts []models.PostRecord) models.Baselines {
	if len(posts) == 0 {
		return models.Baselines{}
	}
	views := make([]float64, len(posts))
	for i, p := range posts {
		views[i] = float64(p.Views)
	}
	m := mean(views)
	return models.Baselines{
		Avg:    m,
		Std:    stdDev(views, m),
		Median: percentile(views, 50),
		P10:    percentile(views, 10),
		P90:    percentile(views, 90),
	}
}

func engagementBaselines(posts []models.PostRecord) *models.Baselines {
	var rates []float64
	for _, p := range posts {
		if p.Views > 0 {
			rates = append(rates, p.EngagementRate())
		}
	}
	if len(rates) == 0 {
		return nil
	}
	m := mean(rates)
	return &models.Baselines{
		Avg:    m,
		Std:    stdDev(rates, m),
		Median: percentile(rates, 50),
		P10:    percentile(rates, 10),
		P90:    percentile(rates, 90),
	}
}
