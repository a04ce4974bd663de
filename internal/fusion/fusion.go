// Package fusion aggregates raw post and daily-series records into
// overview, growth, reach, top-content and trending summaries.
//
// Every method degrades instead of failing: repository errors are logged,
// converted to a zeroed or empty result, and surfaced through the returned
// Degradation so callers can tell a healthy empty result from a degraded
// one without reading logs.
package fusion

import (
	"context"
	"sort"
	"time"

	"spyglass/internal/gateway"
	"spyglass/internal/metrics"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

const (
	defaultTopPostsLimit    = 10
	defaultSourcesLimit     = 20
	defaultTrendWindowHours = 48
	maxReachWindowDays      = 366 // caller contract bounds windows to one year
)

// Degradation marks a result produced from partial or missing data.
type Degradation struct {
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

func degraded(reason string) Degradation {
	return Degradation{Degraded: true, Reason: reason}
}

// Service is the analytics fusion facade. All dependencies are injected;
// the service holds no per-request state and is safe for concurrent use.
type Service struct {
	posts       gateway.PostRepo
	series      gateway.DailySeriesRepo
	edges       gateway.EdgeRepo
	postMetrics gateway.PostMetricsRepo
	rawStats    gateway.RawStatsRepo
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Deps bundles the service's constructor dependencies. Metrics may be nil.
type Deps struct {
	Posts       gateway.PostRepo
	Series      gateway.DailySeriesRepo
	Edges       gateway.EdgeRepo
	PostMetrics gateway.PostMetricsRepo
	RawStats    gateway.RawStatsRepo
	Logger      logging.Logger
	Metrics     *metrics.Metrics
}

// NewService creates an analytics fusion service.
func NewService(deps Deps) *Service {
	return &Service{
		posts:       deps.Posts,
		series:      deps.Series,
		edges:       deps.Edges,
		postMetrics: deps.PostMetrics,
		rawStats:    deps.RawStats,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// Healthy reports whether the service has its required repositories.
func (s *Service) Healthy() bool {
	return s.posts != nil && s.series != nil
}

// GetOverview returns post count, total views, average reach and follower
// level for the window. On repository failure it returns a zeroed summary
// marked degraded; callers must not treat such a summary as authoritative.
func (s *Service) GetOverview(ctx context.Context, channel string, window models.TimeWindow) (models.OverviewSummary, Degradation) {
	start := s.now()

	count, err := s.posts.CountPosts(ctx, channel, window)
	if err != nil {
		s.warn("overview", channel, err)
		s.metrics.ObserveQuery("overview", "degraded", start)
		return models.OverviewSummary{Channel: channel, Window: window}, degraded("post repository unavailable")
	}
	views, err := s.posts.SumViews(ctx, channel, window)
	if err != nil {
		s.warn("overview", channel, err)
		s.metrics.ObserveQuery("overview", "degraded", start)
		return models.OverviewSummary{Channel: channel, Window: window}, degraded("post repository unavailable")
	}

	followers, deg := s.followerLevel(ctx, channel, window)
	s.metrics.ObserveQuery("overview", statusOf(deg), start)
	return BuildOverview(channel, window, count, views, followers), deg
}

// followerLevel returns the latest follower count inside the window,
// trying the followers series first and falling back to subscribers.
// An empty series is not degradation; a repository error is.
func (s *Service) followerLevel(ctx context.Context, channel string, window models.TimeWindow) (*int64, Degradation) {
	for _, metric := range []string{models.MetricFollowers, models.MetricSubscribers} {
		points, err := s.series.DailySeries(ctx, channel, metric, window)
		if err != nil {
			s.warn("follower_level", channel, err)
			return nil, degraded("daily-series repository unavailable")
		}
		if len(points) > 0 {
			level := int64(points[len(points)-1].Value)
			return &level, Degradation{}
		}
	}
	return nil, Degradation{}
}

// GetGrowth returns day-over-day follower deltas. A channel without series
// data yields an empty series, not an error.
func (s *Service) GetGrowth(ctx context.Context, channel string, window models.TimeWindow) (models.TimeSeries, Degradation) {
	start := s.now()
	out := models.TimeSeries{Label: "follower_growth"}

	for _, metric := range []string{models.MetricFollowers, models.MetricSubscribers} {
		points, err := s.series.DailySeries(ctx, channel, metric, window)
		if err != nil {
			s.warn("growth", channel, err)
			s.metrics.ObserveQuery("growth", "degraded", start)
			return out, degraded("daily-series repository unavailable")
		}
		if len(points) > 0 {
			out.Points = GrowthDeltas(points)
			break
		}
	}
	s.metrics.ObserveQuery("growth", "ok", start)
	return out, Degradation{}
}

// GetReach returns average views per post for each calendar day in the
// window. Days without posts contribute 0. The loop issues one repository
// round-trip pair per day; acceptable because windows are bounded.
func (s *Service) GetReach(ctx context.Context, channel string, window models.TimeWindow) (models.TimeSeries, Degradation) {
	start := s.now()
	out := models.TimeSeries{Label: "reach"}

	days := CalendarDays(window)
	if len(days) > maxReachWindowDays {
		days = days[:maxReachWindowDays]
	}
	for _, day := range days {
		dayWindow := models.TimeWindow{From: day, To: day.Add(24*time.Hour - time.Nanosecond)}
		count, err := s.posts.CountPosts(ctx, channel, dayWindow)
		if err != nil {
			s.warn("reach", channel, err)
			s.metrics.ObserveQuery("reach", "degraded", start)
			return out, degraded("post repository unavailable")
		}
		var views int64
		if count > 0 {
			if views, err = s.posts.SumViews(ctx, channel, dayWindow); err != nil {
				s.warn("reach", channel, err)
				s.metrics.ObserveQuery("reach", "degraded", start)
				return out, degraded("post repository unavailable")
			}
		}
		out.Points = append(out.Points, models.TimeSeriesPoint{Timestamp: day, Value: DailyReach(views, count)})
	}
	s.metrics.ObserveQuery("reach", "ok", start)
	return out, Degradation{}
}

// GetTopPosts returns the channel's highest-viewed posts, limit default 10.
func (s *Service) GetTopPosts(ctx context.Context, channel string, window models.TimeWindow, limit int) ([]models.PostRecord, Degradation) {
	start := s.now()
	if limit <= 0 {
		limit = defaultTopPostsLimit
	}
	posts, err := s.posts.TopPostsByViews(ctx, channel, window, limit)
	if err != nil {
		s.warn("top_posts", channel, err)
		s.metrics.ObserveQuery("top_posts", "degraded", start)
		return nil, degraded("post repository unavailable")
	}
	s.metrics.ObserveQuery("top_posts", "ok", start)
	return posts, Degradation{}
}

// GetSources returns the heaviest mention or forward edges for the channel.
func (s *Service) GetSources(ctx context.Context, channel string, window models.TimeWindow, kind models.EdgeKind) ([]models.EdgeCount, Degradation) {
	start := s.now()
	edges, err := s.edges.TopEdges(ctx, channel, window, kind, defaultSourcesLimit)
	if err != nil {
		s.warn("sources", channel, err)
		s.metrics.ObserveQuery("sources", "degraded", start)
		return nil, degraded("edges repository unavailable")
	}
	s.metrics.ObserveQuery("sources", "ok", start)
	return edges, Degradation{}
}

// GetTrending returns up to 10 statistically trending posts. With fewer
// than 3 posts in the window there is no usable sample, so the posts come
// back unranked. An unset window defaults to the last windowHours hours.
func (s *Service) GetTrending(ctx context.Context, channel string, window models.TimeWindow, method string, windowHours int) ([]models.PostRecord, Degradation) {
	start := s.now()
	if windowHours <= 0 {
		windowHours = defaultTrendWindowHours
	}
	if window.IsZero() {
		window = models.LastHours(s.now(), windowHours)
	}

	posts, err := s.posts.TopPostsByViews(ctx, channel, window, trendingSampleLimit)
	if err != nil {
		s.warn("trending", channel, err)
		s.metrics.ObserveQuery("trending", "degraded", start)
		return nil, degraded("post repository unavailable")
	}
	if len(posts) < minTrendingSample {
		s.metrics.ObserveQuery("trending", "ok", start)
		return posts, Degradation{}
	}

	// The repository orders by views; trending math wants publish order.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})

	var trending []models.PostRecord
	switch method {
	case TrendMethodEWMA:
		trending = ewmaTrending(posts)
	default:
		trending = zScoreTrending(posts)
	}
	if len(trending) > maxTrendingPosts {
		trending = trending[:maxTrendingPosts]
	}
	s.metrics.ObserveQuery("trending", "ok", start)
	return trending, Degradation{}
}

// GetLastUpdatedAt returns the newest timestamp across post-metric
// snapshots, daily series and raw-stats fetches. Nil means the channel has
// no data anywhere; callers use this for cache invalidation.
func (s *Service) GetLastUpdatedAt(ctx context.Context, channel string) (*time.Time, Degradation) {
	start := s.now()
	var newest *time.Time
	deg := Degradation{}

	sources := []func(context.Context, string) (*time.Time, error){}
	if s.postMetrics != nil {
		sources = append(sources, s.postMetrics.LatestSnapshotAt)
	}
	if s.series != nil {
		sources = append(sources, s.series.LatestDay)
	}
	if s.rawStats != nil {
		sources = append(sources, s.rawStats.LastFetchedAt)
	}

	for _, fetch := range sources {
		ts, err := fetch(ctx, channel)
		if err != nil {
			s.warn("last_updated", channel, err)
			deg = degraded("one or more timestamp sources unavailable")
			continue
		}
		if ts != nil && (newest == nil || ts.After(*newest)) {
			newest = ts
		}
	}
	s.metrics.ObserveQuery("last_updated", statusOf(deg), start)
	return newest, deg
}

func (s *Service) warn(queryType, channel string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.WithError(err).WithFields(logging.Fields{
		"query_type": queryType,
		"channel":    channel,
	}).Warn("Fusion query degraded")
}

func statusOf(deg Degradation) string {
	if deg.Degraded {
		return "degraded"
	}
	return "ok"
}
