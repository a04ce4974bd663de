package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyglass/pkg/models"
)

func TestGather_PostsMostRecentFirst(t *testing.T) {
	// Repository returns by views descending; the context re-sorts by
	// publish time.
	repo := &fakeRepo{posts: viewPosts(50, 900, 200)}
	b := NewContextBuilder(repo, repo, nil)

	hctx := b.Gather(context.Background(), "channel")
	require.Len(t, hctx.Posts, 3)
	for i := 1; i < len(hctx.Posts); i++ {
		assert.True(t, !hctx.Posts[i-1].PublishedAt.Before(hctx.Posts[i].PublishedAt))
	}
	assert.Equal(t, "channel", hctx.Channel)
	assert.False(t, hctx.GatheredAt.IsZero())
}

func TestGather_Baselines(t *testing.T) {
	posts := viewPosts(100, 200, 300)
	posts[0].Forwards = 10 // engagement 10%
	repo := &fakeRepo{posts: posts}
	b := NewContextBuilder(repo, repo, nil)

	hctx := b.Gather(context.Background(), "channel")
	assert.InDelta(t, 200, hctx.Views.Avg, 0.001)
	assert.InDelta(t, 200, hctx.Views.Median, 0.001)
	require.NotNil(t, hctx.Engagement)
	assert.Greater(t, hctx.Engagement.Avg, 0.0)
}

func TestGather_NoViewsMeansNilEngagementBaselines(t *testing.T) {
	repo := &fakeRepo{posts: viewPosts(0, 0, 0)}
	b := NewContextBuilder(repo, repo, nil)

	hctx := b.Gather(context.Background(), "channel")
	assert.Nil(t, hctx.Engagement)
}

func TestGather_DailyMetricsOnlyNonEmpty(t *testing.T) {
	repo := &fakeRepo{
		series: map[string][]models.SeriesPoint{
			models.MetricFollowers: followerLevels(100, 110),
		},
	}
	b := NewContextBuilder(repo, repo, nil)

	hctx := b.Gather(context.Background(), "channel")
	assert.Contains(t, hctx.DailyMetrics, models.MetricFollowers)
	assert.NotContains(t, hctx.DailyMetrics, models.MetricViews)
}

func TestGather_RepositoryFailureDegrades(t *testing.T) {
	repo := &fakeRepo{failPosts: true, failSeries: true}
	b := NewContextBuilder(repo, repo, nil)

	hctx := b.Gather(context.Background(), "channel")
	assert.Empty(t, hctx.Posts)
	assert.Empty(t, hctx.DailyMetrics)
	assert.Nil(t, hctx.Engagement)
	assert.Zero(t, hctx.Views.Avg)
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 30, percentile(values, 50), 0.001)
	assert.InDelta(t, 10, percentile(values, 0), 0.001)
	assert.InDelta(t, 50, percentile(values, 100), 0.001)
	assert.Zero(t, percentile(nil, 50))
}

func TestGatherIsFreshPerCall(t *testing.T) {
	repo := &fakeRepo{posts: viewPosts(100)}
	b := NewContextBuilder(repo, repo, nil)
	b.now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }

	first := b.Gather(context.Background(), "channel")
	repo.posts = viewPosts(100, 200)
	second := b.Gather(context.Background(), "channel")

	assert.Len(t, first.Posts, 1)
	assert.Len(t, second.Posts, 2)
}
