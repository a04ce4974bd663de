package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyglass/pkg/models"
)

func postsWithViews(views ...int64) []models.PostRecord {
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	posts := make([]models.PostRecord, len(views))
	for i, v := range views {
		posts[i] = models.PostRecord{
			MessageID:   int64(i + 1),
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
			Views:       v,
		}
	}
	return posts
}

func TestZScoreTrending_SingleOutlier(t *testing.T) {
	// mean 350, population std ~331.66; only the 1000-view post clears
	// z > 1.5 (z ~= 1.96).
	posts := postsWithViews(100, 200, 300, 1000, 150)

	trending := zScoreTrending(posts)
	require.Len(t, trending, 1)
	assert.Equal(t, int64(1000), trending[0].Views)
	assert.InDelta(t, 1.96, trending[0].TrendScore, 0.01)
}

func TestZScoreTrending_ZeroVariance(t *testing.T) {
	trending := zScoreTrending(postsWithViews(500, 500, 500, 500, 500))
	assert.Empty(t, trending)
}

func TestZScoreTrending_SortedByScore(t *testing.T) {
	posts := postsWithViews(10, 10, 10, 10, 10, 10, 10, 10, 900, 1200)

	trending := zScoreTrending(posts)
	require.Len(t, trending, 2)
	assert.Equal(t, int64(1200), trending[0].Views)
	assert.Equal(t, int64(900), trending[1].Views)
	assert.Greater(t, trending[0].TrendScore, trending[1].TrendScore)
}

func TestEWMATrending_SpikeDetected(t *testing.T) {
	// Input is most-recent-first; chronologically 100, 110, 105, 400.
	// The 400-view post spikes against an EWMA near 105.
	posts := postsWithViews(400, 105, 110, 100)

	trending := ewmaTrending(posts)
	require.Len(t, trending, 1)
	assert.Equal(t, int64(400), trending[0].Views)
	assert.Greater(t, trending[0].TrendScore, spikeRatioThreshold)
}

func TestEWMATrending_OldestNeverFlagged(t *testing.T) {
	// The oldest post seeds the average, so even a huge first value is
	// never itself a spike.
	posts := postsWithViews(100, 100, 10000)

	trending := ewmaTrending(posts)
	for _, p := range trending {
		assert.NotEqual(t, int64(10000), p.Views)
	}
}

func TestEWMATrending_ZeroViewBaseline(t *testing.T) {
	// A zero-view history floors the baseline to 1 instead of dividing
	// by zero.
	posts := postsWithViews(50, 0, 0)

	trending := ewmaTrending(posts)
	require.Len(t, trending, 1)
	assert.Equal(t, int64(50), trending[0].Views)
}

func TestEWMATrending_Empty(t *testing.T) {
	assert.Nil(t, ewmaTrending(nil))
}
