package fusion

import (
	"sort"

	"spyglass/pkg/models"
)

// Trending detection methods.
const (
	TrendMethodZScore = "zscore"
	TrendMethodEWMA   = "ewma"
)

const (
	trendingSampleLimit = 100
	minTrendingSample   = 3
	maxTrendingPosts    = 10

	zScoreThreshold     = 1.5
	spikeRatioThreshold = 1.5
	ewmaAlpha           = 0.3
)

// zScoreTrending keeps posts whose view count sits more than 1.5 standard
// deviations above the sample mean. A zero-variance sample gets its std
// floored to 1, which flags nothing but cannot divide by zero.
func zScoreTrending(posts []models.PostRecord) []models.PostRecord {
	views := make([]float64, len(posts))
	for i, p := range posts {
		views[i] = float64(p.Views)
	}
	mean, std := meanStd(views)
	if std == 0 {
		std = 1
	}

	var trending []models.PostRecord
	for i, p := range posts {
		z := (views[i] - mean) / std
		if z > zScoreThreshold {
			p.TrendScore = round2(z)
			trending = append(trending, p)
		}
	}
	sortByTrendScore(trending)
	return trending
}

// ewmaTrending walks posts oldest-first, comparing each view count against
// an exponentially weighted average of everything published before it.
// The oldest post seeds the average and is itself never flagged.
func ewmaTrending(recentFirst []models.PostRecord) []models.PostRecord {
	if len(recentFirst) == 0 {
		return nil
	}

	chronological := make([]models.PostRecord, len(recentFirst))
	for i, p := range recentFirst {
		chronological[len(recentFirst)-1-i] = p
	}

	ewma := float64(chronological[0].Views)
	var trending []models.PostRecord
	for _, p := range chronological[1:] {
		baseline := ewma
		if baseline < 1 {
			baseline = 1
		}
		ratio := float64(p.Views) / baseline
		if ratio > spikeRatioThreshold {
			p.TrendScore = round2(ratio)
			trending = append(trending, p)
		}
		ewma = ewmaAlpha*float64(p.Views) + (1-ewmaAlpha)*ewma
	}
	sortByTrendScore(trending)
	return trending
}

func sortByTrendScore(posts []models.PostRecord) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].TrendScore > posts[j].TrendScore
	})
}
