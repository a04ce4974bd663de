package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyglass/pkg/models"
)

func TestRecommend_CriticalGetsEmergencyFirst(t *testing.T) {
	r := NewRecommender(nil)

	recs := r.Recommend(testSignal(), nil, models.SeverityAssessment{Overall: models.SeverityCritical})
	require.NotEmpty(t, recs)
	assert.Equal(t, "emergency_response", recs[0].Category)
	assert.Equal(t, models.PriorityImmediate, recs[0].Priority)
}

func TestRecommend_LowSeverityNoEmergency(t *testing.T) {
	r := NewRecommender(nil)

	recs := r.Recommend(testSignal(), nil, models.SeverityAssessment{Overall: models.SeverityLow})
	for _, rec := range recs {
		assert.NotEqual(t, "emergency_response", rec.Category)
	}
}

func TestRecommend_MonitoringAlwaysPresent(t *testing.T) {
	r := NewRecommender(nil)

	recs := r.Recommend(testSignal(), nil, models.SeverityAssessment{Overall: models.SeverityLow})
	require.NotEmpty(t, recs)
	assert.Equal(t, "monitoring", recs[len(recs)-1].Category)
	assert.Equal(t, models.PriorityOngoing, recs[len(recs)-1].Priority)
}

func TestRecommend_CauseMappings(t *testing.T) {
	r := NewRecommender(nil)

	tests := []struct {
		cause        string
		wantCategory string
	}{
		{cause: models.CauseContentLength, wantCategory: "content_optimization"},
		{cause: models.CausePostingFrequency, wantCategory: "schedule_optimization"},
		{cause: models.CausePostingSchedule, wantCategory: "timing_optimization"},
		{cause: models.CauseExternalFactors, wantCategory: "market_analysis"},
		{cause: models.CauseAudienceGrowth, wantCategory: "audience_retention"},
	}

	for _, tt := range tests {
		t.Run(tt.cause, func(t *testing.T) {
			recs := r.Recommend(testSignal(), []models.RootCause{{Category: tt.cause}},
				models.SeverityAssessment{Overall: models.SeverityMedium})

			categories := make([]string, len(recs))
			for i, rec := range recs {
				categories[i] = rec.Category
			}
			assert.Contains(t, categories, tt.wantCategory)
		})
	}
}

func TestRecommend_UnmappedCauseSkipped(t *testing.T) {
	r := NewRecommender(nil)

	recs := r.Recommend(testSignal(), []models.RootCause{{Category: models.CauseSeasonal}},
		models.SeverityAssessment{Overall: models.SeverityMedium})

	// Only the monitoring baseline remains.
	require.Len(t, recs, 1)
	assert.Equal(t, "monitoring", recs[0].Category)
}

func TestRecommend_TopThreeCausesOnly(t *testing.T) {
	r := NewRecommender(nil)
	causes := []models.RootCause{
		{Category: models.CausePostingFrequency},
		{Category: models.CauseContentLength},
		{Category: models.CausePostingSchedule},
		{Category: models.CauseAudienceGrowth}, // beyond top 3, must be ignored
	}

	recs := r.Recommend(testSignal(), causes, models.SeverityAssessment{Overall: models.SeverityMedium})
	for _, rec := range recs {
		assert.NotEqual(t, "audience_retention", rec.Category)
	}
}

func TestRecommend_SortedByPriority(t *testing.T) {
	r := NewRecommender(nil)
	causes := []models.RootCause{
		{Category: models.CausePostingSchedule}, // medium
		{Category: models.CauseContentLength},   // high
	}

	recs := r.Recommend(testSignal(), causes, models.SeverityAssessment{Overall: models.SeverityCritical})
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, priorityRank(recs[i-1].Priority), priorityRank(recs[i].Priority))
	}
}

func TestConfidence_Bounds(t *testing.T) {
	r := NewRecommender(nil)

	// Empty inputs still land inside [0,1].
	low := r.Confidence(models.AnomalySignal{}, models.HistoricalContext{}, nil)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.LessOrEqual(t, low, 1.0)
	assert.InDelta(t, 0.1, low, 0.001)

	// Rich inputs are clamped to 1.
	rich := r.Confidence(
		models.AnomalySignal{ZScore: 4.2},
		models.HistoricalContext{
			Posts:        viewPosts(100, 200, 300),
			DailyMetrics: map[string][]models.SeriesPoint{models.MetricFollowers: followerLevels(1, 2)},
		},
		[]models.RootCause{{Confidence: 1.0}, {Confidence: 0.9}},
	)
	assert.GreaterOrEqual(t, rich, 0.0)
	assert.LessOrEqual(t, rich, 1.0)
}

func TestConfidence_GrowsWithEvidence(t *testing.T) {
	r := NewRecommender(nil)
	sig := models.AnomalySignal{ZScore: 2.5}

	bare := r.Confidence(sig, models.HistoricalContext{}, nil)
	withPosts := r.Confidence(sig, models.HistoricalContext{Posts: viewPosts(1, 2)}, nil)
	withCauses := r.Confidence(sig, models.HistoricalContext{Posts: viewPosts(1, 2)},
		[]models.RootCause{{Confidence: 0.8}})

	assert.Greater(t, withPosts, bare)
	assert.Greater(t, withCauses, withPosts)
}
