package anomaly

import (
	"fmt"
	"math"
	"sort"

	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

const topCausesForRecommendations = 3

// Recommender turns root causes and severity into prioritized, timelined
// remediation actions, and estimates overall analysis confidence.
type Recommender struct {
	logger logging.Logger
}

// NewRecommender creates a recommender.
func NewRecommender(logger logging.Logger) *Recommender {
	return &Recommender{logger: logger}
}

// Healthy reports whether the recommender is usable.
func (r *Recommender) Healthy() bool { return r != nil }

// Recommend builds the action list: an emergency response for high and
// critical severities, one templated action per top-3 root cause, and an
// always-present ongoing monitoring item. Sorted immediate first. Any
// internal failure degrades to a single manual-review action.
func (r *Recommender) Recommend(anomaly models.AnomalySignal, causes []models.RootCause, severity models.SeverityAssessment) (recs []models.Recommendation) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.WithFields(logging.Fields{
					"metric": anomaly.Metric,
					"panic":  fmt.Sprint(rec),
				}).Error("Recommendation generation failed")
			}
			recs = []models.Recommendation{{
				Priority:        models.PriorityHigh,
				Category:        "manual_review",
				Action:          "Review the anomaly manually; automated recommendation generation failed",
				Timeline:        "As soon as possible",
				ExpectedOutcome: "Human-validated remediation plan",
			}}
		}
	}()

	if severity.Overall == models.SeverityCritical || severity.Overall == models.SeverityHigh {
		recs = append(recs, models.Recommendation{
			Priority:        models.PriorityImmediate,
			Category:        "emergency_response",
			Action:          fmt.Sprintf("Investigate the %s anomaly now: verify data collection, recent posts and platform status", anomaly.Metric),
			Timeline:        "Within 24 hours",
			ExpectedOutcome: "Confirmed or ruled-out incident affecting " + anomaly.Metric,
		})
	}

	top := causes
	if len(top) > topCausesForRecommendations {
		top = top[:topCausesForRecommendations]
	}
	for _, cause := range top {
		if rec, ok := causeRecommendation(cause); ok {
			recs = append(recs, rec)
		}
	}

	recs = append(recs, models.Recommendation{
		Priority:        models.PriorityOngoing,
		Category:        "monitoring",
		Action:          "Keep anomaly detection running on views, engagement and growth, and review weekly trend summaries",
		Timeline:        "Continuous",
		ExpectedOutcome: "Early warning on recurring or compounding anomalies",
	})

	sort.SliceStable(recs, func(i, j int) bool {
		return priorityRank(recs[i].Priority) > priorityRank(recs[j].Priority)
	})
	return recs
}

func causeRecommendation(cause models.RootCause) (models.Recommendation, bool) {
	switch cause.Category {
	case models.CauseContentLength:
		return models.Recommendation{
			Priority:        models.PriorityHigh,
			Category:        "content_optimization",
			Action:          "A/B test title lengths against the prior baseline and converge on the better-performing range",
			Timeline:        "Next 5-10 posts",
			ExpectedOutcome: "Title format realigned with audience preference",
		}, true
	case models.CausePostingFrequency:
		return models.Recommendation{
			Priority:        models.PriorityHigh,
			Category:        "schedule_optimization",
			Action:          "Return posting cadence to the historical rate and change it gradually if a new cadence is intended",
			Timeline:        "Next 2 weeks",
			ExpectedOutcome: "Stable per-post reach at a sustainable cadence",
		}, true
	case models.CausePostingSchedule:
		return models.Recommendation{
			Priority:        models.PriorityMedium,
			Category:        "timing_optimization",
			Action:          "Collect per-post publish-time performance and shift posts toward the highest-engagement hours",
			Timeline:        "Next 30 days",
			ExpectedOutcome: "Posts land when the audience is most active",
		}, true
	case models.CauseExternalFactors:
		return models.Recommendation{
			Priority:        models.PriorityMedium,
			Category:        "market_analysis",
			Action:          "Review competitor channels, platform announcements and news cycles overlapping the anomaly window",
			Timeline:        "Next 7 days",
			ExpectedOutcome: "External drivers confirmed or excluded",
		}, true
	case models.CauseAudienceGrowth:
		return models.Recommendation{
			Priority:        models.PriorityMedium,
			Category:        "audience_retention",
			Action:          "Survey or segment the newest follower cohort and adjust content mix toward what retains them",
			Timeline:        "Next 30 days",
			ExpectedOutcome: "Engagement baselines stabilized through the growth phase",
		}, true
	default:
		return models.Recommendation{}, false
	}
}

func priorityRank(priority string) int {
	switch priority {
	case models.PriorityImmediate:
		return 4
	case models.PriorityHigh:
		return 3
	case models.PriorityMedium:
		return 2
	case models.PriorityLow:
		return 1
	default: // ongoing
		return 0
	}
}

// Confidence blends data availability and signal strength into [0,1]:
// 0.3 for post history, 0.2 for daily metrics, up to 0.3 from mean
// root-cause confidence, and 0.1-0.2 from z-score magnitude.
func (r *Recommender) Confidence(anomaly models.AnomalySignal, hctx models.HistoricalContext, causes []models.RootCause) float64 {
	var confidence float64
	if len(hctx.Posts) > 0 {
		confidence += 0.3
	}
	if len(hctx.DailyMetrics) > 0 {
		confidence += 0.2
	}
	if len(causes) > 0 {
		var sum float64
		for _, c := range causes {
			sum += c.Confidence
		}
		confidence += 0.3 * (sum / float64(len(causes)))
	}

	switch z := math.Abs(anomaly.ZScore); {
	case z > 3:
		confidence += 0.2
	case z > 2:
		confidence += 0.15
	default:
		confidence += 0.1
	}
	return clamp01(confidence)
}
