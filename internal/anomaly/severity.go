package anomaly

import (
	"math"

	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

// SeverityAssessor scores an anomaly's magnitude and persistence into a
// severity tier with a business-impact description.
type SeverityAssessor struct {
	logger logging.Logger
}

// NewSeverityAssessor creates a severity assessor.
func NewSeverityAssessor(logger logging.Logger) *SeverityAssessor {
	return &SeverityAssessor{logger: logger}
}

// Healthy reports whether the assessor is usable.
func (s *SeverityAssessor) Healthy() bool { return s != nil }

const maxFactorScore = 3

// Assess computes the weighted factor score and maps it to a tier.
// The duration factor is held at 1: anomaly persistence over time is not
// yet measured, so magnitude carries the signal.
func (s *SeverityAssessor) Assess(anomaly models.AnomalySignal, hctx models.HistoricalContext) models.SeverityAssessment {
	magnitude := magnitudeFactor(anomaly.DeviationPct)
	duration := 1

	factors := map[string]int{
		"magnitude": magnitude,
		"duration":  duration,
	}
	score := float64(magnitude+duration) / float64(len(factors)*maxFactorScore) * 100

	tier := tierForScore(score)
	urgency := models.UrgencyModerate
	if tier == models.SeverityCritical || tier == models.SeverityHigh {
		urgency = models.UrgencyImmediate
	}

	return models.SeverityAssessment{
		Overall: tier,
		Score:   score,
		Factors: factors,
		Impact:  impactText(tier, anomaly.Metric),
		Urgency: urgency,
	}
}

func magnitudeFactor(deviationPct float64) int {
	abs := math.Abs(deviationPct)
	switch {
	case abs > 50:
		return 3
	case abs > 25:
		return 2
	case abs > 10:
		return 1
	default:
		return 0
	}
}

func tierForScore(score float64) string {
	switch {
	case score > 66:
		return models.SeverityCritical
	case score > 33:
		return models.SeverityHigh
	case score > 15:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// TierRank maps a severity tier to a sortable rank, critical highest.
// Unknown tiers rank below low so malformed input sinks, not floats.
func TierRank(tier string) int {
	switch tier {
	case models.SeverityCritical:
		return 4
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	default:
		return 0
	}
}

var impactTexts = map[string]string{
	models.SeverityCritical + "/" + models.MetricViews:      "Reach has collapsed or spiked far outside its normal band; content distribution is materially affected",
	models.SeverityCritical + "/" + models.MetricEngagement: "Audience interaction has shifted drastically; the channel's engagement economics are at risk",
	models.SeverityCritical + "/" + models.MetricGrowth:     "Follower dynamics have changed abruptly; retention or acquisition is materially affected",
	models.SeverityHigh + "/" + models.MetricViews:          "Post reach deviates strongly from baseline and will affect aggregate performance this period",
	models.SeverityHigh + "/" + models.MetricEngagement:     "Engagement deviates strongly from baseline; content resonance is shifting",
	models.SeverityHigh + "/" + models.MetricGrowth:         "Follower growth deviates strongly from its usual trajectory",
	models.SeverityMedium + "/" + models.MetricViews:        "Reach is drifting from its baseline; worth monitoring over the next few posts",
	models.SeverityMedium + "/" + models.MetricEngagement:   "Engagement is drifting from its baseline; worth monitoring",
	models.SeverityMedium + "/" + models.MetricGrowth:       "Follower growth is drifting from its usual trajectory",
}

func impactText(tier, metric string) string {
	if text, ok := impactTexts[tier+"/"+metric]; ok {
		return text
	}
	switch tier {
	case models.SeverityCritical, models.SeverityHigh:
		return "The " + metric + " metric deviates significantly from its historical baseline and needs prompt attention"
	default:
		return "The " + metric + " metric shows a modest deviation from its historical baseline"
	}
}
