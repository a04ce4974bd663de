package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

const (
	maxRootCauses = 5

	contentLengthRecentPosts = 5
	contentLengthPriorPosts  = 10
	contentLengthThreshold   = 0.30

	postingFrequencyMinPosts  = 20
	postingFrequencyThreshold = 0.40

	audienceGrowthMinPoints = 7
	audienceGrowthThreshold = 0.05
)

// RootCauseAnalyzer proposes ranked hypotheses for a detected anomaly by
// correlating content, timing, audience-growth and seasonal dimensions of
// the historical context.
type RootCauseAnalyzer struct {
	logger logging.Logger
	now    func() time.Time
}

// NewRootCauseAnalyzer creates a root-cause analyzer.
func NewRootCauseAnalyzer(logger logging.Logger) *RootCauseAnalyzer {
	return &RootCauseAnalyzer{logger: logger, now: time.Now}
}

// Healthy reports whether the analyzer is usable.
func (a *RootCauseAnalyzer) Healthy() bool { return a != nil }

// Analyze returns up to five candidate causes sorted by confidence
// descending. An internal failure yields the single unknown/0.1 fallback
// cause instead of propagating.
func (a *RootCauseAnalyzer) Analyze(channel string, anomaly models.AnomalySignal, hctx models.HistoricalContext) (causes []models.RootCause) {
	defer func() {
		if r := recover(); r != nil {
			if a.logger != nil {
				a.logger.WithFields(logging.Fields{
					"channel": channel,
					"metric":  anomaly.Metric,
					"panic":   fmt.Sprint(r),
				}).Error("Root cause analysis failed")
			}
			causes = []models.RootCause{{
				Category:    models.CauseUnknown,
				Description: "Analysis failed internally; manual investigation required",
				Confidence:  0.1,
			}}
		}
	}()

	if c := a.contentLengthCheck(hctx.Posts); c != nil {
		causes = append(causes, *c)
	}
	if c := a.postingFrequencyCheck(hctx.Posts); c != nil {
		causes = append(causes, *c)
	}
	causes = append(causes, models.RootCause{
		Category:    models.CausePostingSchedule,
		Description: "Posting schedule shifts may contribute; timestamp-level schedule analysis needs finer-grained data",
		Confidence:  0.6,
	})
	if c := a.audienceGrowthCheck(hctx.DailyMetrics); c != nil {
		causes = append(causes, *c)
	}
	causes = append(causes, a.externalCauses(anomaly)...)

	sort.SliceStable(causes, func(i, j int) bool {
		return causes[i].Confidence > causes[j].Confidence
	})
	if len(causes) > maxRootCauses {
		causes = causes[:maxRootCauses]
	}
	return causes
}

// contentLengthCheck compares the average title length of the five most
// recent posts against the prior ten.
func (a *RootCauseAnalyzer) contentLengthCheck(posts []models.PostRecord) *models.RootCause {
	if len(posts) < contentLengthRecentPosts+contentLengthPriorPosts {
		return nil
	}
	recent := avgTitleLen(posts[:contentLengthRecentPosts])
	prior := avgTitleLen(posts[contentLengthRecentPosts : contentLengthRecentPosts+contentLengthPriorPosts])
	if prior == 0 {
		return nil
	}
	change := (recent - prior) / prior
	if math.Abs(change) <= contentLengthThreshold {
		return nil
	}

	direction := "longer"
	if change < 0 {
		direction = "shorter"
	}
	return &models.RootCause{
		Category:    models.CauseContentLength,
		Description: fmt.Sprintf("Recent post titles are %.0f%% %s than the prior baseline", math.Abs(change)*100, direction),
		Confidence:  0.7,
		Deltas: map[string]float64{
			"recent_avg_length": recent,
			"prior_avg_length":  prior,
			"change_pct":        change * 100,
		},
	}
}

// postingFrequencyCheck compares the posting rate of the five most recent
// posts against the rest of the lookback window. Needs at least 20 posts
// with usable publish dates.
func (a *RootCauseAnalyzer) postingFrequencyCheck(posts []models.PostRecord) *models.RootCause {
	dated := make([]models.PostRecord, 0, len(posts))
	for _, p := range posts {
		if !p.PublishedAt.IsZero() {
			dated = append(dated, p)
		}
	}
	if len(dated) < postingFrequencyMinPosts {
		return nil
	}

	recentRate := postsPerDay(dated[:contentLengthRecentPosts])
	priorRate := postsPerDay(dated[contentLengthRecentPosts:])
	if priorRate == 0 {
		return nil
	}
	change := (recentRate - priorRate) / priorRate
	if math.Abs(change) <= postingFrequencyThreshold {
		return nil
	}

	direction := "increased"
	if change < 0 {
		direction = "decreased"
	}
	return &models.RootCause{
		Category:    models.CausePostingFrequency,
		Description: fmt.Sprintf("Posting frequency %s by %.0f%% versus the prior window", direction, math.Abs(change)*100),
		Confidence:  0.8,
		Deltas: map[string]float64{
			"recent_posts_per_day": recentRate,
			"prior_posts_per_day":  priorRate,
			"change_pct":           change * 100,
		},
	}
}

// audienceGrowthCheck flags sustained follower growth or decline above 5%
// mean daily rate. Needs at least seven daily points.
func (a *RootCauseAnalyzer) audienceGrowthCheck(daily map[string][]models.SeriesPoint) *models.RootCause {
	points := daily[models.MetricFollowers]
	if len(points) == 0 {
		points = daily[models.MetricSubscribers]
	}
	if len(points) < audienceGrowthMinPoints {
		return nil
	}

	var rates []float64
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if prev <= 0 {
			continue
		}
		rates = append(rates, (points[i].Value-prev)/prev)
	}
	if len(rates) == 0 {
		return nil
	}
	meanRate := mean(rates)
	if math.Abs(meanRate) <= audienceGrowthThreshold {
		return nil
	}

	trend := "positive"
	if meanRate < 0 {
		trend = "negative"
	}
	return &models.RootCause{
		Category:    models.CauseAudienceGrowth,
		Description: fmt.Sprintf("Audience is in a %s growth phase (%.1f%% mean daily change), shifting engagement baselines", trend, meanRate*100),
		Confidence:  0.7,
		Deltas:      map[string]float64{"mean_daily_growth_pct": meanRate * 100},
	}
}

// externalCauses always includes the generic external-factors hypothesis,
// plus a seasonal one during the December/January holiday period.
func (a *RootCauseAnalyzer) externalCauses(anomaly models.AnomalySignal) []models.RootCause {
	causes := []models.RootCause{{
		Category:    models.CauseExternalFactors,
		Description: fmt.Sprintf("External events or platform changes may have influenced %s", anomaly.Metric),
		Confidence:  0.4,
	}}
	month := a.now().Month()
	if month == time.December || month == time.January {
		causes = append(causes, models.RootCause{
			Category:    models.CauseSeasonal,
			Description: "Holiday-season audience behavior typically shifts channel metrics in this period",
			Confidence:  0.6,
		})
	}
	return causes
}

func avgTitleLen(posts []models.PostRecord) float64 {
	if len(posts) == 0 {
		return 0
	}
	var total int
	for _, p := range posts {
		total += len([]rune(p.Title))
	}
	return float64(total) / float64(len(posts))
}

// postsPerDay computes the posting rate across a most-recent-first slice.
func postsPerDay(posts []models.PostRecord) float64 {
	if len(posts) < 2 {
		return 0
	}
	newest := posts[0].PublishedAt
	oldest := posts[len(posts)-1].PublishedAt
	span := newest.Sub(oldest).Hours() / 24
	if span <= 0 {
		return 0
	}
	return float64(len(posts)) / span
}
