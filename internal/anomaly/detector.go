// Package anomaly implements the four-stage anomaly pipeline: statistical
// detection, root-cause analysis, severity assessment and remediation
// recommendation, coordinated by the Orchestrator.
package anomaly

import (
	"context"
	"math"
	"sort"
	"time"

	"spyglass/internal/gateway"
	"spyglass/internal/metrics"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

const (
	defaultSensitivity  = 2.0
	defaultLookbackDays = 30
	detectionPostLimit  = 50
	minSampleSize       = 5
)

// DetectOptions tunes one detection run. Zero values take defaults:
// all three metrics, sensitivity 2.0, 30-day lookback.
type DetectOptions struct {
	Metrics      []string
	Sensitivity  float64
	LookbackDays int
}

func (o DetectOptions) withDefaults() DetectOptions {
	if len(o.Metrics) == 0 {
		o.Metrics = []string{models.MetricViews, models.MetricEngagement, models.MetricGrowth}
	}
	if o.Sensitivity <= 0 {
		o.Sensitivity = defaultSensitivity
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = defaultLookbackDays
	}
	return o
}

// Detector extracts statistical outlier signals per metric. It never looks
// at causes or recommendations; signal extraction is its only job.
type Detector struct {
	posts   gateway.PostRepo
	series  gateway.DailySeriesRepo
	logger  logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDetector creates a detection service over the given repositories.
func NewDetector(posts gateway.PostRepo, series gateway.DailySeriesRepo, logger logging.Logger, m *metrics.Metrics) *Detector {
	return &Detector{posts: posts, series: series, logger: logger, metrics: m, now: time.Now}
}

// Healthy reports whether the detector has its required repositories.
func (d *Detector) Healthy() bool {
	return d.posts != nil && d.series != nil
}

// Detect runs outlier detection for each requested metric over the
// lookback window and returns signals ordered most severe, strongest
// first. A metric whose sample cannot be built is skipped, not fatal.
func (d *Detector) Detect(ctx context.Context, channel string, opts DetectOptions) []models.AnomalySignal {
	opts = opts.withDefaults()
	now := d.now()
	window := models.TimeWindow{From: now.AddDate(0, 0, -opts.LookbackDays), To: now}

	var signals []models.AnomalySignal
	for _, metric := range opts.Metrics {
		sample, err := d.sample(ctx, channel, metric, window)
		if err != nil {
			if d.logger != nil {
				d.logger.WithError(err).WithFields(logging.Fields{
					"channel": channel,
					"metric":  metric,
				}).Warn("Anomaly sample unavailable")
			}
			continue
		}
		for _, sig := range zScoreSignals(metric, sample, opts.Sensitivity, now) {
			d.metrics.CountSignal(sig.Metric, sig.Severity)
			signals = append(signals, sig)
		}
	}

	sort.SliceStable(signals, func(i, j int) bool {
		ri, rj := TierRank(signals[i].Severity), TierRank(signals[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return math.Abs(signals[i].ZScore) > math.Abs(signals[j].ZScore)
	})
	return signals
}

// sample builds the per-metric value series the z-test runs over.
func (d *Detector) sample(ctx context.Context, channel, metric string, window models.TimeWindow) ([]float64, error) {
	switch metric {
	case models.MetricEngagement:
		posts, err := d.posts.TopPostsByViews(ctx, channel, window, detectionPostLimit)
		if err != nil {
			return nil, err
		}
		var sample []float64
		for _, p := range posts {
			if p.Views > 0 {
				sample = append(sample, p.EngagementRate())
			}
		}
		return sample, nil

	case models.MetricGrowth:
		points, err := d.followerSeries(ctx, channel, window)
		if err != nil {
			return nil, err
		}
		var sample []float64
		for i := 1; i < len(points); i++ {
			prev := points[i-1].Value
			if prev <= 0 {
				continue
			}
			sample = append(sample, (points[i].Value-prev)/prev)
		}
		return sample, nil

	default: // views
		posts, err := d.posts.TopPostsByViews(ctx, channel, window, detectionPostLimit)
		if err != nil {
			return nil, err
		}
		sample := make([]float64, len(posts))
		for i, p := range posts {
			sample[i] = float64(p.Views)
		}
		return sample, nil
	}
}

func (d *Detector) followerSeries(ctx context.Context, channel string, window models.TimeWindow) ([]models.SeriesPoint, error) {
	for _, metric := range []string{models.MetricFollowers, models.MetricSubscribers} {
		points, err := d.series.DailySeries(ctx, channel, metric, window)
		if err != nil {
			return nil, err
		}
		if len(points) > 0 {
			return points, nil
		}
	}
	return nil, nil
}

// zScoreSignals is the shared statistical test. It needs at least five
// samples, and a zero-variance sample means no anomaly is possible, so
// the whole metric is skipped rather than flagged.
func zScoreSignals(metric string, values []float64, sensitivity float64, detectedAt time.Time) []models.AnomalySignal {
	if len(values) < minSampleSize {
		return nil
	}
	m := mean(values)
	std := stdDev(values, m)
	if std == 0 {
		return nil
	}

	var signals []models.AnomalySignal
	for i, v := range values {
		z := (v - m) / std
		if math.Abs(z) <= sensitivity {
			continue
		}
		severity := models.SeverityMedium
		if math.Abs(z) > 1.5*sensitivity {
			severity = models.SeverityHigh
		}
		var deviationPct float64
		if m != 0 {
			deviationPct = (v - m) / math.Abs(m) * 100
		}
		signals = append(signals, models.AnomalySignal{
			Metric:        metric,
			ObservedValue: v,
			ExpectedValue: m,
			ZScore:        z,
			DeviationPct:  deviationPct,
			Severity:      severity,
			DetectedAt:    detectedAt,
			SampleIndex:   i,
			SampleSize:    len(values),
		})
	}
	return signals
}
