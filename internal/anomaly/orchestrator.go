package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spyglass/internal/metrics"
	"spyglass/internal/narrative"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

// Orchestrator coordinates the full analysis pipeline: context gathering,
// detection, root cause analysis, severity assessment, recommendations and
// narrative generation. Every stage degrades independently so a partial
// report is always produced.
type Orchestrator struct {
	contexts    *ContextBuilder
	detector    *Detector
	rootCauses  *RootCauseAnalyzer
	severity    *SeverityAssessor
	recommender *Recommender
	explainer   narrative.Explainer
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// OrchestratorDeps bundles the pipeline stages for NewOrchestrator.
// Explainer may be nil when no LLM endpoint is configured.
type OrchestratorDeps struct {
	Contexts    *ContextBuilder
	Detector    *Detector
	RootCauses  *RootCauseAnalyzer
	Severity    *SeverityAssessor
	Recommender *Recommender
	Explainer   narrative.Explainer
	Logger      logging.Logger
	Metrics     *metrics.Metrics
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		contexts:    deps.Contexts,
		detector:    deps.Detector,
		rootCauses:  deps.RootCauses,
		severity:    deps.Severity,
		recommender: deps.Recommender,
		explainer:   deps.Explainer,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// AnalyzeAndExplainAnomaly runs the full pipeline for a single detected
// signal. It never returns an error: stage failures are logged and the
// report carries whatever was produced, with Error set on total failure.
func (o *Orchestrator) AnalyzeAndExplainAnomaly(ctx context.Context, channel string, signal models.AnomalySignal, style string) (report models.AnomalyReport) {
	report = models.AnomalyReport{
		ID:         uuid.NewString(),
		Channel:    channel,
		Signal:     signal,
		AnalyzedAt: o.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			if o.logger != nil {
				o.logger.WithFields(logging.Fields{
					"channel": channel,
					"metric":  signal.Metric,
					"panic":   fmt.Sprint(r),
				}).Error("Anomaly analysis panicked, returning partial report")
			}
			report.Error = fmt.Sprintf("analysis failed: %v", r)
			o.metrics.CountReport("error")
		}
	}()

	hctx := o.contexts.Gather(ctx, channel)

	report.RootCauses = o.rootCauses.Analyze(channel, signal, hctx)
	report.Severity = o.severity.Assess(signal, hctx)
	report.Recommendations = o.recommender.Recommend(signal, report.RootCauses, report.Severity)
	report.Confidence = o.recommender.Confidence(signal, hctx, report.RootCauses)
	report.Explanation = o.explain(ctx, channel, signal, report.RootCauses, report.Severity, style)

	o.metrics.CountReport("ok")
	return report
}

// DetectPerformanceAnomalies surfaces detection as an orchestrator
// operation so callers need only one entry point.
func (o *Orchestrator) DetectPerformanceAnomalies(ctx context.Context, channel string, opts DetectOptions) []models.AnomalySignal {
	return o.detector.Detect(ctx, channel, opts)
}

// AnalyzeChannel detects anomalies and produces a report for each one.
func (o *Orchestrator) AnalyzeChannel(ctx context.Context, channel string, opts DetectOptions, style string) []models.AnomalyReport {
	signals := o.detector.Detect(ctx, channel, opts)
	reports := make([]models.AnomalyReport, 0, len(signals))
	for _, sig := range signals {
		reports = append(reports, o.AnalyzeAndExplainAnomaly(ctx, channel, sig, style))
	}
	return reports
}

func (o *Orchestrator) explain(ctx context.Context, channel string, signal models.AnomalySignal, causes []models.RootCause, severity models.SeverityAssessment, style string) string {
	if o.explainer == nil {
		return narrative.FallbackText(signal, severity)
	}
	text, err := o.explainer.ExplainAnomaly(ctx, channel, signal, causes, severity, style)
	if err != nil {
		if o.logger != nil {
			o.logger.WithError(err).WithField("channel", channel).Warn("Narrative generation failed, using fallback text")
		}
		return narrative.FallbackText(signal, severity)
	}
	return text
}

// PipelineHealth reports per-stage health. Status is "healthy" when all
// stages are up and "degraded" when any is down; "unhealthy" is reserved
// for the health check itself failing.
type PipelineHealth struct {
	Status string          `json:"status"`
	Stages map[string]bool `json:"stages"`
}

func (o *Orchestrator) HealthCheck(ctx context.Context) (health PipelineHealth) {
	defer func() {
		if r := recover(); r != nil {
			if o.logger != nil {
				o.logger.WithField("panic", fmt.Sprint(r)).Error("Pipeline health check failed")
			}
			health = PipelineHealth{Status: "unhealthy", Stages: health.Stages}
		}
	}()

	health.Stages = map[string]bool{
		"context_builder":     o.contexts.Healthy(),
		"detector":            o.detector.Healthy(),
		"root_cause_analyzer": o.rootCauses.Healthy(),
		"severity_assessor":   o.severity.Healthy(),
		"recommender":         o.recommender.Healthy(),
	}
	health.Status = "healthy"
	for _, up := range health.Stages {
		if !up {
			health.Status = "degraded"
			break
		}
	}
	return health
}
