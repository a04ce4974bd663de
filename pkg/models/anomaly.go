package models

import "time"

// Severity tiers, ordered from least to most severe.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// AnomalySignal is a single statistical outlier flagged by detection.
// Signals are emitted only for |z-score| above the caller's sensitivity
// and sample sizes of at least five.
type AnomalySignal struct {
	Metric        string    `json:"metric"`
	ObservedValue float64   `json:"observed_value"`
	ExpectedValue float64   `json:"expected_value"`
	ZScore        float64   `json:"z_score"`
	DeviationPct  float64   `json:"deviation_pct"`
	Severity      string    `json:"severity"`
	DetectedAt    time.Time `json:"detected_at"`
	SampleIndex   int       `json:"sample_index"`
	SampleSize    int       `json:"sample_size"`
}

// Baselines holds summary statistics over a sample.
type Baselines struct {
	Avg    float64 `json:"avg"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
}

// HistoricalContext bundles everything one anomaly analysis needs. It is
// built once per orchestration call and read-only afterward; it must never
// be reused across calls.
type HistoricalContext struct {
	Channel string `json:"channel"`
	// Posts are ordered most-recent-first.
	Posts []PostRecord `json:"posts"`
	// DailyMetrics maps metric name to its ascending daily series.
	DailyMetrics map[string][]SeriesPoint `json:"daily_metrics"`
	Views        Baselines                `json:"views_baselines"`
	Engagement   *Baselines               `json:"engagement_baselines,omitempty"`
	GatheredAt   time.Time                `json:"gathered_at"`
}

// Root cause categories.
const (
	CauseContentLength    = "content_length"
	CausePostingFrequency = "posting_frequency"
	CausePostingSchedule  = "posting_schedule"
	CauseAudienceGrowth   = "audience_growth"
	CauseExternalFactors  = "external_factors"
	CauseSeasonal         = "seasonal"
	CauseUnknown          = "unknown"
)

// RootCause is one ranked hypothesis for why an anomaly occurred.
type RootCause struct {
	Category    string             `json:"category"`
	Description string             `json:"description"`
	Confidence  float64            `json:"confidence"`
	Deltas      map[string]float64 `json:"deltas,omitempty"`
}

// Urgency levels for severity assessments.
const (
	UrgencyImmediate = "immediate"
	UrgencyModerate  = "moderate"
)

// SeverityAssessment scores an anomaly's business impact.
type SeverityAssessment struct {
	Overall string         `json:"overall_severity"`
	Score   float64        `json:"severity_score"`
	Factors map[string]int `json:"factors"`
	Impact  string         `json:"impact"`
	Urgency string         `json:"urgency"`
}

// Recommendation priorities, highest first.
const (
	PriorityImmediate = "immediate"
	PriorityHigh      = "high"
	PriorityMedium    = "medium"
	PriorityLow       = "low"
	PriorityOngoing   = "ongoing"
)

// Recommendation is one prioritized, timelined remediation action.
type Recommendation struct {
	Priority        string `json:"priority"`
	Category        string `json:"category"`
	Action          string `json:"action"`
	Timeline        string `json:"timeline"`
	ExpectedOutcome string `json:"expected_outcome"`
}

// AnomalyReport is the orchestrator's assembled output. Error is populated
// on a best-effort report produced after a stage failure.
type AnomalyReport struct {
	ID              string             `json:"id"`
	Channel         string             `json:"channel"`
	Signal          AnomalySignal      `json:"anomaly_signal"`
	Explanation     string             `json:"explanation"`
	RootCauses      []RootCause        `json:"root_causes"`
	Severity        SeverityAssessment `json:"severity"`
	Recommendations []Recommendation   `json:"recommendations"`
	Confidence      float64            `json:"confidence"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`
	Error           string             `json:"error,omitempty"`
}
