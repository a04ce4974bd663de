// Package narrative turns anomaly analysis data into human-readable prose.
// The orchestrator consumes it through the Explainer interface and treats
// any failure as non-fatal, substituting a generic sentence.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spyglass/pkg/cache"
	"spyglass/pkg/llm"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

// Explainer produces explanation text for a detected anomaly.
type Explainer interface {
	ExplainAnomaly(ctx context.Context, channel string, signal models.AnomalySignal, causes []models.RootCause, severity models.SeverityAssessment, style string) (string, error)
}

const systemPrompt = "You are an analytics assistant for messaging-channel operators. " +
	"Explain the detected anomaly strictly from the data provided, in 2-4 sentences, " +
	"without inventing events or numbers. Match the requested tone."

// LLMExplainer generates explanations through an OpenAI-compatible
// endpoint. Responses are cached by anomaly signature because narrative
// generation is the slowest stage of a report.
type LLMExplainer struct {
	client *llm.Client
	cache  *cache.Cache
	logger logging.Logger
}

// NewLLMExplainer creates an LLM-backed explainer with a 30-minute
// explanation cache.
func NewLLMExplainer(client *llm.Client, logger logging.Logger) *LLMExplainer {
	return &LLMExplainer{
		client: client,
		cache:  cache.New(cache.Options{TTL: 30 * time.Minute, MaxEntries: 512}, cache.MetricsHooks{}),
		logger: logger,
	}
}

// ExplainAnomaly builds the prompt from the analysis results and returns
// the model's prose.
func (e *LLMExplainer) ExplainAnomaly(ctx context.Context, channel string, signal models.AnomalySignal, causes []models.RootCause, severity models.SeverityAssessment, style string) (string, error) {
	key := fmt.Sprintf("explain:%s:%s:%.2f:%s:%s", channel, signal.Metric, signal.ZScore, severity.Overall, style)

	value, ok, err := e.cache.Get(ctx, key, func(ctx context.Context, _ string) (interface{}, bool, error) {
		text, err := e.client.Complete(ctx, systemPrompt, buildPrompt(channel, signal, causes, severity, style))
		if err != nil {
			return nil, false, err
		}
		return text, true, nil
	})
	if err != nil {
		return "", fmt.Errorf("explain anomaly: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("explain anomaly: no explanation produced")
	}
	return value.(string), nil
}

func buildPrompt(channel string, signal models.AnomalySignal, causes []models.RootCause, severity models.SeverityAssessment, style string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: %s\n", channel)
	fmt.Fprintf(&sb, "Metric: %s, observed %.2f vs expected %.2f (z-score %.2f, deviation %.1f%%)\n",
		signal.Metric, signal.ObservedValue, signal.ExpectedValue, signal.ZScore, signal.DeviationPct)
	fmt.Fprintf(&sb, "Severity: %s (%s urgency). %s\n", severity.Overall, severity.Urgency, severity.Impact)
	if len(causes) > 0 {
		sb.WriteString("Likely causes:\n")
		for _, c := range causes {
			fmt.Fprintf(&sb, "- %s (confidence %.0f%%): %s\n", c.Category, c.Confidence*100, c.Description)
		}
	}
	if style == "" {
		style = "neutral"
	}
	fmt.Fprintf(&sb, "Tone: %s\n", style)
	return sb.String()
}

// FallbackText is the generic sentence the orchestrator substitutes when
// narrative generation is unavailable or fails.
func FallbackText(signal models.AnomalySignal, severity models.SeverityAssessment) string {
	direction := "above"
	if signal.ObservedValue < signal.ExpectedValue {
		direction = "below"
	}
	return fmt.Sprintf("The %s metric moved %.1f%% %s its expected level (%s severity); see root causes and recommendations for detail.",
		signal.Metric, absPct(signal.DeviationPct), direction, severity.Overall)
}

func absPct(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
