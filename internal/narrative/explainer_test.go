package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"spyglass/pkg/llm"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignal() models.AnomalySignal {
	return models.AnomalySignal{
		Metric:        "views",
		ObservedValue: 1000,
		ExpectedValue: 350,
		ZScore:        1.96,
		DeviationPct:  185.71,
		Severity:      "medium",
	}
}

func testSeverity() models.SeverityAssessment {
	return models.SeverityAssessment{
		Overall: "critical",
		Score:   66.7,
		Urgency: "immediate",
		Impact:  "Views spiked far beyond the channel norm.",
	}
}

func TestFallbackText(t *testing.T) {
	text := FallbackText(testSignal(), testSeverity())
	assert.Contains(t, text, "views")
	assert.Contains(t, text, "185.7%")
	assert.Contains(t, text, "above")
	assert.Contains(t, text, "critical severity")

	dip := testSignal()
	dip.ObservedValue = 100
	dip.DeviationPct = -71.4
	text = FallbackText(dip, testSeverity())
	assert.Contains(t, text, "below")
	assert.Contains(t, text, "71.4%")
}

func newExplainerServer(t *testing.T, reply string, calls *int64, lastPrompt *string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		var req struct {
			Messages []llm.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if lastPrompt != nil && len(req.Messages) == 2 {
			*lastPrompt = req.Messages[1].Content
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": reply}},
			},
		})
	}))
}

func TestExplainAnomaly(t *testing.T) {
	var calls int64
	var prompt string
	server := newExplainerServer(t, "The channel had an unusual surge in views.", &calls, &prompt)
	defer server.Close()

	client := llm.NewClient(llm.Config{APIURL: server.URL, Timeout: 5 * time.Second})
	explainer := NewLLMExplainer(client, logging.NewLogger())

	causes := []models.RootCause{
		{Category: "content_length_change", Confidence: 0.7, Description: "Recent titles are much longer."},
	}

	text, err := explainer.ExplainAnomaly(context.Background(), "durov", testSignal(), causes, testSeverity(), "casual")
	require.NoError(t, err)
	assert.Equal(t, "The channel had an unusual surge in views.", text)

	assert.Contains(t, prompt, "Channel: durov")
	assert.Contains(t, prompt, "views")
	assert.Contains(t, prompt, "content_length_change")
	assert.Contains(t, prompt, "Tone: casual")
}

func TestExplainAnomaly_CachesBySignature(t *testing.T) {
	var calls int64
	server := newExplainerServer(t, "cached explanation", &calls, nil)
	defer server.Close()

	client := llm.NewClient(llm.Config{APIURL: server.URL, Timeout: 5 * time.Second})
	explainer := NewLLMExplainer(client, logging.NewLogger())

	for i := 0; i < 3; i++ {
		text, err := explainer.ExplainAnomaly(context.Background(), "durov", testSignal(), nil, testSeverity(), "neutral")
		require.NoError(t, err)
		assert.Equal(t, "cached explanation", text)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	// A different severity is a different signature and misses the cache.
	other := testSeverity()
	other.Overall = "low"
	_, err := explainer.ExplainAnomaly(context.Background(), "durov", testSignal(), nil, other, "neutral")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestExplainAnomaly_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := llm.NewClient(llm.Config{APIURL: server.URL, Timeout: 5 * time.Second})
	explainer := NewLLMExplainer(client, logging.NewLogger())

	_, err := explainer.ExplainAnomaly(context.Background(), "durov", testSignal(), nil, testSeverity(), "neutral")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explain anomaly")
}

func TestBuildPrompt_DefaultsToneToNeutral(t *testing.T) {
	prompt := buildPrompt("durov", testSignal(), nil, testSeverity(), "")
	assert.Contains(t, prompt, "Tone: neutral")
}
