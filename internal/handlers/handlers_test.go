package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spyglass/internal/anomaly"
	"spyglass/internal/fusion"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements every gateway port from canned data.
type fakeStore struct {
	posts  []models.PostRecord
	series map[string][]models.SeriesPoint
	edges  []models.EdgeCount
	latest *time.Time
}

func (f *fakeStore) CountPosts(ctx context.Context, channel string, window models.TimeWindow) (int64, error) {
	return int64(len(f.posts)), nil
}

func (f *fakeStore) SumViews(ctx context.Context, channel string, window models.TimeWindow) (int64, error) {
	var total int64
	for _, p := range f.posts {
		total += p.Views
	}
	return total, nil
}

func (f *fakeStore) TopPostsByViews(ctx context.Context, channel string, window models.TimeWindow, limit int) ([]models.PostRecord, error) {
	if limit > 0 && limit < len(f.posts) {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func (f *fakeStore) DailySeries(ctx context.Context, channel, metric string, window models.TimeWindow) ([]models.SeriesPoint, error) {
	return f.series[metric], nil
}

func (f *fakeStore) DailySeriesValue(ctx context.Context, channel, metric string, day time.Time) (*float64, error) {
	return nil, nil
}

func (f *fakeStore) LatestDay(ctx context.Context, channel string) (*time.Time, error) {
	return f.latest, nil
}

func (f *fakeStore) LatestSnapshotAt(ctx context.Context, channel string) (*time.Time, error) {
	return f.latest, nil
}

func (f *fakeStore) LastFetchedAt(ctx context.Context, channel string) (*time.Time, error) {
	return f.latest, nil
}

func (f *fakeStore) TopEdges(ctx context.Context, channel string, window models.TimeWindow, kind models.EdgeKind, limit int) ([]models.EdgeCount, error) {
	return f.edges, nil
}

func testStore() *fakeStore {
	now := time.Now().UTC()
	posts := make([]models.PostRecord, 0, 5)
	views := []int64{100, 200, 300, 1000, 150}
	for i, v := range views {
		posts = append(posts, models.PostRecord{
			MessageID:   int64(i + 1),
			PublishedAt: now.Add(-time.Duration(len(views)-i) * 6 * time.Hour),
			Views:       v,
			Title:       "post",
		})
	}
	latest := now.Add(-time.Hour)
	return &fakeStore{
		posts: posts,
		series: map[string][]models.SeriesPoint{
			models.MetricFollowers: {
				{Day: now.AddDate(0, 0, -2), Metric: models.MetricFollowers, Value: 4900},
				{Day: now.AddDate(0, 0, -1), Metric: models.MetricFollowers, Value: 5000},
			},
		},
		edges:  []models.EdgeCount{{Src: "other", Dst: "durov", Count: 12}},
		latest: &latest,
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	store := testStore()
	logger := logging.NewLogger()

	svc := fusion.NewService(fusion.Deps{
		Posts:       store,
		Series:      store,
		Edges:       store,
		PostMetrics: store,
		RawStats:    store,
		Logger:      logger,
	})
	orch := anomaly.NewOrchestrator(anomaly.OrchestratorDeps{
		Contexts:    anomaly.NewContextBuilder(store, store, logger),
		Detector:    anomaly.NewDetector(store, store, logger, nil),
		RootCauses:  anomaly.NewRootCauseAnalyzer(logger),
		Severity:    anomaly.NewSeverityAssessor(logger),
		Recommender: anomaly.NewRecommender(logger),
		Logger:      logger,
	})
	Init(svc, orch, logger)

	router := gin.New()
	RegisterRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetOverview(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/overview")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Overview    models.OverviewSummary `json:"overview"`
		Degradation fusion.Degradation     `json:"degradation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "durov", body.Overview.Channel)
	assert.Equal(t, int64(5), body.Overview.PostCount)
	assert.Equal(t, int64(1750), body.Overview.TotalViews)
	assert.InDelta(t, 350, body.Overview.AvgReach, 0.01)
	require.NotNil(t, body.Overview.FollowerCount)
	assert.Equal(t, int64(5000), *body.Overview.FollowerCount)
	assert.False(t, body.Degradation.Degraded)
}

func TestParseWindow_InvalidStartTime(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/overview?start_time=yesterday")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "start_time")
}

func TestParseWindow_FromAfterTo(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet,
		"/api/v1/channels/durov/growth?start_time=2024-03-08T00:00:00Z&end_time=2024-03-01T00:00:00Z")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "invalid time window")
}

func TestGetSources_InvalidKind(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/sources?kind=repost")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSources(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/sources?kind=forward")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Edges []models.EdgeCount `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Edges, 1)
	assert.Equal(t, int64(12), body.Edges[0].Count)
}

func TestGetTrending_InvalidMethod(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/trending?method=magic")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTrending(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/trending?method=zscore")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Method string              `json:"method"`
		Posts  []models.PostRecord `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "zscore", body.Method)
}

func TestGetLastUpdated(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/last-updated")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		LastUpdatedAt *time.Time `json:"last_updated_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.LastUpdatedAt)
}

func TestDetectAnomalies(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet,
		"/api/v1/channels/durov/anomalies?metrics=views&sensitivity=1.5")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Signals []models.AnomalySignal `json:"signals"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, models.MetricViews, body.Signals[0].Metric)
	assert.InDelta(t, 1000, body.Signals[0].ObservedValue, 0.01)
}

func TestDetectAnomalies_InvalidSensitivity(t *testing.T) {
	router := setupRouter(t)

	for _, q := range []string{"sensitivity=-1", "sensitivity=abc", "lookback_days=0", "lookback_days=soon"} {
		w := doRequest(router, http.MethodGet, "/api/v1/channels/durov/anomalies?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestAnalyzeAnomalies(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodPost,
		"/api/v1/channels/durov/anomalies/reports?style=casual")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Reports []models.AnomalyReport `json:"reports"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, len(body.Reports), body.Count)
	for _, report := range body.Reports {
		assert.NotEmpty(t, report.ID)
		assert.Equal(t, "durov", report.Channel)
		assert.NotEmpty(t, report.Explanation)
	}
}

func TestGetPipelineHealth(t *testing.T) {
	router := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/pipeline/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body anomaly.PipelineHealth
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Stages["detector"])
}
