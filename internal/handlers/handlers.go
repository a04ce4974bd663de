// Package handlers exposes the fusion queries and the anomaly pipeline as
// a read-only HTTP API. Fusion queries never 500 on repository failure;
// degraded results carry a degradation marker instead.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spyglass/internal/anomaly"
	"spyglass/internal/fusion"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"
)

var (
	fusionService *fusion.Service
	orchestrator  *anomaly.Orchestrator
	logger        logging.Logger
)

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Init initializes the handlers package with its services.
func Init(svc *fusion.Service, orch *anomaly.Orchestrator, log logging.Logger) {
	fusionService = svc
	orchestrator = orch
	logger = log
}

// RegisterRoutes attaches the analytics API to the router.
func RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	channels := api.Group("/channels/:channel")

	channels.GET("/overview", GetOverview)
	channels.GET("/growth", GetGrowth)
	channels.GET("/reach", GetReach)
	channels.GET("/top-posts", GetTopPosts)
	channels.GET("/sources", GetSources)
	channels.GET("/trending", GetTrending)
	channels.GET("/last-updated", GetLastUpdated)
	channels.GET("/anomalies", DetectAnomalies)
	channels.POST("/anomalies/reports", AnalyzeAnomalies)

	api.GET("/pipeline/health", GetPipelineHealth)
}

// parseWindow reads start_time/end_time query parameters, defaulting to
// the last 7 days.
func parseWindow(c *gin.Context) (models.TimeWindow, bool) {
	startStr := c.DefaultQuery("start_time", time.Now().AddDate(0, 0, -7).Format(time.RFC3339))
	endStr := c.DefaultQuery("end_time", time.Now().Format(time.RFC3339))

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid start_time format. Use RFC3339 format."})
		return models.TimeWindow{}, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid end_time format. Use RFC3339 format."})
		return models.TimeWindow{}, false
	}

	window := models.TimeWindow{From: start, To: end}
	if err := window.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return models.TimeWindow{}, false
	}
	return window, true
}

// GetOverview returns the channel's aggregated posting summary.
func GetOverview(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	summary, deg := fusionService.GetOverview(c.Request.Context(), c.Param("channel"), window)
	c.JSON(http.StatusOK, gin.H{"overview": summary, "degradation": deg})
}

// GetGrowth returns day-over-day follower deltas.
func GetGrowth(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	series, deg := fusionService.GetGrowth(c.Request.Context(), c.Param("channel"), window)
	c.JSON(http.StatusOK, gin.H{"series": series, "degradation": deg})
}

// GetReach returns average views per post per calendar day.
func GetReach(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	series, deg := fusionService.GetReach(c.Request.Context(), c.Param("channel"), window)
	c.JSON(http.StatusOK, gin.H{"series": series, "degradation": deg})
}

// GetTopPosts returns the channel's highest-viewed posts.
func GetTopPosts(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	posts, deg := fusionService.GetTopPosts(c.Request.Context(), c.Param("channel"), window, limit)
	c.JSON(http.StatusOK, gin.H{"posts": posts, "degradation": deg})
}

// GetSources returns the heaviest mention or forward edges.
func GetSources(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	kind := models.EdgeKind(c.DefaultQuery("kind", string(models.EdgeMention)))
	if kind != models.EdgeMention && kind != models.EdgeForward {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid kind. Use mention or forward."})
		return
	}

	edges, deg := fusionService.GetSources(c.Request.Context(), c.Param("channel"), window, kind)
	c.JSON(http.StatusOK, gin.H{"edges": edges, "degradation": deg})
}

// GetTrending returns statistically trending posts for the channel.
func GetTrending(c *gin.Context) {
	method := c.DefaultQuery("method", fusion.TrendMethodZScore)
	if method != fusion.TrendMethodZScore && method != fusion.TrendMethodEWMA {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid method. Use zscore or ewma."})
		return
	}
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "48"))

	posts, deg := fusionService.GetTrending(c.Request.Context(), c.Param("channel"), models.TimeWindow{}, method, hours)
	c.JSON(http.StatusOK, gin.H{"posts": posts, "method": method, "degradation": deg})
}

// GetLastUpdated returns the newest data timestamp across all sources.
func GetLastUpdated(c *gin.Context) {
	ts, deg := fusionService.GetLastUpdatedAt(c.Request.Context(), c.Param("channel"))
	c.JSON(http.StatusOK, gin.H{"last_updated_at": ts, "degradation": deg})
}

// DetectAnomalies runs outlier detection and returns the raw signals.
func DetectAnomalies(c *gin.Context) {
	opts := anomaly.DetectOptions{}
	if raw := c.Query("metrics"); raw != "" {
		opts.Metrics = strings.Split(raw, ",")
	}
	if raw := c.Query("sensitivity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid sensitivity. Must be a positive number."})
			return
		}
		opts.Sensitivity = v
	}
	if raw := c.Query("lookback_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid lookback_days. Must be a positive integer."})
			return
		}
		opts.LookbackDays = v
	}

	signals := orchestrator.DetectPerformanceAnomalies(c.Request.Context(), c.Param("channel"), opts)
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

// AnalyzeAnomalies runs the full pipeline and returns a report per signal.
func AnalyzeAnomalies(c *gin.Context) {
	style := c.DefaultQuery("style", "")
	reports := orchestrator.AnalyzeChannel(c.Request.Context(), c.Param("channel"), anomaly.DetectOptions{}, style)

	if logger != nil {
		logger.WithFields(logging.Fields{
			"channel": c.Param("channel"),
			"reports": len(reports),
		}).Info("Anomaly analysis requested")
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// GetPipelineHealth returns per-stage pipeline health.
func GetPipelineHealth(c *gin.Context) {
	health := orchestrator.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
