package main

import (
	"context"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"spyglass/internal/anomaly"
	"spyglass/internal/fusion"
	"spyglass/internal/gateway"
	"spyglass/internal/handlers"
	"spyglass/internal/metrics"
	"spyglass/internal/narrative"
	"spyglass/internal/scheduler"
	"spyglass/pkg/config"
	"spyglass/pkg/database"
	schemasql "spyglass/pkg/database/sql"
	"spyglass/pkg/llm"
	"spyglass/pkg/logging"
	"spyglass/pkg/monitoring"
	"spyglass/pkg/redis"
	"spyglass/pkg/server"
	"spyglass/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("spyglass")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Spyglass (Channel Analytics & Anomaly Detection)")

	// PostgreSQL holds post and edge state; ClickHouse holds time series
	dbURL := config.RequireEnv("DATABASE_URL")
	clickhouseHost := config.RequireEnv("CLICKHOUSE_HOST")
	clickhouseDB := config.RequireEnv("CLICKHOUSE_DB")
	clickhouseUser := config.RequireEnv("CLICKHOUSE_USER")
	clickhousePassword := config.RequireEnv("CLICKHOUSE_PASSWORD")

	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	postgres := database.MustConnect(dbConfig, logger)
	defer func() { _ = postgres.Close() }()

	chConfig := database.DefaultClickHouseConfig()
	chConfig.Addr = []string{clickhouseHost}
	chConfig.Database = clickhouseDB
	chConfig.Username = clickhouseUser
	chConfig.Password = clickhousePassword
	clickhouse := database.MustConnectClickHouse(chConfig, logger)
	defer func() { _ = clickhouse.Close() }()

	// Optional schema bootstrap for fresh deployments
	if config.GetEnvBool("SCHEMA_APPLY", false) {
		applySchema(postgres, clickhouse, logger)
	}

	// Optional Redis for sweep result publication
	var redisClient *goredis.Client
	if redisURL := config.GetEnv("REDIS_URL", ""); redisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := redis.NewClientFromURL(ctx, redisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, sweep results will not be published")
		} else {
			redisClient = client
			defer func() { _ = redisClient.Close() }()
		}
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("spyglass", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("spyglass", version.Version, version.GitCommit)

	healthChecker.AddCheck("postgres", monitoring.DatabaseHealthCheck(postgres))
	healthChecker.AddCheck("clickhouse", monitoring.ClickHouseHealthCheck(clickhouse))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":    dbURL,
		"CLICKHOUSE_HOST": clickhouseHost,
		"CLICKHOUSE_DB":   clickhouseDB,
	}))
	if redisClient != nil {
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	}

	// Custom service metrics
	serviceMetrics := &metrics.Metrics{
		FusionQueries:    metricsCollector.NewCounter("fusion_queries_total", "Fusion queries executed", []string{"query_type", "status"}),
		QueryDuration:    metricsCollector.NewHistogram("fusion_query_duration_seconds", "Fusion query duration", []string{"query_type"}, nil),
		AnomalySignals:   metricsCollector.NewCounter("anomaly_signals_total", "Anomaly signals detected", []string{"metric", "severity"}),
		ReportsGenerated: metricsCollector.NewCounter("anomaly_reports_total", "Anomaly reports generated", []string{"status"}),
		SweepDuration:    metricsCollector.NewHistogram("anomaly_sweep_duration_seconds", "Anomaly sweep duration", []string{"channel"}, nil),
	}

	// Repository adapters
	stateStore := gateway.NewPostgresStore(postgres)
	seriesStore := gateway.NewClickHouseStore(clickhouse)

	// Analytics fusion service
	fusionService := fusion.NewService(fusion.Deps{
		Posts:       stateStore,
		Series:      seriesStore,
		Edges:       stateStore,
		PostMetrics: seriesStore,
		RawStats:    seriesStore,
		Logger:      logger,
		Metrics:     serviceMetrics,
	})

	// Anomaly pipeline
	var explainer narrative.Explainer
	if llmConfig := llm.LoadConfig(); llmConfig.Enabled() {
		explainer = narrative.NewLLMExplainer(llm.NewClient(llmConfig), logger)
		logger.WithField("model", llmConfig.Model).Info("Narrative explainer enabled")
	} else {
		logger.Info("No LLM endpoint configured, anomaly reports use fallback text")
	}

	orchestrator := anomaly.NewOrchestrator(anomaly.OrchestratorDeps{
		Contexts:    anomaly.NewContextBuilder(stateStore, seriesStore, logger),
		Detector:    anomaly.NewDetector(stateStore, seriesStore, logger, serviceMetrics),
		RootCauses:  anomaly.NewRootCauseAnalyzer(logger),
		Severity:    anomaly.NewSeverityAssessor(logger),
		Recommender: anomaly.NewRecommender(logger),
		Explainer:   explainer,
		Logger:      logger,
		Metrics:     serviceMetrics,
	})

	// Periodic anomaly sweep over configured channels
	var sweepChannels []string
	if raw := config.GetEnv("SWEEP_CHANNELS", ""); raw != "" {
		for _, ch := range strings.Split(raw, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				sweepChannels = append(sweepChannels, ch)
			}
		}
	}
	if len(sweepChannels) > 0 {
		interval := time.Duration(config.GetEnvInt("SWEEP_INTERVAL_MINUTES", 15)) * time.Minute
		var sweepRedis goredis.UniversalClient
		if redisClient != nil {
			sweepRedis = redisClient
		}
		sweeper := scheduler.NewScheduler(orchestrator, sweepRedis, sweepChannels, interval, logger, serviceMetrics)
		sweeper.Start()
		defer sweeper.Stop()
	} else {
		logger.Info("SWEEP_CHANNELS not set, periodic anomaly sweep disabled")
	}

	// HTTP surface: health/metrics plus the read-only analytics API
	router := server.SetupServiceRouter(logger, "spyglass", healthChecker, metricsCollector)
	handlers.Init(fusionService, orchestrator, logger)
	handlers.RegisterRoutes(router)

	serverConfig := server.DefaultConfig("spyglass", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}

func applySchema(postgres database.PostgresConn, clickhouse database.ClickHouseConn, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgDDL, err := schemasql.PostgresStatements()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load relational schema")
	}
	if err := database.ApplySchema(ctx, postgres, pgDDL); err != nil {
		logger.WithError(err).Fatal("Failed to apply relational schema")
	}

	chDDL, err := schemasql.ClickHouseStatements()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load time-series schema")
	}
	if err := database.ApplySchema(ctx, clickhouse, chDDL); err != nil {
		logger.WithError(err).Fatal("Failed to apply time-series schema")
	}
	logger.Info("Schema applied")
}
