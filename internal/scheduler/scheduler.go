package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"spyglass/internal/anomaly"
	"spyglass/internal/metrics"
	"spyglass/pkg/logging"
	"spyglass/pkg/models"
	"spyglass/pkg/redis"
)

const (
	defaultSweepInterval = 15 * time.Minute
	sweepRunTimeout      = 5 * time.Minute
	initialSweepDelay    = 10 * time.Second
	resultTTL            = time.Hour

	alertChannel = "spyglass:alerts"
)

// Scheduler runs the periodic anomaly sweep over a fixed set of channels.
// Each run detects anomalies per channel, produces full reports for any
// signals, and publishes the results to Redis for downstream consumers.
type Scheduler struct {
	orchestrator *anomaly.Orchestrator
	redis        goredis.UniversalClient
	alerts       *redis.TypedPubSub[models.AnomalyReport]
	channels     []string
	interval     time.Duration
	initialDelay time.Duration
	logger       logging.Logger
	metrics      *metrics.Metrics
	ticker       *time.Ticker
	stopChan     chan bool
}

// NewScheduler creates a scheduler for the given channels. Redis may be
// nil, in which case sweep results are only logged.
func NewScheduler(orchestrator *anomaly.Orchestrator, redisClient goredis.UniversalClient, channels []string, interval time.Duration, logger logging.Logger, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	s := &Scheduler{
		orchestrator: orchestrator,
		redis:        redisClient,
		channels:     channels,
		interval:     interval,
		initialDelay: initialSweepDelay,
		logger:       logger,
		metrics:      m,
		stopChan:     make(chan bool),
	}
	if redisClient != nil {
		s.alerts = redis.NewTypedPubSub[models.AnomalyReport](redisClient)
	}
	return s
}

// Start begins the periodic sweep.
func (s *Scheduler) Start() {
	s.logger.WithFields(logging.Fields{
		"interval": s.interval,
		"channels": len(s.channels),
	}).Info("Starting anomaly sweep scheduler")

	s.ticker = time.NewTicker(s.interval)
	go s.run()

	// Run an initial sweep shortly after startup so dashboards have data
	// without waiting a full interval. Stop cancels a pending initial sweep.
	go func() {
		select {
		case <-time.After(s.initialDelay):
			s.sweep()
		case <-s.stopChan:
		}
	}()
}

// Stop stops the sweep loop.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping anomaly sweep scheduler")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	close(s.stopChan)
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopChan:
			s.logger.Info("Stopping anomaly sweep runner")
			return
		}
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepRunTimeout)
	defer cancel()

	for _, channel := range s.channels {
		start := time.Now()
		reports := s.orchestrator.AnalyzeChannel(ctx, channel, anomaly.DetectOptions{}, "")
		s.metrics.ObserveSweep(channel, start)

		s.logger.WithFields(logging.Fields{
			"channel": channel,
			"reports": len(reports),
		}).Info("Anomaly sweep completed for channel")

		if err := s.publish(ctx, channel, reports); err != nil {
			s.logger.WithError(err).WithField("channel", channel).Warn("Failed to publish sweep results")
		}
	}
}

// TriggerSweep runs a sweep immediately, outside the schedule.
func (s *Scheduler) TriggerSweep(ctx context.Context) {
	for _, channel := range s.channels {
		start := time.Now()
		reports := s.orchestrator.AnalyzeChannel(ctx, channel, anomaly.DetectOptions{}, "")
		s.metrics.ObserveSweep(channel, start)
		if err := s.publish(ctx, channel, reports); err != nil {
			s.logger.WithError(err).WithField("channel", channel).Warn("Failed to publish sweep results")
		}
	}
}

func (s *Scheduler) publish(ctx context.Context, channel string, reports []models.AnomalyReport) error {
	if s.redis == nil {
		return nil
	}

	payload, err := json.Marshal(struct {
		Channel   string                 `json:"channel"`
		SweptAt   time.Time              `json:"swept_at"`
		Reports   []models.AnomalyReport `json:"reports"`
		Anomalies int                    `json:"anomalies"`
	}{
		Channel:   channel,
		SweptAt:   time.Now().UTC(),
		Reports:   reports,
		Anomalies: len(reports),
	})
	if err != nil {
		return fmt.Errorf("marshal sweep results: %w", err)
	}

	key := fmt.Sprintf("spyglass:sweep:%s", channel)
	if err := s.redis.Set(ctx, key, payload, resultTTL).Err(); err != nil {
		return fmt.Errorf("store sweep results: %w", err)
	}

	// High and critical reports also go out as alert notifications.
	for _, report := range reports {
		if report.Severity.Overall != models.SeverityHigh && report.Severity.Overall != models.SeverityCritical {
			continue
		}
		if err := s.alerts.Publish(ctx, alertChannel, report); err != nil {
			s.logger.WithError(err).WithField("channel", channel).Warn("Failed to publish anomaly alert")
		}
	}
	return nil
}
