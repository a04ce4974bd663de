package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the channel analytics service
type Metrics struct {
	FusionQueries    *prometheus.CounterVec   // query_type, status
	QueryDuration    *prometheus.HistogramVec // query_type
	AnomalySignals   *prometheus.CounterVec   // metric, severity
	ReportsGenerated *prometheus.CounterVec   // status
	SweepDuration    *prometheus.HistogramVec // channel
}

// ObserveQuery records one fusion query outcome. Nil-safe so the services
// can run without metrics in tests.
func (m *Metrics) ObserveQuery(queryType, status string, start time.Time) {
	if m == nil {
		return
	}
	m.FusionQueries.WithLabelValues(queryType, status).Inc()
	m.QueryDuration.WithLabelValues(queryType).Observe(time.Since(start).Seconds())
}

// CountSignal records one detected anomaly signal.
func (m *Metrics) CountSignal(metric, severity string) {
	if m == nil {
		return
	}
	m.AnomalySignals.WithLabelValues(metric, severity).Inc()
}

// CountReport records one assembled anomaly report.
func (m *Metrics) CountReport(status string) {
	if m == nil {
		return
	}
	m.ReportsGenerated.WithLabelValues(status).Inc()
}

// ObserveSweep records the duration of one scheduled anomaly sweep.
func (m *Metrics) ObserveSweep(channel string, start time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
}
