// Package metrics holds the prometheus collectors of trendscope.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Fetch attempt outcomes
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Run statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics contains the collection pipeline metrics
type Metrics struct {
	FetchAttempts   *prometheus.CounterVec
	KeywordsMissing prometheus.Counter
	RunDuration     prometheus.Histogram
	Runs            *prometheus.CounterVec
	LastRunTime     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the metrics and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trendscope",
				Subsystem: "provider",
				Name:      "fetch_attempts_total",
				Help:      "Keyword fetch attempts by outcome",
			},
			[]string{"outcome"},
		),
		KeywordsMissing: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "trendscope",
				Subsystem: "provider",
				Name:      "keywords_missing_total",
				Help:      "Keywords that produced no data after all attempts",
			},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "trendscope",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of a full collection run",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
			},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trendscope",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Collection runs by status",
			},
			[]string{"status"},
		),
		LastRunTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "trendscope",
				Subsystem: "pipeline",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FetchAttempts,
		m.KeywordsMissing,
		m.RunDuration,
		m.Runs,
		m.LastRunTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
