// Package telemetry records pipeline metrics. Collectors are exposed
// on the server's /metrics endpoint; event logging doubles as the
// operational trace for CLI runs.
package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/deepsearch/config"
)

var (
	searchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsearch_search_requests_total",
		Help: "Search queries executed, by provider and outcome.",
	}, []string{"provider", "outcome"})

	fetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsearch_fetch_requests_total",
		Help: "Page fetches, by outcome.",
	}, []string{"outcome"})

	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsearch_synthesis_requests_total",
		Help: "Answer synthesis calls, by outcome.",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deepsearch_stage_duration_seconds",
		Help:    "Wall-clock time spent per pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})
)

// Telemetry is a thin recording facade; a disabled instance is a
// logger-only no-op for metrics.
type Telemetry struct {
	enabled bool
	logger  *log.Logger
}

// NewTelemetry creates a telemetry recorder.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		enabled: cfg.Enabled,
		logger:  log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
	}
}

// RecordSearch records one search query's outcome.
func (t *Telemetry) RecordSearch(provider string, results int, err error) {
	if !t.enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if results == 0 {
		outcome = "empty"
	}
	searchRequests.WithLabelValues(provider, outcome).Inc()
}

// RecordFetch records one page fetch.
func (t *Telemetry) RecordFetch(ok bool) {
	if !t.enabled {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	fetchRequests.WithLabelValues(outcome).Inc()
}

// RecordSynthesis records an answer synthesis call.
func (t *Telemetry) RecordSynthesis(ok bool, duration time.Duration) {
	if !t.enabled {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	synthesisRequests.WithLabelValues(outcome).Inc()
	t.logger.Printf("synthesis: outcome=%s duration=%v", outcome, duration.Round(time.Millisecond))
}

// RecordStage records the duration of one pipeline stage.
func (t *Telemetry) RecordStage(stage string, duration time.Duration) {
	if !t.enabled {
		return
	}
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	t.logger.Printf("stage %s completed in %v", stage, duration.Round(time.Millisecond))
}
