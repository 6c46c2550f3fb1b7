// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
	OutcomeBlocked     = "blocked"
	OutcomeUnusable    = "unusable"
	OutcomeSkipped     = "skipped"
)

// Metrics holds the collectors of one process. All methods are safe to call
// on a nil *Metrics, so callers that run without metrics need no checks.
type Metrics struct {
	registry *prometheus.Registry

	SourceAttempts *prometheus.CounterVec
	Imports        *prometheus.CounterVec
	Enrichment     *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	ImportDuration prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()
	if err := m.registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register import metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.SourceAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshelf_source_attempts_total",
		Help: "Source attempts by source and outcome.",
	}, []string{"source", "outcome"})

	m.Imports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshelf_imports_total",
		Help: "Finished imports by action (created, updated, failed).",
	}, []string{"action"})

	m.Enrichment = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshelf_enrichment_total",
		Help: "Description enrichment results by outcome.",
	}, []string{"outcome"})

	m.Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshelf_notifications_total",
		Help: "New game notifications by result.",
	}, []string{"result"})

	m.ImportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gameshelf_import_duration_seconds",
		Help:    "Duration of a single import in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
}

// Registry returns the private registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSourceAttempt counts one attempt of a source.
func (m *Metrics) RecordSourceAttempt(source, outcome string) {
	if m == nil {
		return
	}
	m.SourceAttempts.WithLabelValues(source, outcome).Inc()
}

// RecordImport counts a finished import and its duration in seconds.
func (m *Metrics) RecordImport(action string, seconds float64) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(action).Inc()
	m.ImportDuration.Observe(seconds)
}

// RecordEnrichment counts one enrichment outcome.
func (m *Metrics) RecordEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.Enrichment.WithLabelValues(outcome).Inc()
}

// RecordNotification counts a notification delivery.
func (m *Metrics) RecordNotification(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.Notifications.WithLabelValues(result).Inc()
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.SourceAttempts.Describe(ch)
	m.Imports.Describe(ch)
	m.Enrichment.Describe(ch)
	m.Notifications.Describe(ch)
	ch <- m.ImportDuration.Desc()
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.SourceAttempts.Collect(ch)
	m.Imports.Collect(ch)
	m.Enrichment.Collect(ch)
	m.Notifications.Collect(ch)
	ch <- m.ImportDuration
}
