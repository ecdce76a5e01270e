// Package metrics exposes Prometheus metrics for the indexing pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pageindexer Prometheus metrics.
type Metrics struct {
	// Submission metrics
	SubmissionsTotal *prometheus.CounterVec
	RateLimitedTotal *prometheus.CounterVec

	// Reconciliation metrics
	InspectionsTotal *prometheus.CounterVec

	// Discovery metrics
	URLsDiscovered   prometheus.Counter
	SitemapsResolved *prometheus.CounterVec

	// Queue metrics
	TasksProcessed *prometheus.CounterVec
}

// New initializes the pageindexer metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry initializes the metrics on a caller-provided registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pageindexer_submissions_total",
			Help: "Total engine submissions by engine and outcome",
		}, []string{"engine", "status"}),

		RateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pageindexer_rate_limited_total",
			Help: "Total submissions skipped because the engine window was exhausted",
		}, []string{"engine"}),

		InspectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pageindexer_inspections_total",
			Help: "Total reconciliation inspections by outcome (indexed, demoted, skipped, error)",
		}, []string{"outcome"}),

		URLsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "pageindexer_urls_discovered_total",
			Help: "Total URLs discovered from sitemaps",
		}),

		SitemapsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pageindexer_sitemaps_resolved_total",
			Help: "Total sitemap documents resolved by outcome",
		}, []string{"status"}),

		TasksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pageindexer_tasks_processed_total",
			Help: "Total queue work items processed by result",
		}, []string{"result"}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSubmission records one engine submission outcome.
func (m *Metrics) RecordSubmission(engine string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	m.SubmissionsTotal.WithLabelValues(engine, status).Inc()
}
