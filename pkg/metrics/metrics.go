// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	HTTPRequestsInFlight    prometheus.Gauge
	PipelineRunsTotal       *prometheus.CounterVec
	PipelineStageDuration   *prometheus.HistogramVec
	QuestionsPerRun         prometheus.Histogram
	ClusterFallbacksTotal   prometheus.Counter
	SubKeywordFailuresTotal prometheus.Counter
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamDuration        *prometheus.HistogramVec
	CircuitBreakerState     *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PipelineRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "question_pipeline_runs_total",
				Help: "Pipeline runs by outcome (ok, no_documents, no_keywords, no_questions, error).",
			},
			[]string{"outcome"},
		),
		PipelineStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "question_pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		QuestionsPerRun: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "question_pipeline_questions",
				Help:    "Number of questions returned per pipeline run.",
				Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
			},
		),
		ClusterFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "question_cluster_fallbacks_total",
				Help: "Clustering failures recovered by falling back to top-scored keywords.",
			},
		),
		SubKeywordFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "question_subkeyword_failures_total",
				Help: "Sub-keyword lookups that failed during recursive expansion.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "News provider requests by endpoint and status (ok, error, open).",
			},
			[]string{"endpoint", "status"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "News provider request latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PipelineRunsTotal,
		m.PipelineStageDuration,
		m.QuestionsPerRun,
		m.ClusterFallbacksTotal,
		m.SubKeywordFailuresTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.UpstreamRequestsTotal,
		m.UpstreamDuration,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
