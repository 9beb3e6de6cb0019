// Package metrics provides Prometheus metrics for the glossary API
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.  Each instance
// owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Glossary metrics
	GlossaryOpsTotal   *prometheus.CounterVec
	ArchivedVersions   prometheus.Counter
	IdenticalRestores  prometheus.Counter
	EventPublishErrors prometheus.Counter

	// Auth metrics
	AuthAttemptsTotal *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossary_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glossary_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GlossaryOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossary_operations_total",
				Help: "Glossary engine operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		ArchivedVersions: f.NewCounter(prometheus.CounterOpts{
			Name: "glossary_archived_versions_total",
			Help: "Archived snapshots written",
		}),
		IdenticalRestores: f.NewCounter(prometheus.CounterOpts{
			Name: "glossary_identical_restores_total",
			Help: "Restore requests skipped because the version was already active",
		}),
		EventPublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "glossary_event_publish_errors_total",
			Help: "Glossary events that could not be published",
		}),
		AuthAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glossary_auth_attempts_total",
				Help: "Authentication attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one completed request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveOp records a glossary engine outcome ("ok", "soft_fail", "not_found", ...).
func (m *Metrics) ObserveOp(op, outcome string) {
	m.GlossaryOpsTotal.WithLabelValues(op, outcome).Inc()
}
