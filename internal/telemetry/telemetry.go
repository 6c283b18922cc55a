// Package telemetry registers the Prometheus collectors pulse exports on
// /metrics when serving.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeAuth     = "auth_error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so CLI commands can run without a registry.
type Metrics struct {
	registry *prometheus.Registry
	fetches  *prometheus.CounterVec
	cache    *prometheus.CounterVec
	reports  *prometheus.HistogramVec
}

// New creates a Metrics with its own registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_fetch_total",
			Help: "Upstream metric fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_cache_requests_total",
			Help: "Response cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		reports: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_report_duration_seconds",
			Help:    "Time to assemble one report section.",
			Buckets: prometheus.DefBuckets,
		}, []string{"section"}),
	}
	reg.MustRegister(
		m.fetches, m.cache, m.reports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Fetch counts one upstream fetch.
func (m *Metrics) Fetch(source, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, outcome).Inc()
}

// Cache counts one cache lookup.
func (m *Metrics) Cache(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// Section observes the assembly time of one report section.
func (m *Metrics) Section(section string, d time.Duration) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(section).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
