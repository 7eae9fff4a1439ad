// Package metrics exposes Prometheus instruments for the project list.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "projectsync"

// Metrics holds the service instruments on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	reloads    *prometheus.CounterVec
	cached     prometheus.Gauge
	exceptions *prometheus.CounterVec
	events     *prometheus.CounterVec
}

// New creates and registers all instruments.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Full project list reloads by result.",
		}, []string{"result"}),
		cached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_projects",
			Help:      "Number of projects in the consumer cache.",
		}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_exceptions_total",
			Help:      "Exceptions reported to the analytics sink.",
		}, []string{"fatal"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications handled by the project list consumer.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(
		m.reloads,
		m.cached,
		m.exceptions,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReload counts a reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// SetCached records the current cache size.
func (m *Metrics) SetCached(n int) {
	if m == nil {
		return
	}
	m.cached.Set(float64(n))
}

// ObserveException counts an analytics exception.
func (m *Metrics) ObserveException(fatal bool) {
	if m == nil {
		return
	}
	m.exceptions.WithLabelValues(strconv.FormatBool(fatal)).Inc()
}

// ObserveNotification counts a handled notification. outcome is "applied"
// or "ignored".
func (m *Metrics) ObserveNotification(typ, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(typ, outcome).Inc()
}
