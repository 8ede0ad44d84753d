// Package metrics provides Prometheus metrics for the live tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	EventsPublished     *prometheus.CounterVec
	EventsDelivered     prometheus.Counter
	EventsDropped       prometheus.Counter
	SubscribersLive     prometheus.Gauge
	ProjectsTracked     prometheus.Gauge
	StoreWriteErrors    *prometheus.CounterVec
	RequestsRateLimited prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livetrack_events_published_total",
				Help: "Total live events published, by event type.",
			},
			[]string{"event_type"},
		),
		EventsDelivered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "livetrack_events_delivered_total",
				Help: "Total event deliveries to subscribers.",
			},
		),
		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "livetrack_events_dropped_total",
				Help: "Deliveries abandoned due to slow or dead subscribers.",
			},
		),
		SubscribersLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "livetrack_subscribers_live",
				Help: "Number of currently connected subscribers.",
			},
		),
		ProjectsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "livetrack_projects_tracked",
				Help: "Number of projects held in the registry.",
			},
		),
		StoreWriteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livetrack_store_write_errors_total",
				Help: "Failed persistence writes, by operation.",
			},
			[]string{"op"},
		),
		RequestsRateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "livetrack_requests_rate_limited_total",
				Help: "API requests rejected by the rate limiter.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.EventsPublished)
	reg.MustRegister(m.EventsDelivered)
	reg.MustRegister(m.EventsDropped)
	reg.MustRegister(m.SubscribersLive)
	reg.MustRegister(m.ProjectsTracked)
	reg.MustRegister(m.StoreWriteErrors)
	reg.MustRegister(m.RequestsRateLimited)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPublish increments the publish counter for an event type.
func (m *Metrics) RecordPublish(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordStoreError increments the persistence failure counter.
func (m *Metrics) RecordStoreError(op string) {
	m.StoreWriteErrors.WithLabelValues(op).Inc()
}
