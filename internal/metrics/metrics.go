// Package metrics exposes Prometheus metrics for the session, the gateway
// and optimistic updates.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"essence/internal/session"
)

const namespace = "essence"

// Metrics holds every collector. Create one per registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	sessionEvents       *prometheus.CounterVec
	authenticated       prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	optimisticRollbacks prometheus.Counter
	websocketClients    prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		sessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session transitions by type.",
		}, []string{"type"}),
		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while a user is logged in.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		optimisticRollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blog",
			Name:      "optimistic_rollbacks_total",
			Help:      "Optimistic updates reverted after the backend refused them.",
		}),
		websocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "session_stream_clients",
			Help:      "Open session event streams.",
		}),
	}
}

// HandleSessionEvent implements session.EventSink
func (m *Metrics) HandleSessionEvent(_ context.Context, ev session.Event) {
	m.sessionEvents.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case session.EventLogin, session.EventRestored:
		m.authenticated.Set(1)
	case session.EventLogout, session.EventPurged:
		m.authenticated.Set(0)
	}
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Rollback counts a reverted optimistic update
func (m *Metrics) Rollback(error) {
	m.optimisticRollbacks.Inc()
}

// StreamOpened and StreamClosed track session event stream clients
func (m *Metrics) StreamOpened() { m.websocketClients.Inc() }

func (m *Metrics) StreamClosed() { m.websocketClients.Dec() }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
