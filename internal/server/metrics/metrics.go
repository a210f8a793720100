// Package metrics exposes prometheus collectors for session and HTTP events.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "web_beat"

// Session events
const (
	EventLogin   = "login"
	EventRefresh = "refresh"
	EventLogout  = "logout"
)

// Metrics holds the collectors registered for one server instance
type Metrics struct {
	registry        *prometheus.Registry
	sessions        *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	prunedTokens    prometheus.Counter
	registeredUsers prometheus.Counter
}

// New creates collectors on a fresh registry together with Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		guardRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_rejections_total",
			Help:      "Requests rejected by the session guard by reason.",
		}, []string{"reason"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		prunedTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_refresh_tokens_pruned_total",
			Help:      "Expired refresh token records removed by the janitor.",
		}),
		registeredUsers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registered_users_total",
			Help:      "Users created via registration.",
		}),
	}
}

// SessionEvent counts a login, refresh or logout
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}

// GuardRejected counts a guard failure
func (m *Metrics) GuardRejected(reason string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(reason).Inc()
}

// UserRegistered counts a successful registration
func (m *Metrics) UserRegistered() {
	if m == nil {
		return
	}
	m.registeredUsers.Inc()
}

// TokensPruned adds n removed expired records
func (m *Metrics) TokensPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.prunedTokens.Add(float64(n))
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
