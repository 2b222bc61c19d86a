// Package metrics exposes Prometheus collectors for the HTTP surface and the
// workspace, auth and notification events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/halolight/schema"
)

const namespace = "halolight"

// Metrics holds every collector the server records to.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlight        prometheus.Gauge

	LoginAttempts  *prometheus.CounterVec
	RateLimited    *prometheus.CounterVec
	TabEvents      *prometheus.CounterVec
	SettingsWrites prometheus.Counter
	Notifications  *prometheus.CounterVec
	StreamClients  *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by route.",
		}, []string{"route"}),
		TabEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "tab_events_total",
			Help:      "Tab store events by type.",
		}, []string{"type"}),
		SettingsWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "settings_writes_total",
			Help:      "UI settings updates and resets.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Notifications delivered to users, by type.",
		}, []string{"type"}),
		StreamClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected event stream clients by transport.",
		}, []string{"transport"}),
	}
	reg.MustRegister(
		m.RequestDuration,
		m.RequestsTotal,
		m.InFlight,
		m.LoginAttempts,
		m.RateLimited,
		m.TabEvents,
		m.SettingsWrites,
		m.Notifications,
		m.StreamClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency by mux pattern. Requests that
// matched no pattern are recorded under "unmatched".
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.InFlight.Inc()
		defer m.InFlight.Dec()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(rec.status)
		m.RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// OnTabEvent implements core.EventSink.
func (m *Metrics) OnTabEvent(event schema.TabEvent) {
	m.TabEvents.WithLabelValues(string(event.Type)).Inc()
}

// OnSettingsEvent implements core.EventSink.
func (m *Metrics) OnSettingsEvent(schema.SettingsEvent) {
	m.SettingsWrites.Inc()
}

// OnNotification implements notify.Sink.
func (m *Metrics) OnNotification(event schema.NotificationEvent) {
	m.Notifications.WithLabelValues(string(event.Notification.Type)).Inc()
}

// ObserveLogin counts a login attempt as "ok" or "rejected".
func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "ok"
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// ObserveRateLimited counts a rejected request.
func (m *Metrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// StreamOpened tracks a connected stream client and returns the matching close.
func (m *Metrics) StreamOpened(transport string) func() {
	if m == nil {
		return func() {}
	}
	gauge := m.StreamClients.WithLabelValues(transport)
	gauge.Inc()
	return gauge.Dec
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
