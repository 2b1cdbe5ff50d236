package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	tickets         *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	authzDenied     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	eventFailures   *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "Error responses by route and error code",
		}, []string{"method", "route", "code"}),
		tickets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ticket_events_total",
			Help: "Ticket lifecycle events by type",
		}, []string{"event"}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_session_events_total",
			Help: "Helpdesk session clock events by type",
		}, []string{"event"}),
		authzDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_authz_denied_total",
			Help: "Authorization denials by resource kind and action",
		}, []string{"kind", "action"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_stats_cache_lookups_total",
			Help: "Stats cache lookups by result",
		}, []string{"result"}),
		eventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_event_delivery_failures_total",
			Help: "Domain events with at least one failed handler or broker forward, by type",
		}, []string{"event"}),
	}
}

// RecordRequest counts a completed request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts an error response by domain error code.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, route, code).Inc()
}

// RecordTicketEvent counts a ticket lifecycle event.
func (m *Metrics) RecordTicketEvent(event string) {
	if m == nil {
		return
	}
	m.tickets.WithLabelValues(event).Inc()
}

// RecordSessionEvent counts a session clock event.
func (m *Metrics) RecordSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}

// RecordAuthzDenied counts a denied authorization check.
func (m *Metrics) RecordAuthzDenied(kind, action string) {
	if m == nil {
		return
	}
	m.authzDenied.WithLabelValues(kind, action).Inc()
}

// RecordCacheLookup counts a stats cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordEventFailure counts an event whose delivery failed in at least one handler.
func (m *Metrics) RecordEventFailure(event string) {
	if m == nil {
		return
	}
	m.eventFailures.WithLabelValues(event).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
