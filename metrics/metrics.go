// Package metrics exposes the service's prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can be built without it in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	admissions      *prometheus.CounterVec
	capacityScans   *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	retryPending    prometheus.Gauge
	statusChanges   *prometheus.CounterVec
	loginFailures   prometheus.Counter
	rateLimited     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bakery",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "order_admissions_total",
			Help:      "Order admission decisions by outcome.",
		}, []string{"outcome"}),
		capacityScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "capacity_full_scans_total",
			Help:      "Full-table scans run after a filtered query errored or came back empty.",
		}, []string{"table", "reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		retryPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bakery",
			Name:      "notifications_retry_pending",
			Help:      "Notifications waiting for the next retry sweep.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "order_status_changes_total",
			Help:      "Order status transitions by target status.",
		}, []string{"status"}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "admin_login_failures_total",
			Help:      "Rejected admin logins.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.admissions,
		m.capacityScans,
		m.notifications,
		m.retryPending,
		m.statusChanges,
		m.loginFailures,
		m.rateLimited,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the matched route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Admission(outcome string) {
	if m != nil {
		m.admissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) FullScan(table, reason string) {
	if m != nil {
		m.capacityScans.WithLabelValues(table, reason).Inc()
	}
}

func (m *Metrics) Notification(channel, outcome string) {
	if m != nil {
		m.notifications.WithLabelValues(channel, outcome).Inc()
	}
}

func (m *Metrics) RetryPending(n int) {
	if m != nil {
		m.retryPending.Set(float64(n))
	}
}

func (m *Metrics) StatusChange(status string) {
	if m != nil {
		m.statusChanges.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) LoginFailure() {
	if m != nil {
		m.loginFailures.Inc()
	}
}

func (m *Metrics) RateLimited(limiter string) {
	if m != nil {
		m.rateLimited.WithLabelValues(limiter).Inc()
	}
}
