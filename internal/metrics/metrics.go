// Package metrics provides Prometheus metrics for the booking service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all booking metrics.
	Namespace = "locum"

	// Subsystem is the subsystem for booking metrics.
	Subsystem = "bookings"
)

// Metrics holds all Prometheus metrics for the booking service.
type Metrics struct {
	// Lifecycle metrics
	TransitionsTotal     *prometheus.CounterVec
	EvictionsTotal       prometheus.Counter
	SweepCompletedTotal  *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	NotificationDuration prometheus.Histogram

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all booking metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initLifecycleMetrics(factory)
	m.initHTTPMetrics(factory)

	return m
}

func (m *Metrics) initLifecycleMetrics(factory promauto.Factory) {
	m.TransitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "operations_total",
			Help:      "Booking operations by name and outcome (ok or error kind)",
		},
		[]string{"operation", "outcome"},
	)

	m.EvictionsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "evictions_total",
			Help:      "Roster entries evicted by capacity decreases",
		},
	)

	m.SweepCompletedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "sweep_completed_total",
			Help:      "Confirmed bookings moved to COMPLETED by the completion sweep",
		},
		[]string{"trigger"},
	)

	m.NotificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "notifications_total",
			Help:      "Outbox notification delivery attempts by event and status",
		},
		[]string{"event", "status"},
	)

	m.NotificationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "notification_publish_seconds",
			Help:      "Time spent delivering one notification to the sink",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
}

// RecordTransition counts one booking operation.
func (m *Metrics) RecordTransition(operation, outcome string) {
	m.TransitionsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordEvictions counts evicted roster entries.
func (m *Metrics) RecordEvictions(n int) {
	if n > 0 {
		m.EvictionsTotal.Add(float64(n))
	}
}

// RecordSweepCompletions counts bookings completed by a sweep.
func (m *Metrics) RecordSweepCompletions(trigger string, n int) {
	if n > 0 {
		m.SweepCompletedTotal.WithLabelValues(trigger).Add(float64(n))
	}
}

// RecordNotification counts one delivery attempt.
func (m *Metrics) RecordNotification(event, status string, took time.Duration) {
	m.NotificationsTotal.WithLabelValues(event, status).Inc()
	m.NotificationDuration.Observe(took.Seconds())
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
