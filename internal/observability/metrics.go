// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the measurement daemon.
package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for bundlecost.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Cache metrics
	cacheEventsTotal *prometheus.CounterVec
	cacheEntries     prometheus.Gauge
	cacheClearsTotal prometheus.Counter

	// Measurement metrics
	measurementsTotal   *prometheus.CounterVec
	measurementDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundlecost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundlecost_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundlecost_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		cacheEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundlecost_cache_events_total",
				Help: "Total number of cache events (hit, negative_hit, dedup_join, build_start)",
			},
			[]string{"event"},
		),
		cacheEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundlecost_cache_entries",
				Help: "Current number of positive cache entries",
			},
		),
		cacheClearsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bundlecost_cache_clears_total",
				Help: "Total number of bulk cache invalidations",
			},
		),

		measurementsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundlecost_measurements_total",
				Help: "Total number of completed measurements by outcome",
			},
			[]string{"outcome"},
		),
		measurementDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundlecost_measurement_duration_seconds",
				Help:    "Bundle measurement latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
	}
}

// CacheEvent records one cache event.
func (m *Metrics) CacheEvent(event string) {
	m.cacheEventsTotal.WithLabelValues(event).Inc()
}

// MeasurementDone records a completed measurement and its duration.
func (m *Metrics) MeasurementDone(outcome string, duration time.Duration) {
	m.measurementsTotal.WithLabelValues(outcome).Inc()
	m.measurementDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// CacheEntries updates the positive cache entry gauge.
func (m *Metrics) CacheEntries(n int) {
	m.cacheEntries.Set(float64(n))
}

// CacheCleared records a bulk invalidation.
func (m *Metrics) CacheCleared() {
	m.cacheClearsTotal.Inc()
}

// MetricsMiddleware returns a Fiber middleware that collects HTTP metrics.
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		path := c.Path()
		method := c.Method()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := statusClass(c.Response().StatusCode())
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler that exposes Prometheus metrics.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx).
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
