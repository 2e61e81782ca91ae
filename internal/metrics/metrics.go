// Package metrics provides Prometheus-based metrics collection for
// portscope: scan admission and outcome counters, probe latency
// histograms, and HTTP server metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all portscope metrics
	namespace = "portscope"

	// Subsystems
	subsystemScan  = "scan"
	subsystemProbe = "probe"
	subsystemAPI   = "api"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	scanErrors   *prometheus.CounterVec
	activeScans  prometheus.Gauge

	// Probe metrics
	probeDuration *prometheus.HistogramVec
	portsProbed   *prometheus.CounterVec

	// Rate limiting
	rateLimited prometheus.Counter

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a metrics instance with all collectors registered on a
// dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{registry: registry}

	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scan requests by outcome",
		},
		[]string{"status"},
	)

	m.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "End-to-end scan duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
	)

	m.scanErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "errors_total",
			Help:      "Total number of rejected scan requests by error code",
		},
		[]string{"code"},
	)

	m.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently running scans",
		},
	)

	m.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of individual port probes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"status"},
	)

	m.portsProbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "ports_total",
			Help:      "Total number of ports probed by resulting status",
		},
		[]string{"status"},
	)

	m.rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "rate_limited_total",
			Help:      "Total number of scan requests denied by the rate limiter",
		},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.scanErrors,
		m.activeScans,
		m.probeDuration,
		m.portsProbed,
		m.rateLimited,
		m.httpRequests,
		m.httpDuration,
	)

	// Standard Go and process collectors for runtime visibility.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementScansTotal records a finished scan request.
func (m *Metrics) IncrementScansTotal(status string) {
	m.scansTotal.WithLabelValues(status).Inc()
}

// RecordScanDuration records the end-to-end duration of a scan.
func (m *Metrics) RecordScanDuration(duration time.Duration) {
	m.scanDuration.Observe(duration.Seconds())
}

// IncrementScanErrors records a rejected scan by error code.
func (m *Metrics) IncrementScanErrors(code string) {
	m.scanErrors.WithLabelValues(code).Inc()
}

// ScanStarted marks a scan as active and returns a completion callback.
func (m *Metrics) ScanStarted() func() {
	m.activeScans.Inc()
	return m.activeScans.Dec
}

// RecordProbe records one port probe outcome and its duration.
func (m *Metrics) RecordProbe(status string, duration time.Duration) {
	m.portsProbed.WithLabelValues(status).Inc()
	m.probeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncrementRateLimited records a rate-limiter denial.
func (m *Metrics) IncrementRateLimited() {
	m.rateLimited.Inc()
}

// IncrementHTTPRequests records a served HTTP request.
func (m *Metrics) IncrementHTTPRequests(method, path, status string) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records how long an HTTP request took.
func (m *Metrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
