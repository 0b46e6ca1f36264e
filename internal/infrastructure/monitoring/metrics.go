package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bridge call outcomes
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeDecode    = "decode_error"
	OutcomeError     = "error"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without a collector.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bridge metrics
	BridgeCalls      *prometheus.CounterVec
	BridgeDuration   *prometheus.HistogramVec
	PendingCallbacks prometheus.Gauge
	LateCallbacks    prometheus.Counter

	// Registry metrics
	Installs          *prometheus.CounterVec
	InstallDuration   prometheus.Histogram
	Removals          prometheus.Counter
	PackagesInstalled *prometheus.GaugeVec

	// Capability metrics
	FetchRequests *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	BridgeCalls    int64   `json:"bridge_calls"`
	BridgeFailures int64   `json:"bridge_failures"`
	Pending        int64   `json:"pending_callbacks"`
	Packages       int64   `json:"packages"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelf_http_request_duration_seconds",
				Help:    "HTTP API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Bridge metrics
		BridgeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_bridge_calls_total",
				Help: "Total number of host calls into guest code",
			},
			[]string{"method", "outcome"},
		),
		BridgeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelf_bridge_call_duration_seconds",
				Help:    "Time from guest invocation to completion",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		PendingCallbacks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shelf_bridge_pending_callbacks",
				Help: "Number of suspended host calls awaiting a guest callback",
			},
		),
		LateCallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shelf_bridge_late_callbacks_total",
				Help: "Callbacks fired for tokens that were already settled or dropped",
			},
		),

		// Registry metrics
		Installs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_installs_total",
				Help: "Total number of package installs",
			},
			[]string{"category", "outcome"},
		),
		InstallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shelf_install_duration_seconds",
				Help:    "Package install duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		Removals: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shelf_removals_total",
				Help: "Total number of package removals",
			},
		),
		PackagesInstalled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shelf_packages_installed",
				Help: "Number of loaded packages",
			},
			[]string{"category"},
		),

		// Capability metrics
		FetchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_fetch_requests_total",
				Help: "Total number of guest fetch requests",
			},
			[]string{"method", "status"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shelf_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shelf_uptime_seconds",
			Help: "Host uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the prometheus registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordBridgeCall records one completed bridge call
func (m *Metrics) RecordBridgeCall(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BridgeCalls.WithLabelValues(method, outcome).Inc()
	m.BridgeDuration.WithLabelValues(method).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.BridgeCalls++
	if outcome != OutcomeOK {
		m.snapshot.BridgeFailures++
	}
	m.mu.Unlock()
}

// AddPending adjusts the pending callback gauge by delta
func (m *Metrics) AddPending(delta int) {
	if m == nil {
		return
	}
	m.PendingCallbacks.Add(float64(delta))
	m.mu.Lock()
	m.snapshot.Pending += int64(delta)
	m.mu.Unlock()
}

// IncLateCallbacks counts a callback that arrived after settlement
func (m *Metrics) IncLateCallbacks() {
	if m == nil {
		return
	}
	m.LateCallbacks.Inc()
}

// RecordInstall records an install attempt
func (m *Metrics) RecordInstall(category, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Installs.WithLabelValues(category, outcome).Inc()
	m.InstallDuration.Observe(duration.Seconds())
}

// IncRemovals counts a package removal
func (m *Metrics) IncRemovals() {
	if m == nil {
		return
	}
	m.Removals.Inc()
}

// SetPackages sets the number of loaded packages in a category
func (m *Metrics) SetPackages(category string, count int) {
	if m == nil {
		return
	}
	m.PackagesInstalled.WithLabelValues(category).Set(float64(count))
}

// SetTotalPackages records the total for the JSON snapshot
func (m *Metrics) SetTotalPackages(count int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.snapshot.Packages = int64(count)
	m.mu.Unlock()
}

// RecordFetch records a guest fetch request
func (m *Metrics) RecordFetch(method, status string) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(method, status).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
