// Package monitoring collects Prometheus metrics for the telemetry pipeline.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	EventsIngested      *prometheus.CounterVec
	ProcessesRegistered prometheus.Counter
	StoreEvents         prometheus.Gauge
	StoreClears         prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
	Broadcasts    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// New creates the metrics collector and registers everything with the
// default registry.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcscope_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipcscope_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		EventsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcscope_events_ingested_total",
				Help: "Total number of IPC events ingested",
			},
			[]string{"message_type", "status"},
		),
		ProcessesRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ipcscope_processes_registered_total",
				Help: "Total number of processes registered",
			},
		),
		StoreEvents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ipcscope_store_events",
				Help: "Number of events currently stored",
			},
		),
		StoreClears: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ipcscope_store_clears_total",
				Help: "Total number of clear operations",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ipcscope_ws_connections",
				Help: "Number of connected observers",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcscope_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
		Broadcasts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcscope_broadcasts_total",
				Help: "Total number of fan-out publications",
			},
			[]string{"type"},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ipcscope_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEventIngested records a committed event insert.
func (m *Metrics) RecordEventIngested(messageType, status string, stored int) {
	m.EventsIngested.WithLabelValues(messageType, status).Inc()
	m.StoreEvents.Set(float64(stored))
}

// RecordProcessRegistered records a committed process registration.
func (m *Metrics) RecordProcessRegistered() {
	m.ProcessesRegistered.Inc()
}

// RecordClear records a clear operation.
func (m *Metrics) RecordClear() {
	m.StoreClears.Inc()
	m.StoreEvents.Set(0)
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordBroadcast records one fan-out publication.
func (m *Metrics) RecordBroadcast(msgType string) {
	m.Broadcasts.WithLabelValues(msgType).Inc()
}

// IncWSConnections increments the observer gauge.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements the observer gauge.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
