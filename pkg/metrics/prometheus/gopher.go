package prometheus

import (
	"time"

	"github.com/marmos91/burrow/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gopherMetrics is the Prometheus implementation of metrics.GopherMetrics.
type gopherMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	requestsInFlight       prometheus.Gauge
	bytesSent              prometheus.Counter
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	queueDepth             prometheus.Gauge
}

// NewGopherMetrics creates Gopher metrics on the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewGopherMetrics() metrics.GopherMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGopherMetrics()
	}
	return NewGopherMetricsWith(metrics.GetRegistry())
}

// NewGopherMetricsWith registers Gopher metrics on reg. It panics if the
// metrics are already registered there.
func NewGopherMetricsWith(reg prometheus.Registerer) metrics.GopherMetrics {
	factory := promauto.With(reg)

	return &gopherMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burrow_gopher_requests_total",
				Help: "Total number of Gopher requests by outcome",
			},
			[]string{"outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "burrow_gopher_request_duration_milliseconds",
				Help: "Duration of Gopher requests in milliseconds",
				Buckets: []float64{
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
					5000, // 5s
				},
			},
			[]string{"outcome"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "burrow_gopher_requests_in_flight",
				Help: "Current number of Gopher requests being processed",
			},
		),
		bytesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "burrow_gopher_bytes_sent_total",
				Help: "Total response bytes written to Gopher clients",
			},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "burrow_gopher_active_connections",
				Help: "Current number of open Gopher connections",
			},
		),
		connectionsAccepted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "burrow_gopher_connections_accepted_total",
				Help: "Total number of Gopher connections accepted",
			},
		),
		connectionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "burrow_gopher_connections_closed_total",
				Help: "Total number of Gopher connections closed",
			},
		),
		connectionsForceClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "burrow_gopher_connections_force_closed_total",
				Help: "Total number of Gopher connections force-closed during shutdown timeout",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "burrow_gopher_queue_depth",
				Help: "Accepted connections waiting for a worker",
			},
		),
	}
}

func (m *gopherMetrics) RecordRequest(outcome string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *gopherMetrics) RecordRequestStart() {
	m.requestsInFlight.Inc()
}

func (m *gopherMetrics) RecordRequestEnd() {
	m.requestsInFlight.Dec()
}

func (m *gopherMetrics) RecordBytesSent(bytes int64) {
	m.bytesSent.Add(float64(bytes))
}

func (m *gopherMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *gopherMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *gopherMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *gopherMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *gopherMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
