// Package metrics exposes Prometheus counters/gauges/histograms for the
// protocol engine and the hedged fetch engine, adapted from the teacher's
// internal/metrics/metrics.go (which instrumented a WebSocket broadcast
// hub and a NATS TCP client) onto this system's components.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the process registers.
type Metrics struct {
	framesParsed   *prometheus.CounterVec
	sessionConnected prometheus.Gauge
	reconnects     prometheus.Counter
	backoffSeconds prometheus.Gauge

	messagesDispatched *prometheus.CounterVec
	validationErrors   *prometheus.CounterVec

	fetchStarted  prometheus.Counter
	fetchSuccess  *prometheus.CounterVec
	fetchFailed   prometheus.Counter
	gatewayLatency *prometheus.HistogramVec
	gatewayErrors *prometheus.CounterVec

	cpuPercent    prometheus.Gauge
	memoryAllocBytes prometheus.Gauge
}

// New registers all collectors against the default Prometheus registry.
func New() *Metrics {
	return &Metrics{
		framesParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsubscriber_frames_parsed_total",
			Help: "Broker frames parsed by the Framer, by frame kind.",
		}, []string{"kind"}),
		sessionConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsubscriber_session_connected",
			Help: "1 if the broker Session has completed its handshake, else 0.",
		}),
		reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pumpsubscriber_reconnects_total",
			Help: "Total number of Supervisor-triggered reconnects.",
		}),
		backoffSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsubscriber_backoff_seconds",
			Help: "Current Supervisor backoff delay, in seconds.",
		}),

		messagesDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsubscriber_messages_dispatched_total",
			Help: "Messages forwarded to the Payload Dispatcher, by outcome.",
		}, []string{"outcome"}),
		validationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsubscriber_validation_errors_total",
			Help: "Validation failures, by reason.",
		}, []string{"reason"}),

		fetchStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pumpsubscriber_fetch_started_total",
			Help: "Hedged fetch engine invocations started.",
		}),
		fetchSuccess: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsubscriber_fetch_success_total",
			Help: "Hedged fetch engine successes, by winning strategy.",
		}, []string{"strategy"}),
		fetchFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pumpsubscriber_fetch_failed_total",
			Help: "Hedged fetch engine invocations where every gateway failed.",
		}),
		gatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pumpsubscriber_gateway_fetch_seconds",
			Help:    "Per-gateway fetch latency for successful attempts.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
		gatewayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsubscriber_gateway_errors_total",
			Help: "Per-gateway fetch failures, by error kind.",
		}, []string{"kind", "error_kind"}),

		cpuPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsubscriber_cpu_percent",
			Help: "Smoothed process-host CPU usage percentage.",
		}),
		memoryAllocBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsubscriber_memory_alloc_bytes",
			Help: "Go runtime heap allocation in bytes.",
		}),
	}
}

func (m *Metrics) FrameParsed(kind string)  { m.framesParsed.WithLabelValues(kind).Inc() }
func (m *Metrics) SetSessionConnected(c bool) {
	if c {
		m.sessionConnected.Set(1)
		return
	}
	m.sessionConnected.Set(0)
}
func (m *Metrics) Reconnected(backoff time.Duration) {
	m.reconnects.Inc()
	m.backoffSeconds.Set(backoff.Seconds())
}
func (m *Metrics) MessageDispatched(outcome string) { m.messagesDispatched.WithLabelValues(outcome).Inc() }
func (m *Metrics) ValidationError(reason string)    { m.validationErrors.WithLabelValues(reason).Inc() }

func (m *Metrics) FetchStarted()                { m.fetchStarted.Inc() }
func (m *Metrics) FetchSucceeded(strategy string) { m.fetchSuccess.WithLabelValues(strategy).Inc() }
func (m *Metrics) FetchFailed()                 { m.fetchFailed.Inc() }
func (m *Metrics) GatewayLatency(kind string, d time.Duration) {
	m.gatewayLatency.WithLabelValues(kind).Observe(d.Seconds())
}
func (m *Metrics) GatewayError(kind, errorKind string) {
	m.gatewayErrors.WithLabelValues(kind, errorKind).Inc()
}

func (m *Metrics) SetCPUPercent(p float64)       { m.cpuPercent.Set(p) }
func (m *Metrics) SetMemoryAllocBytes(b uint64)  { m.memoryAllocBytes.Set(float64(b)) }

// Serve starts a promhttp listener on addr in the background, the same way
// the teacher's Server.Start spun up its HTTP server in a goroutine. If
// addr is empty, Serve is a no-op (metrics stay registered but unexposed).
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(addr, mux)
}
