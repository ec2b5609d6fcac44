// ABOUTME: Prometheus metrics for the listener
// ABOUTME: Implements the player Recorder on a private registry served by promhttp
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// connectionStates are the values ConnectionChanged may report
var connectionStates = []string{"disconnected", "connecting", "connected", "error"}

// Metrics contains all Prometheus metrics for the listener
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline
	BlocksReceived  prometheus.Counter
	BlocksScheduled prometheus.Counter
	BlocksRejected  *prometheus.CounterVec
	Underruns       prometheus.Counter
	BufferDepth     prometheus.Gauge
	ScheduleAhead   prometheus.Histogram

	// Control
	Commands        *prometheus.CounterVec
	ConnectionState *prometheus.GaugeVec
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BlocksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "liveplanting_blocks_received_total",
			Help: "Total number of audio frames received",
		}),
		BlocksScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "liveplanting_blocks_scheduled_total",
			Help: "Total number of blocks scheduled on the output clock",
		}),
		BlocksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liveplanting_blocks_rejected_total",
			Help: "Total number of frames dropped before scheduling",
		}, []string{"reason"}),
		Underruns: factory.NewCounter(prometheus.CounterOpts{
			Name: "liveplanting_underruns_total",
			Help: "Total number of schedule underruns",
		}),
		BufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liveplanting_buffer_depth_seconds",
			Help: "Audio scheduled ahead of the output clock",
		}),
		ScheduleAhead: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "liveplanting_schedule_ahead_seconds",
			Help:    "Buffer depth observed after each scheduled block",
			Buckets: prometheus.LinearBuckets(0, 0.05, 12), // 0 to 550ms
		}),

		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liveplanting_commands_total",
			Help: "Transport commands sent to the server",
		}, []string{"command", "result"}),
		ConnectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liveplanting_connection_state",
			Help: "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
	}
}

// Registry returns the registry holding every metric
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// BlockReceived increments the received counter
func (m *Metrics) BlockReceived() {
	m.BlocksReceived.Inc()
}

// BlockScheduled records a scheduled block and the resulting buffer depth
func (m *Metrics) BlockScheduled(bufferDepth time.Duration) {
	m.BlocksScheduled.Inc()
	m.BufferDepth.Set(bufferDepth.Seconds())
	m.ScheduleAhead.Observe(bufferDepth.Seconds())
}

// BlockRejected records a dropped frame
func (m *Metrics) BlockRejected(reason string) {
	m.BlocksRejected.WithLabelValues(reason).Inc()
}

// Underrun increments the underrun counter
func (m *Metrics) Underrun() {
	m.Underruns.Inc()
}

// CommandSent records a command and whether it was delivered
func (m *Metrics) CommandSent(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Commands.WithLabelValues(command, result).Inc()
}

// ConnectionChanged marks state as current and clears the others
func (m *Metrics) ConnectionChanged(state string) {
	for _, s := range connectionStates {
		if s != state {
			m.ConnectionState.WithLabelValues(s).Set(0)
		}
	}
	m.ConnectionState.WithLabelValues(state).Set(1)
	if state != "connected" {
		m.BufferDepth.Set(0)
	}
}
