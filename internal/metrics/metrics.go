// Package metrics exposes chat counters on a dedicated prometheus registry.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	registry    *prometheus.Registry
	connections prometheus.Gauge
	inbound     *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	storeDur    *prometheus.HistogramVec
}

// New builds the collectors under namespace and registers them, together
// with the process and Go runtime collectors, on a fresh registry.
func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: r,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active",
			Help: "Authenticated connections currently attached.",
		}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inbound_events_total",
			Help: "Inbound events by name and outcome.",
		}, []string{"event", "outcome"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbound_deliveries_total",
			Help: "Outbound events queued to connections.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbound_dropped_total",
			Help: "Outbound events dropped because a connection queue was full.",
		}, []string{"event"}),
		storeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "store_operation_duration_seconds",
			Help:    "Message store latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
	}
	r.MustRegister(m.connections, m.inbound, m.delivered, m.dropped, m.storeDur)
	return m
}

// Registry returns the registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

// Inbound counts one inbound event. Outcome is "ok", "malformed",
// "rate_limited", "store_error" or "unknown".
func (m *Metrics) Inbound(event, outcome string) {
	if m != nil {
		m.inbound.WithLabelValues(event, outcome).Inc()
	}
}

func (m *Metrics) Delivered(event string, n int) {
	if m != nil && n > 0 {
		m.delivered.WithLabelValues(event).Add(float64(n))
	}
}

func (m *Metrics) Dropped(event string) {
	if m != nil {
		m.dropped.WithLabelValues(event).Inc()
	}
}

// StoreDone observes a store call that started at since.
func (m *Metrics) StoreDone(op string, since time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeDur.WithLabelValues(op, status).Observe(time.Since(since).Seconds())
}
