// Package metrics exposes Prometheus instruments for RPC traffic on both
// sides of the bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RPC counts calls per function and outcome and records their latency.
// A nil *RPC is valid and records nothing.
type RPC struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRPC registers the RPC instruments under namespace_subsystem on reg.
func NewRPC(reg prometheus.Registerer, namespace, subsystem string) *RPC {
	m := &RPC{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "calls_total",
			Help:      "RPC calls by function and outcome.",
		}, []string{"function", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "call_duration_seconds",
			Help:      "RPC call latency by function.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"function"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

// Observe records one finished call.
func (m *RPC) Observe(function, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(function, outcome).Inc()
	m.duration.WithLabelValues(function).Observe(elapsed.Seconds())
}

// Calls returns the counter for tests and debug pages.
func (m *RPC) Calls() *prometheus.CounterVec {
	return m.calls
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
