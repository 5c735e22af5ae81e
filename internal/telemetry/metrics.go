// Package telemetry exposes Prometheus metrics for the execution engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's instruments. A nil *Metrics is valid and
// records nothing, so callers never need to guard instrumentation sites.
type Metrics struct {
	executionsTotal   *prometheus.CounterVec
	retriesTotal      prometheus.Counter
	interruptsTotal   prometheus.Counter
	executionDuration prometheus.Histogram
}

// New creates the engine metrics and registers them with the given
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notegrid",
			Name:      "executions_total",
			Help:      "Node executions by terminal status.",
		}, []string{"status"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notegrid",
			Name:      "retries_total",
			Help:      "Automatic re-runs after a failed attempt.",
		}),
		interruptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notegrid",
			Name:      "interrupts_total",
			Help:      "Interrupt signals delivered to running nodes.",
		}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "notegrid",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of node executions.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.executionsTotal, m.retriesTotal, m.interruptsTotal, m.executionDuration)
	return m
}

// ObserveExecution records one terminal outcome and its duration.
func (m *Metrics) ObserveExecution(status string, seconds float64) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(status).Inc()
	m.executionDuration.Observe(seconds)
}

// ObserveRetry records one automatic re-run.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// ObserveInterrupt records one delivered interrupt signal.
func (m *Metrics) ObserveInterrupt() {
	if m == nil {
		return
	}
	m.interruptsTotal.Inc()
}
