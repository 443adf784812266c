// Package metrics holds the Prometheus collectors for generation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the generator.
type Metrics struct {
	ModelCalls       *prometheus.CounterVec
	ModelCallSeconds *prometheus.HistogramVec
	Scenarios        prometheus.Counter
	Blocks           *prometheus.CounterVec
	Surfaces         *prometheus.CounterVec
}

// New creates the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testgen",
			Name:      "model_calls_total",
			Help:      "Model backend calls by stage and result.",
		}, []string{"stage", "result"}),
		ModelCallSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testgen",
			Name:      "model_call_duration_seconds",
			Help:      "Latency of model backend calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"stage"}),
		Scenarios: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "testgen",
			Name:      "scenarios_generated_total",
			Help:      "Scenarios produced by the scenario stage.",
		}),
		Blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testgen",
			Name:      "test_blocks_total",
			Help:      "Test blocks assembled, by result (ok, failed, cached).",
		}, []string{"result"}),
		Surfaces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testgen",
			Name:      "surfaces_total",
			Help:      "API surfaces processed, by final status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.ModelCalls, m.ModelCallSeconds, m.Scenarios, m.Blocks, m.Surfaces)
	}
	return m
}
