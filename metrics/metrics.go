// Package metrics exposes Prometheus collectors for the simulation engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seqmc"

// Metrics groups the engine collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Trials counts payoffs fed to the running statistics.
	Trials prometheus.Counter
	// Batches counts price batches produced by the backend.
	Batches prometheus.Counter
	// Simulations counts finished runs by payout kind and outcome.
	Simulations *prometheus.CounterVec
	// Duration observes wall time per run.
	Duration prometheus.Histogram

	registry *prometheus.Registry
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Trials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trials_total",
			Help:      "Total Monte Carlo trials consumed",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "batches_total",
			Help:      "Total price batches generated",
		}),
		Simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "simulations_total",
			Help:      "Total simulations by payout kind and outcome",
		}, []string{"kind", "outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "simulation_duration_seconds",
			Help:      "Simulation wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.Trials,
		m.Batches,
		m.Simulations,
		m.Duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) AddBatches(n int) {
	if m == nil {
		return
	}
	m.Batches.Add(float64(n))
}

// ObserveSimulation records one finished run.
func (m *Metrics) ObserveSimulation(kind, outcome string, trials int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Trials.Add(float64(trials))
	m.Simulations.WithLabelValues(kind, outcome).Inc()
	m.Duration.Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
