// Package metrics exposes prometheus counters for simulation and round analysis.
// All methods are safe on a nil receiver so callers can run without metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quorumlab"

// SimulationMetrics counts Monte Carlo trial outcomes.
type SimulationMetrics struct {
	trials          *prometheus.CounterVec
	emptyTrials     *prometheus.CounterVec
	unreachedTrials *prometheus.CounterVec
	votersNeeded    *prometheus.HistogramVec
	poissonCapHits  prometheus.Counter
}

// NewSimulationMetrics creates the simulation metrics and registers them.
func NewSimulationMetrics(registerer prometheus.Registerer) *SimulationMetrics {
	m := SimulationMetrics{
		trials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulation_trials_total",
				Help:      "Number of simulated sortition trials",
			},
			[]string{"step"},
		),
		emptyTrials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulation_empty_trials_total",
				Help:      "Trials in which no account was selected",
			},
			[]string{"step"},
		),
		unreachedTrials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulation_unreached_trials_total",
				Help:      "Trials whose selected weight never reached the threshold",
			},
			[]string{"step"},
		),
		votersNeeded: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "simulation_voters_to_threshold",
				Help:      "Voters consumed before cumulative weight reached the threshold",
				Buckets:   prometheus.ExponentialBucketsRange(1, 5000, 16),
			},
			[]string{"step"},
		),
		poissonCapHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sampler_poisson_cap_hits_total",
				Help:      "Poisson weight draws clamped at the iteration cap",
			},
		),
	}
	registerer.MustRegister(m.trials)
	registerer.MustRegister(m.emptyTrials)
	registerer.MustRegister(m.unreachedTrials)
	registerer.MustRegister(m.votersNeeded)
	registerer.MustRegister(m.poissonCapHits)

	return &m
}

// ObserveTrial records one completed trial. voters is ignored for empty trials.
func (m *SimulationMetrics) ObserveTrial(step string, voters int, empty, unreached bool) {
	if m == nil {
		return
	}
	m.trials.WithLabelValues(step).Inc()
	if empty {
		m.emptyTrials.WithLabelValues(step).Inc()
		return
	}
	if unreached {
		m.unreachedTrials.WithLabelValues(step).Inc()
	}
	m.votersNeeded.WithLabelValues(step).Observe(float64(voters))
}

// PoissonCapHit implements sampler.CapObserver.
func (m *SimulationMetrics) PoissonCapHit(float64) {
	if m == nil {
		return
	}
	m.poissonCapHits.Inc()
}

// AnalysisMetrics counts observed rounds by outcome.
type AnalysisMetrics struct {
	rounds *prometheus.CounterVec
}

// NewAnalysisMetrics creates the round analysis metrics and registers them.
func NewAnalysisMetrics(registerer prometheus.Registerer) *AnalysisMetrics {
	m := AnalysisMetrics{
		rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_rounds_total",
				Help:      "Observed rounds by outcome (qualified or excluded)",
			},
			[]string{"step", "outcome"},
		),
	}
	registerer.MustRegister(m.rounds)
	return &m
}

// ObserveRound records whether a round reached the threshold.
func (m *AnalysisMetrics) ObserveRound(step string, qualified bool) {
	if m == nil {
		return
	}
	outcome := "excluded"
	if qualified {
		outcome = "qualified"
	}
	m.rounds.WithLabelValues(step, outcome).Inc()
}

// Registry bundles a private registry with both metric sets.
type Registry struct {
	*prometheus.Registry
	Simulation *SimulationMetrics
	Analysis   *AnalysisMetrics
}

// NewRegistry creates an isolated registry so metrics never leak into the
// process-global default registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{
		Registry:   reg,
		Simulation: NewSimulationMetrics(reg),
		Analysis:   NewAnalysisMetrics(reg),
	}
}

// WriteTextfile dumps the registry in the prometheus text exposition format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
