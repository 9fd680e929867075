package evolution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes run progress as Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	generation         prometheus.Gauge
	bestFitness        prometheus.Gauge
	meanFitness        prometheus.Gauge
	meanComplexity     prometheus.Gauge
	speciesCount       prometheus.Gauge
	historyEvictions   prometheus.Gauge
	evaluations        prometheus.Counter
	decodeFailures     prometheus.Counter
	generationDuration prometheus.Histogram
}

// NewMetrics registers the evolution collectors with reg. Passing nil registers them with
// the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		generation: f.NewGauge(prometheus.GaugeOpts{
			Name: "neat_generation",
			Help: "Current generation number.",
		}),
		bestFitness: f.NewGauge(prometheus.GaugeOpts{
			Name: "neat_best_fitness",
			Help: "Primary fitness of the best genome.",
		}),
		meanFitness: f.NewGauge(prometheus.GaugeOpts{
			Name: "neat_mean_fitness",
			Help: "Mean primary fitness over the population.",
		}),
		meanComplexity: f.NewGauge(prometheus.GaugeOpts{
			Name: "neat_mean_complexity",
			Help: "Mean connection count over the population.",
		}),
		speciesCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "neat_species",
			Help: "Number of species after the last speciation.",
		}),
		historyEvictions: f.NewGauge(prometheus.GaugeOpts{
			Name: "neat_innovation_history_evictions",
			Help: "Entries overwritten in the innovation history buffers.",
		}),
		evaluations: f.NewCounter(prometheus.CounterOpts{
			Name: "neat_evaluations_total",
			Help: "Genome evaluations performed.",
		}),
		decodeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "neat_decode_failures_total",
			Help: "Genomes that could not be decoded into a network.",
		}),
		generationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "neat_generation_duration_seconds",
			Help:    "Wall time spent per generation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) observe(s GenerationStats, res EvaluationResult, evictions int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generation.Set(float64(s.Generation))
	m.bestFitness.Set(s.BestFitness)
	m.meanFitness.Set(s.MeanFitness)
	m.meanComplexity.Set(s.MeanComplexity)
	m.speciesCount.Set(float64(s.SpeciesCount))
	m.historyEvictions.Set(float64(evictions))
	m.evaluations.Add(float64(res.Evaluated))
	m.decodeFailures.Add(float64(res.DecodeFailures))
	m.generationDuration.Observe(elapsed.Seconds())
}
