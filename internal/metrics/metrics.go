package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder publishes search progress. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	best        *prometheus.GaugeVec
	mean        *prometheus.GaugeVec
	stddev      *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dojo_generations_total",
			Help: "Completed generations or swarm iterations.",
		}, []string{"run_id", "archetype"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dojo_genome_evaluations_total",
			Help: "Genome scoring calls.",
		}, []string{"run_id", "archetype"}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dojo_best_score",
			Help: "Best score of the latest generation.",
		}, []string{"run_id", "archetype"}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dojo_mean_score",
			Help: "Mean score of the latest generation.",
		}, []string{"run_id", "archetype"}),
		stddev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dojo_score_stddev",
			Help: "Population standard deviation of the latest generation's scores.",
		}, []string{"run_id", "archetype"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dojo_generation_seconds",
			Help:    "Wall time spent per generation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"run_id", "archetype"}),
	}
	r.registry.MustRegister(r.generations, r.evaluations, r.best, r.mean, r.stddev, r.duration)
	return r
}

// ObserveGeneration records one finished generation.
func (r *Recorder) ObserveGeneration(runID, archetype string, best, mean, stddev float64, evaluations int, seconds float64) {
	if r == nil {
		return
	}
	labels := prometheus.Labels{"run_id": runID, "archetype": archetype}
	r.generations.With(labels).Inc()
	r.evaluations.With(labels).Add(float64(evaluations))
	r.best.With(labels).Set(best)
	r.mean.With(labels).Set(mean)
	r.stddev.With(labels).Set(stddev)
	r.duration.With(labels).Observe(seconds)
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
