// Package metrics exposes lifecycle updates as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"integctl/internal/apperrors"
	"integctl/internal/reporting"
)

const namespace = "integctl"

// Recorder turns reporting updates into metrics. It is a reporting.Reporter.
type Recorder struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	applications *prometheus.GaugeVec
	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec
}

var _ reporting.Reporter = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Counts application state transitions by target and new state.",
		}, []string{"target", "state"}),
		applications: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "applications",
			Help:      "Number of applications per lifecycle state.",
		}, []string{"state"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of lifecycle steps by step, target and outcome.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"step", "target", "outcome"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Counts failed lifecycle steps by step and error kind.",
		}, []string{"step", "kind"}),
	}
	r.registry.MustRegister(r.transitions, r.applications, r.stepDuration, r.stepFailures)
	return r
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Report implements reporting.Reporter.
func (r *Recorder) Report(update reporting.Update) {
	if update.Transition() {
		r.transitions.WithLabelValues(update.Target, string(update.State)).Inc()
		if update.Previous != "" {
			r.applications.WithLabelValues(string(update.Previous)).Dec()
		}
		r.applications.WithLabelValues(string(update.State)).Inc()
	}

	if update.Step == "" {
		return
	}
	outcome := "success"
	if update.Err != nil {
		outcome = "failure"
		kind := string(apperrors.KindOf(update.Err))
		if kind == "" {
			kind = "unknown"
		}
		r.stepFailures.WithLabelValues(update.Step, kind).Inc()
	}
	r.stepDuration.WithLabelValues(update.Step, update.Target, outcome).Observe(update.Duration.Seconds())
}
