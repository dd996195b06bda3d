// Package metrics exports enrollment counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workshop_enrollment"

// Recorder tracks booking outcomes and latency on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	seats    *prometheus.CounterVec
}

// New registers the enrollment collectors plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Enrollment attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enroll_duration_seconds",
			Help:      "Latency of enrollment attempts, including lock waits.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		seats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_warnings_total",
			Help:      "Seat counter anomalies observed under the workshop lock.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(
		r.outcomes,
		r.duration,
		r.seats,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveEnrollment records one attempt under its outcome label.
func (r *Recorder) ObserveEnrollment(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// IntegrityWarning counts a seat counter anomaly.
func (r *Recorder) IntegrityWarning(kind string) {
	if r == nil {
		return
	}
	r.seats.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
