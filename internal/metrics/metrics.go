// Package metrics exposes Prometheus instrumentation for the video service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service registers. A dedicated registry
// keeps the scrape output free of default Go runtime noise from other
// libraries registering globally.
type Metrics struct {
	registry *prometheus.Registry

	JobsStarted       prometheus.Counter
	JobsCompleted     prometheus.Counter
	JobsFailed        prometheus.Counter
	SegmentsGenerated prometheus.Counter
	ActiveJobs        prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPErrors   *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promoreel_jobs_started_total",
			Help: "Video generation jobs accepted.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promoreel_jobs_completed_total",
			Help: "Video generation jobs that produced a final video.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promoreel_jobs_failed_total",
			Help: "Video generation jobs that ended in failure.",
		}),
		SegmentsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promoreel_segments_generated_total",
			Help: "Individual video segments synthesized.",
		}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promoreel_active_jobs",
			Help: "Jobs currently processing.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promoreel_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "path"}),
		HTTPErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promoreel_http_errors_total",
			Help: "HTTP responses with status >= 500.",
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		m.JobsStarted,
		m.JobsCompleted,
		m.JobsFailed,
		m.SegmentsGenerated,
		m.ActiveJobs,
		m.HTTPRequests,
		m.HTTPErrors,
	)

	return m
}

// Handler returns the scrape endpoint. updateGauges, if non-nil, runs before
// each scrape so point-in-time gauges reflect current state.
func (m *Metrics) Handler(updateGauges func(*Metrics)) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges(m)
		}
		inner.ServeHTTP(w, r)
	})
}
