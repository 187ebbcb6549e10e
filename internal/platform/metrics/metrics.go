package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the render orchestrator.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	framesRenderedTotal prometheus.Counter
	frameFailuresTotal  prometheus.Counter
	buildsTotal         prometheus.Counter
	projectUpdatesTotal prometheus.Counter
	activePipelines     prometheus.Gauge
	errorsTotal         prometheus.Counter
}

// New creates and registers Prometheus metrics for the orchestrator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_requests_total",
		Help: "Total number of HTTP requests received",
	})
	framesRenderedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_frames_rendered_total",
		Help: "Total number of frames rendered successfully",
	})
	frameFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_frame_failures_total",
		Help: "Total number of per-frame render failures",
	})
	buildsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_compositions_built_total",
		Help: "Total number of compositions built or rebuilt",
	})
	projectUpdatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_project_updates_total",
		Help: "Total number of project state updates",
	})
	activePipelines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "render_active_pipelines",
		Help: "Number of pipelines that have not been torn down",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		framesRenderedTotal,
		frameFailuresTotal,
		buildsTotal,
		projectUpdatesTotal,
		activePipelines,
		errorsTotal,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		framesRenderedTotal: framesRenderedTotal,
		frameFailuresTotal:  frameFailuresTotal,
		buildsTotal:         buildsTotal,
		projectUpdatesTotal: projectUpdatesTotal,
		activePipelines:     activePipelines,
		errorsTotal:         errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncFramesRendered increments the rendered frame counter.
func (m *Metrics) IncFramesRendered() {
	m.framesRenderedTotal.Inc()
}

// IncFrameFailures increments the per-frame failure counter.
func (m *Metrics) IncFrameFailures() {
	m.frameFailuresTotal.Inc()
}

// IncBuilds increments the composition build counter.
func (m *Metrics) IncBuilds() {
	m.buildsTotal.Inc()
}

// IncProjectUpdates increments the project update counter.
func (m *Metrics) IncProjectUpdates() {
	m.projectUpdatesTotal.Inc()
}

// SetActivePipelines sets the active pipeline gauge.
func (m *Metrics) SetActivePipelines(n int) {
	m.activePipelines.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active pipelines).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
