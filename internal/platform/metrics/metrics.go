package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the render pipeline.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	historyUpdates  *prometheus.CounterVec
	fetchErrors     *prometheus.CounterVec
	chunkAttempts   *prometheus.CounterVec
	chunkFailures   *prometheus.CounterVec
	segments        *prometheus.CounterVec
	videosAssembled *prometheus.CounterVec
	audioFallbacks  *prometheus.CounterVec
	renderJobs      *prometheus.CounterVec
	activeRenders   prometheus.Gauge
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reel_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reel_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		historyUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_history_updates_total",
			Help: "Total number of history snapshot updates",
		}, []string{"group"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_fetch_errors_total",
			Help: "Total number of failed per-item metrics fetches",
		}, []string{"group"}),
		chunkAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_chunk_attempts_total",
			Help: "Total number of render chunk attempts",
		}, []string{"group"}),
		chunkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_chunk_failures_total",
			Help: "Total number of failed render chunk attempts",
		}, []string{"group"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_segments_total",
			Help: "Day segments by outcome (rendered, reused, failed, skipped)",
		}, []string{"group", "outcome"}),
		videosAssembled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_videos_assembled_total",
			Help: "Total number of final videos assembled",
		}, []string{"group"}),
		audioFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_audio_fallbacks_total",
			Help: "Final videos published without an audio track",
		}, []string{"group"}),
		renderJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reel_render_jobs_total",
			Help: "Render jobs accepted over HTTP",
		}, []string{"group"}),
		activeRenders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reel_active_renders",
			Help: "Number of day renders currently in progress",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.historyUpdates,
		m.fetchErrors,
		m.chunkAttempts,
		m.chunkFailures,
		m.segments,
		m.videosAssembled,
		m.audioFallbacks,
		m.renderJobs,
		m.activeRenders,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncHistoryUpdates counts one persisted snapshot update.
func (m *Metrics) IncHistoryUpdates(group string) {
	if m == nil {
		return
	}
	m.historyUpdates.WithLabelValues(group).Inc()
}

// IncFetchErrors counts one failed metrics fetch.
func (m *Metrics) IncFetchErrors(group string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(group).Inc()
}

// ObserveChunk records the outcome of one chunk attempt.
func (m *Metrics) ObserveChunk(group string, ok bool) {
	if m == nil {
		return
	}
	m.chunkAttempts.WithLabelValues(group).Inc()
	if !ok {
		m.chunkFailures.WithLabelValues(group).Inc()
	}
}

// IncSegments counts a day segment by outcome.
func (m *Metrics) IncSegments(group, outcome string) {
	if m == nil {
		return
	}
	m.segments.WithLabelValues(group, outcome).Inc()
}

// IncVideosAssembled counts one final video.
func (m *Metrics) IncVideosAssembled(group string) {
	if m == nil {
		return
	}
	m.videosAssembled.WithLabelValues(group).Inc()
}

// IncAudioFallbacks counts one final video published silent.
func (m *Metrics) IncAudioFallbacks(group string) {
	if m == nil {
		return
	}
	m.audioFallbacks.WithLabelValues(group).Inc()
}

// IncRenderJobs counts one accepted render job.
func (m *Metrics) IncRenderJobs(group string) {
	if m == nil {
		return
	}
	m.renderJobs.WithLabelValues(group).Inc()
}

// RenderStarted increments the active renders gauge.
func (m *Metrics) RenderStarted() {
	if m == nil {
		return
	}
	m.activeRenders.Inc()
}

// RenderFinished decrements the active renders gauge.
func (m *Metrics) RenderFinished() {
	if m == nil {
		return
	}
	m.activeRenders.Dec()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
