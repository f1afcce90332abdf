// Package metrics holds the Prometheus instruments for the discussion engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the voice discussion pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	InterventionsTotal  prometheus.Counter
	TranscriptionsTotal *prometheus.CounterVec
	FallbacksTotal      *prometheus.CounterVec
	RepliesTotal        *prometheus.CounterVec
	ProviderErrorsTotal *prometheus.CounterVec
	ChunksDiscarded     prometheus.Counter
	OrchestratorPhase   *prometheus.GaugeVec
	RunsActive          prometheus.Gauge
}

// Phases lists every orchestrator phase label so the gauge can be one-hot.
var Phases = []string{"idle", "listening", "processing", "speaking", "waiting_answer"}

// New creates a Metrics instance with all metrics registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "spyvoice"
	}

	registry := prometheus.NewRegistry()

	interventionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interventions_total",
			Help:      "Silence-triggered interventions fired",
		},
	)

	transcriptionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Audio chunks transcribed",
		},
		[]string{"provider", "outcome"},
	)

	fallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Operations served by the secondary speech provider",
		},
		[]string{"operation"},
	)

	repliesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "AI lines produced, by strategy",
		},
		[]string{"strategy"},
	)

	providerErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider failures surfaced to the user, by kind",
		},
		[]string{"kind"},
	)

	chunksDiscarded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_discarded_total",
			Help:      "Recordings dropped as too small to be speech",
		},
	)

	orchestratorPhase := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orchestrator_phase",
			Help:      "1 for the orchestrator's current phase, 0 otherwise",
		},
		[]string{"phase"},
	)

	runsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Running discussion pipelines",
		},
	)

	registry.MustRegister(
		interventionsTotal,
		transcriptionsTotal,
		fallbacksTotal,
		repliesTotal,
		providerErrorsTotal,
		chunksDiscarded,
		orchestratorPhase,
		runsActive,
	)

	return &Metrics{
		registry:            registry,
		InterventionsTotal:  interventionsTotal,
		TranscriptionsTotal: transcriptionsTotal,
		FallbacksTotal:      fallbacksTotal,
		RepliesTotal:        repliesTotal,
		ProviderErrorsTotal: providerErrorsTotal,
		ChunksDiscarded:     chunksDiscarded,
		OrchestratorPhase:   orchestratorPhase,
		RunsActive:          runsActive,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordIntervention counts a fired silence intervention.
func (m *Metrics) RecordIntervention() {
	if m == nil {
		return
	}
	m.InterventionsTotal.Inc()
}

// RecordTranscription counts a transcription attempt.
func (m *Metrics) RecordTranscription(provider, outcome string) {
	if m == nil {
		return
	}
	m.TranscriptionsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordFallback counts an operation served by the fallback provider.
func (m *Metrics) RecordFallback(operation string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordReply counts an AI line by strategy.
func (m *Metrics) RecordReply(strategy string) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(strategy).Inc()
}

// RecordProviderError counts a surfaced provider failure.
func (m *Metrics) RecordProviderError(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.ProviderErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordChunkDiscarded counts a dropped recording.
func (m *Metrics) RecordChunkDiscarded() {
	if m == nil {
		return
	}
	m.ChunksDiscarded.Inc()
}

// SetPhase marks phase as current.
func (m *Metrics) SetPhase(phase string) {
	if m == nil {
		return
	}
	for _, p := range Phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.OrchestratorPhase.WithLabelValues(p).Set(v)
	}
}

// RecordRunStart records a pipeline starting.
func (m *Metrics) RecordRunStart() {
	if m == nil {
		return
	}
	m.RunsActive.Inc()
}

// RecordRunEnd records a pipeline stopping.
func (m *Metrics) RecordRunEnd() {
	if m == nil {
		return
	}
	m.RunsActive.Dec()
}
