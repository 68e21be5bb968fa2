package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions      prometheus.Gauge
	InboundEvents       *prometheus.CounterVec
	PhaseTransitions    *prometheus.CounterVec
	ProviderErrors      *prometheus.CounterVec
	Fallbacks           *prometheus.CounterVec
	HandlerFailures     *prometheus.CounterVec
	DuplicateDeliveries prometheus.Counter
	WSMessages          *prometheus.CounterVec
	SynthesisChunks     prometheus.Histogram
	SynthesisSegments   prometheus.Counter
	SynthesizedAudio    prometheus.Counter
	StageLatency        *prometheus.HistogramVec

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of stored conversation sessions.",
		}),
		InboundEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound chat events by kind.",
		}, []string{"kind"}),
		PhaseTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Conversation phase transitions.",
		}, []string{"from", "to"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		Fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Secondary paths taken by component and step.",
		}, []string{"component", "step"}),
		HandlerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Inbound events that ended in an unrecovered error.",
		}, []string{"kind"}),
		DuplicateDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_deliveries_total",
			Help:      "Gateway redeliveries dropped by message id.",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		SynthesisChunks: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_chunks",
			Help:      "Text chunks per synthesized asset.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		SynthesisSegments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_segments_total",
			Help:      "Audio segments encoded for synthesized assets.",
		}),
		SynthesizedAudio: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesized_audio_seconds_total",
			Help:      "Playback length of published audio assets.",
		}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		}, []string{"stage"}),
		stages: newStageWindow(256),
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) ObserveInbound(kind string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveProviderError(provider, code string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) ObserveFallback(component, step string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(component, step).Inc()
	m.stages.ObserveIndicator("fallback_" + component)
}

func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.HandlerFailures.WithLabelValues(kind).Inc()
	m.stages.ObserveIndicator("failure_" + kind)
}

func (m *Metrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.DuplicateDeliveries.Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveSynthesis(chunks, segments int, audio time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisChunks.Observe(float64(chunks))
	m.SynthesisSegments.Add(float64(segments))
	m.SynthesizedAudio.Add(audio.Seconds())
}

// ObserveStage records one pipeline stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.stages.Observe(stage, ms)
}

// Since is a helper for deferred stage timing.
func (m *Metrics) Since(stage string, start time.Time) {
	m.ObserveStage(stage, time.Since(start))
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.stages.Snapshot()
}

// StatusCode renders an HTTP status for the provider_errors code label.
func StatusCode(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
