// Package obs holds the Prometheus instrumentation shared by the engine.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the engine's instrument set. Create one per process with New
// and share it across sessions.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	BargeIns         prometheus.Counter
	ToolCalls        *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	SynthesisLatency prometheus.Histogram
	FirstAudioDelay  prometheus.Histogram
}

// New registers the instrument set on reg and returns it. Pass
// prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voicewire",
			Name:      "active_sessions",
			Help:      "Number of live call sessions.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicewire",
			Name:      "sessions_started_total",
			Help:      "Total call sessions started.",
		}),
		BargeIns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicewire",
			Name:      "barge_ins_total",
			Help:      "Total times a caller interrupted agent playback.",
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicewire",
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the model, by tool name.",
		}, []string{"tool"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicewire",
			Name:      "errors_total",
			Help:      "Errors surfaced to sessions, by error type.",
		}, []string{"type"}),
		SynthesisLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicewire",
			Name:      "synthesis_latency_seconds",
			Help:      "Time from sentence ready to synthesized audio.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		FirstAudioDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicewire",
			Name:      "first_audio_delay_seconds",
			Help:      "Time from endpoint to the first agent audio frame.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
	}

	reg.MustRegister(
		m.ActiveSessions,
		m.SessionsStarted,
		m.BargeIns,
		m.ToolCalls,
		m.Errors,
		m.SynthesisLatency,
		m.FirstAudioDelay,
	)
	return m
}
