package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the session collectors. A nil *Metrics records nothing.
type Metrics struct {
	promptTokens      prometheus.Counter
	completionTokens  prometheus.Counter
	generationSeconds prometheus.Histogram
	finishes          *prometheus.CounterVec
	evictions         prometheus.Counter
	snapshotDrops     *prometheus.CounterVec
	snapshotBytes     prometheus.Gauge
}

// NewMetrics creates the session collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		promptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "session",
			Name:      "prompt_tokens_total",
			Help:      "Tokens fed to the engine during prefill",
		}),
		completionTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "session",
			Name:      "completion_tokens_total",
			Help:      "Tokens sampled during generation",
		}),
		generationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatd",
			Subsystem: "session",
			Name:      "generation_seconds",
			Help:      "Duration of generations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "session",
			Name:      "finishes_total",
			Help:      "Finished generations by reason",
		}, []string{"reason"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "session",
			Name:      "evicted_turns_total",
			Help:      "Conversation turns evicted to fit the window or the history limit",
		}),
		snapshotDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "session",
			Name:      "snapshot_drops_total",
			Help:      "Snapshots discarded, by reason",
		}, []string{"reason"}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatd",
			Subsystem: "session",
			Name:      "snapshot_bytes",
			Help:      "Size of the current engine snapshot",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.promptTokens, m.completionTokens, m.generationSeconds,
			m.finishes, m.evictions, m.snapshotDrops, m.snapshotBytes)
	}
	return m
}

func (m *Metrics) observeFinish(r Result) {
	if m == nil {
		return
	}
	m.finishes.WithLabelValues(string(r.FinishReason)).Inc()
	m.promptTokens.Add(float64(r.Usage.PromptTokens))
	m.completionTokens.Add(float64(r.Usage.CompletionTokens))
	if r.Usage.Duration > 0 {
		m.generationSeconds.Observe(r.Usage.Duration.Seconds())
	}
}

func (m *Metrics) evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

func (m *Metrics) snapshotDropped(reason string) {
	if m == nil {
		return
	}
	m.snapshotDrops.WithLabelValues(reason).Inc()
	m.snapshotBytes.Set(0)
}

func (m *Metrics) snapshotTaken(size int) {
	if m == nil {
		return
	}
	m.snapshotBytes.Set(float64(size))
}
