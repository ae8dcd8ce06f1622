// Package metrics exposes Prometheus counters and gauges for the relay pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built without
// metrics in tests and offline commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devsonar"

// Flush triggers.
const (
	TriggerDebounce = "debounce"
	TriggerSize     = "size"
	TriggerManual   = "manual"
	TriggerClose    = "close"
)

// Forward outcomes.
const (
	OutcomeForwarded = "forwarded"
	OutcomeFailed    = "failed"
)

// Chunk discard reasons.
const (
	ReasonNulByte     = "nul_byte"
	ReasonReplacement = "replacement_chars"
)

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	reportsReceived   *prometheus.CounterVec // by source
	duplicatesSkipped prometheus.Counter
	flushes           *prometheus.CounterVec // by trigger
	forwards          *prometheus.CounterVec // by outcome
	inFlight          prometheus.Gauge
	pending           prometheus.Gauge
	segmentsEmitted   *prometheus.CounterVec // by language
	chunksDiscarded   *prometheus.CounterVec // by reason
	forwardDuration   prometheus.Histogram
}

// New creates a Metrics with its own registry, including Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		reportsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_received_total",
			Help:      "Error reports accepted by the aggregation buffer",
		}, []string{"source"}),

		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Reports dropped because the same message was already in flight",
		}),

		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Non-empty buffer flushes",
		}, []string{"trigger"}),

		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwards_total",
			Help:      "Settled forward calls",
		}, []string{"outcome"}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight",
			Help:      "Distinct messages currently being forwarded",
		}),

		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending",
			Help:      "Reports waiting for the next flush",
		}),

		segmentsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stderr",
			Name:      "segments_emitted_total",
			Help:      "Error segments closed by stream classifiers",
		}, []string{"language"}),

		chunksDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stderr",
			Name:      "chunks_discarded_total",
			Help:      "Chunks rejected by the encoding noise filter",
		}, []string{"reason"}),

		forwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_duration_seconds",
			Help:      "Time from flush to forward settle",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}

	m.registry.MustRegister(
		m.reportsReceived,
		m.duplicatesSkipped,
		m.flushes,
		m.forwards,
		m.inFlight,
		m.pending,
		m.segmentsEmitted,
		m.chunksDiscarded,
		m.forwardDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ReportReceived counts one report queued by the buffer. An empty source is counted as
// "unknown".
func (m *Metrics) ReportReceived(source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.reportsReceived.WithLabelValues(source).Inc()
}

func (m *Metrics) DuplicateSkipped() {
	if m == nil {
		return
	}
	m.duplicatesSkipped.Inc()
}

func (m *Metrics) Flushed(trigger string) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(trigger).Inc()
}

// ForwardSettled records the outcome and duration of one forward call.
func (m *Metrics) ForwardSettled(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(outcome).Inc()
	m.forwardDuration.Observe(seconds)
}

// SetQueueDepth updates the pending and in-flight gauges.
func (m *Metrics) SetQueueDepth(pending, inFlight int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.inFlight.Set(float64(inFlight))
}

func (m *Metrics) SegmentEmitted(language string) {
	if m == nil {
		return
	}
	m.segmentsEmitted.WithLabelValues(language).Inc()
}

func (m *Metrics) ChunkDiscarded(reason string) {
	if m == nil {
		return
	}
	m.chunksDiscarded.WithLabelValues(reason).Inc()
}
