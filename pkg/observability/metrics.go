// Package observability exposes Prometheus instruments for the memory
// subsystem.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
)

// Compaction outcomes recorded in the result label.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultEmpty   = "empty_window"
)

// Metrics groups all Prometheus instruments of one agent process. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	IngestedTraces     *prometheus.CounterVec
	Compactions        *prometheus.CounterVec
	CompactionDuration prometheus.Histogram
	TracesCompacted    prometheus.Counter
	FactsWritten       prometheus.Counter
	PromptTokens       prometheus.Gauge
}

// NewMetrics registers the instruments with reg. A nil reg uses the default
// registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		IngestedTraces: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "ingested_traces_total",
			Help:      "Raw traces appended by trace type.",
		}, []string{"trace_type"}),
		Compactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "compactions_total",
			Help:      "Compaction attempts by result.",
		}, []string{"result"}),
		CompactionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "compaction_duration_ms",
			Help:      "Wall time of successful compactions in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
		TracesCompacted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "traces_compacted_total",
			Help:      "Raw traces moved to the archive by compaction.",
		}),
		FactsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "semantic_facts_written_total",
			Help:      "Semantic items written by compaction.",
		}),
		PromptTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "prompt_tokens",
			Help:      "Estimated tokens of the most recently assembled prompt.",
		}),
	}
}

// ObserveIngest implements memory.IngestObserver.
func (m *Metrics) ObserveIngest(traceType memory.TraceType) {
	if m == nil {
		return
	}
	m.IngestedTraces.WithLabelValues(string(traceType)).Inc()
}

// ObserveCompaction records a finished compaction attempt.
func (m *Metrics) ObserveCompaction(result string, d time.Duration, traces, facts int) {
	if m == nil {
		return
	}
	m.Compactions.WithLabelValues(result).Inc()
	if result != ResultSuccess {
		return
	}
	m.CompactionDuration.Observe(float64(d.Milliseconds()))
	m.TracesCompacted.Add(float64(traces))
	m.FactsWritten.Add(float64(facts))
}

// ObservePromptTokens records the size of an assembled prompt.
func (m *Metrics) ObservePromptTokens(tokens int) {
	if m == nil {
		return
	}
	m.PromptTokens.Set(float64(tokens))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
