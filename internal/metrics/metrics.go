// Package metrics exposes extraction counters to Prometheus.
package metrics

import (
	"NetSentry/internal/extractor"

	"github.com/prometheus/client_golang/prometheus"
)

// Extraction outcomes used as the "result" label.
const (
	ResultOK      = "ok"
	ResultNoFlows = "no_flows"
	ResultError   = "error"
)

// Metrics groups the engine's collectors. All methods are safe for concurrent use.
type Metrics struct {
	frames      prometheus.Counter
	skipped     prometheus.Counter
	flows       prometheus.Counter
	coerced     prometheus.Counter
	extractions *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_frames_total",
			Help: "Frames read from capture files.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_frames_skipped_total",
			Help: "Frames that were not Ethernet/IPv4 or were malformed.",
		}),
		flows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_flows_total",
			Help: "Flows finalized and mapped to feature vectors.",
		}),
		coerced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_fields_coerced_total",
			Help: "Feature fields coerced from NaN or Inf to 0.",
		}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentry_extractions_total",
			Help: "Capture extractions by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netsentry_extraction_seconds",
			Help:    "Wall time spent extracting one capture.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	reg.MustRegister(m.frames, m.skipped, m.flows, m.coerced, m.extractions, m.duration)
	return m
}

// ObserveResult records a finished extraction.
func (m *Metrics) ObserveResult(res *extractor.Result) {
	m.frames.Add(float64(res.Stats.Frames))
	m.skipped.Add(float64(res.Stats.Skipped))
	m.flows.Add(float64(res.Stats.Flows))
	m.coerced.Add(float64(res.Stats.CoercedFields))
	m.duration.Observe(res.Elapsed.Seconds())
	if res.Valid {
		m.extractions.WithLabelValues(ResultOK).Inc()
	} else {
		m.extractions.WithLabelValues(ResultNoFlows).Inc()
	}
}

// ObserveError records an extraction that failed before producing a result.
func (m *Metrics) ObserveError() {
	m.extractions.WithLabelValues(ResultError).Inc()
}
