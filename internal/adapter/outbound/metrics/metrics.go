// Package metrics holds the Prometheus instrumentation for the evaluation
// orchestration service: decision outcome counters, per-request evaluation
// latency, reference-resolution depth, and memo cache hit/miss counters. Grounded on the teacher's
// internal/adapter/inbound/http.Metrics (promauto-registered Counter/
// CounterVec/HistogramVec under one struct, passed by reference to whatever
// component records against it).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the policy evaluation core.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	ReferenceChainDepth prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
}

// New creates and registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdp",
				Name:      "decisions_total",
				Help:      "Total number of policy decisions by outcome",
			},
			[]string{"decision"}, // Permit/Deny/NotApplicable/Indeterminate
		),
		EvaluationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pdp",
				Name:      "evaluation_duration_seconds",
				Help:      "Time to evaluate one request against the root evaluator",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ReferenceChainDepth: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pdp",
				Name:      "reference_chain_depth",
				Help:      "Depth of the PolicyIdReference/PolicySetIdReference chain reached per request",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		CacheHitsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "pdp",
				Name:      "memo_cache_hits_total",
				Help:      "Total per-request evaluator memo cache hits",
			},
		),
		CacheMissesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "pdp",
				Name:      "memo_cache_misses_total",
				Help:      "Total per-request evaluator memo cache misses",
			},
		),
	}
}
