package ml

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScorerLatency tracks scoring latency per model
	ScorerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "race_edge",
			Name:      "scorer_latency_seconds",
			Help:      "Scoring latency per model in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model", "kind"},
	)

	// ScorerErrorsTotal tracks scoring failures
	ScorerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "race_edge",
			Name:      "scorer_errors_total",
			Help:      "Total number of failed scoring calls",
		},
		[]string{"model", "kind", "error_type"},
	)

	// ScorerCacheTotal tracks cached scorer lookups
	ScorerCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "race_edge",
			Name:      "scorer_cache_total",
			Help:      "Total number of cached scorer lookups",
		},
		[]string{"model", "cache_hit"},
	)

	// CalibrationErrorsTotal tracks calibrator failures
	CalibrationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "race_edge",
			Name:      "calibration_errors_total",
			Help:      "Total number of calibrator failures",
		},
		[]string{"method"},
	)
)
