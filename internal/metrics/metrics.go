// Package metrics provides centralized Prometheus metrics registry for the race predictor.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "race_edge"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Total number of race predictions by method and outcome",
	}, []string{"method", "outcome"})
	AnomalyFlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anomaly_flags_total",
		Help:      "Total number of anomaly flags raised on predicted races",
	}, []string{"flag"})
	CalibrationFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calibration_fallbacks_total",
		Help:      "Total number of predictions that fell back to softmax probabilities",
	})
	ModelReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_reloads_total",
		Help:      "Total number of scheduled model bundle reloads",
	}, []string{"status"})
)

// Gauge metrics
var (
	CurrentBankroll = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "current_bankroll",
		Help:      "Current bankroll in the smallest currency unit",
	})
	InFlightPredictions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "in_flight_predictions",
		Help:      "Number of predictions currently holding a worker slot",
	})
)

// Histogram metrics
var (
	PredictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_duration_seconds",
		Help:      "Duration of a full race prediction in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	FeatureBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feature_build_duration_seconds",
		Help:      "Duration of feature extraction for one race in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(PredictionsTotal)
		registry.MustRegister(AnomalyFlagsTotal)
		registry.MustRegister(CalibrationFallbacksTotal)
		registry.MustRegister(ModelReloadsTotal)

		// Register gauge metrics
		registry.MustRegister(CurrentBankroll)
		registry.MustRegister(InFlightPredictions)

		// Register histogram metrics
		registry.MustRegister(PredictionDuration)
		registry.MustRegister(FeatureBuildDuration)

		// Register stake metrics
		registry.MustRegister(StakeDecisionsTotal)
		registry.MustRegister(StakeAmount)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(BacktestROI)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler. Scorer metrics live on the
// default registry, so both are gathered.
func Handler() http.Handler {
	gatherers := prometheus.Gatherers{GetRegistry(), prometheus.DefaultGatherer}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

// RecordPrediction records a completed race prediction.
// outcome should be one of: "success", "not_found", "insufficient_data", "model_unavailable", "error"
func RecordPrediction(method, outcome string, durationSeconds float64) {
	if method == "" {
		method = "none"
	}
	PredictionsTotal.WithLabelValues(method, outcome).Inc()
	PredictionDuration.Observe(durationSeconds)
}

// RecordAnomalyFlag records an advisory anomaly flag.
func RecordAnomalyFlag(flag string) {
	AnomalyFlagsTotal.WithLabelValues(flag).Inc()
}

// RecordCalibrationFallback records a softmax fallback.
func RecordCalibrationFallback() {
	CalibrationFallbacksTotal.Inc()
}

// RecordModelReload records a bundle reload attempt.
func RecordModelReload(status string) {
	ModelReloadsTotal.WithLabelValues(status).Inc()
}

// RecordFeatureBuild records feature extraction latency.
func RecordFeatureBuild(durationSeconds float64) {
	FeatureBuildDuration.Observe(durationSeconds)
}

// UpdateBankroll updates the current bankroll gauge.
func UpdateBankroll(amount float64) {
	CurrentBankroll.Set(amount)
}

// PredictionStarted marks a worker slot as taken.
func PredictionStarted() {
	InFlightPredictions.Inc()
}

// PredictionFinished releases a worker slot in the gauge.
func PredictionFinished() {
	InFlightPredictions.Dec()
}
