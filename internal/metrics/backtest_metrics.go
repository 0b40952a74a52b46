package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by mode and status",
	}, []string{"mode", "status"})
)

// Backtest histograms
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// Backtest gauge vectors
var (
	BacktestROI = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_roi",
		Help:      "Return on investment of the latest backtest per policy",
	}, []string{"policy"})
)

// RecordBacktestRun records a backtest run event.
// mode should be one of: "replay", "policies"
// status should be one of: "success", "failure"
func RecordBacktestRun(mode, status string, durationSeconds float64) {
	BacktestRunsTotal.WithLabelValues(mode, status).Inc()
	BacktestDuration.Observe(durationSeconds)
}

// UpdateBacktestROI records the ROI a policy achieved in the latest run.
func UpdateBacktestROI(policy string, roi float64) {
	BacktestROI.WithLabelValues(policy).Set(roi)
}
