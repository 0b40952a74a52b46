package metrics

import "github.com/prometheus/client_golang/prometheus"

// Stake sizing counter vectors
var (
	StakeDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stake_decisions_total",
		Help:      "Total number of stake decisions by policy, decision and reason",
	}, []string{"policy", "decision", "reason"})
)

// Stake sizing histogram vectors
var (
	StakeAmount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stake_amount",
		Help:      "Recommended stakes in the smallest currency unit",
		Buckets:   []float64{100, 200, 500, 1000, 2000, 5000, 10000, 50000},
	}, []string{"policy"})
)

// RecordStakeDecision records one sizing decision. Stakes are only observed for BUY.
func RecordStakeDecision(policy, decision, reason string, stake int64) {
	StakeDecisionsTotal.WithLabelValues(policy, decision, reason).Inc()
	if stake > 0 {
		StakeAmount.WithLabelValues(policy).Observe(float64(stake))
	}
}
