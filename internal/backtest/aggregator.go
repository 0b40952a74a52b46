package backtest

import (
	"math"
	"sort"
)

// Recommendation labels for a policy compared against the baseline
const (
	RecommendationAccept      = "ACCEPT"
	RecommendationReject      = "REJECT"
	RecommendationNeedsReview = "NEEDS_REVIEW"
)

// PolicyComparison scores one policy of a simulation against the baseline
type PolicyComparison struct {
	Policy          string  `json:"policy"`
	ROI             float64 `json:"roi"`
	ROIOverBaseline float64 `json:"roi_over_baseline"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	HitRate         float64 `json:"hit_rate"`
	TotalBets       int     `json:"total_bets"`
	NetProfit       int64   `json:"net_profit"`
	CompositeScore  float64 `json:"composite_score"`
	Recommendation  string  `json:"recommendation"`
}

// Compare ranks simulation results by composite score. The baseline policy is
// scored too so its row anchors the table.
func Compare(results []Result, baseline string) []PolicyComparison {
	baseROI := 0.0
	for _, r := range results {
		if r.Policy == baseline {
			baseROI = r.Metrics.ROI
		}
	}

	out := make([]PolicyComparison, 0, len(results))
	for _, r := range results {
		m := r.Metrics
		score := CalculateCompositeScore(m)
		out = append(out, PolicyComparison{
			Policy:          r.Policy,
			ROI:             m.ROI,
			ROIOverBaseline: m.ROI - baseROI,
			MaxDrawdown:     m.MaxDrawdown,
			HitRate:         m.HitRate,
			TotalBets:       m.TotalBets,
			NetProfit:       m.NetProfit,
			CompositeScore:  score,
			Recommendation:  GenerateRecommendation(score, m, m.ROI-baseROI),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompositeScore > out[j].CompositeScore
	})
	return out
}

// CalculateCompositeScore blends risk and return metrics into [0, 1]
func CalculateCompositeScore(metrics Metrics) float64 {
	sharpeScore := normalize(metrics.SharpeRatio, -2, 3)
	roiScore := normalize(metrics.ROI, -0.5, 1.0)
	profitFactorScore := normalize(metrics.ProfitFactor, 0, 3)
	drawdownPenalty := 1.0 - normalize(metrics.MaxDrawdown, 0, 0.5)
	hitRateScore := normalize(metrics.HitRate, 0, 1)

	weighted := 0.0
	weighted += sharpeScore * 0.30
	weighted += roiScore * 0.20
	weighted += profitFactorScore * 0.20
	weighted += drawdownPenalty * 0.15
	weighted += hitRateScore * 0.15
	return weighted
}

// GenerateRecommendation decides whether a policy beats the baseline
// convincingly enough to run
func GenerateRecommendation(score float64, metrics Metrics, overBaseline float64) string {
	if metrics.TotalBets == 0 {
		return RecommendationNeedsReview
	}
	if score > 0.6 && metrics.ROI > 0 && overBaseline > 0 && !metrics.Halted {
		return RecommendationAccept
	}
	if score < 0.4 || metrics.ROI < -0.2 || metrics.Halted {
		return RecommendationReject
	}
	return RecommendationNeedsReview
}

func normalize(value, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	v := (value - min) / (max - min)
	return math.Max(0, math.Min(1, v))
}
