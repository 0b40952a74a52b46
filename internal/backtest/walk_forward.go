package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// WalkForwardConfig splits the backtest range into consecutive windows
type WalkForwardConfig struct {
	WindowDays       int
	MinBetsPerWindow int
}

// WalkForwardWindow is one out-of-sample window replayed from a fresh bankroll
type WalkForwardWindow struct {
	WindowID int       `json:"window_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Metrics  Metrics   `json:"metrics"`
}

// WalkForwardResult summarizes how stable a policy is across windows
type WalkForwardResult struct {
	Policy            string              `json:"policy"`
	Windows           []WalkForwardWindow `json:"windows"`
	AggregatedMetrics Metrics             `json:"aggregated_metrics"`
	ConsistencyScore  float64             `json:"consistency_score"`
	ROIDispersion     float64             `json:"roi_dispersion"`
}

// RunWalkForward replays each window of the configured range independently
// under policy. Models are fixed artifacts, so every window is out of sample
// as long as the features stay point-in-time.
func RunWalkForward(ctx context.Context, engine *Engine, policy string, cfg WalkForwardConfig) (WalkForwardResult, error) {
	if engine == nil {
		return WalkForwardResult{}, fmt.Errorf("engine is required")
	}
	if cfg.WindowDays <= 0 {
		return WalkForwardResult{}, fmt.Errorf("window days must be positive")
	}

	start := engine.config.StartDate
	end := engine.config.EndDate
	windows := []WalkForwardWindow{}
	windowID := 0

	for current := start; !current.After(end); current = current.AddDate(0, 0, cfg.WindowDays) {
		windowEnd := current.AddDate(0, 0, cfg.WindowDays-1)
		if windowEnd.After(end) {
			windowEnd = end
		}

		windowID++
		results, err := engine.Run(ctx, current, windowEnd, policy)
		if err != nil {
			return WalkForwardResult{}, err
		}
		if results[0].Metrics.TotalBets < cfg.MinBetsPerWindow {
			continue
		}

		windows = append(windows, WalkForwardWindow{
			WindowID: windowID,
			Start:    current,
			End:      windowEnd,
			Metrics:  results[0].Metrics,
		})
	}

	rois := make([]float64, len(windows))
	for i, w := range windows {
		rois[i] = w.Metrics.ROI
	}

	return WalkForwardResult{
		Policy:            policy,
		Windows:           windows,
		AggregatedMetrics: aggregateWalkForward(windows),
		ConsistencyScore:  CalculateConsistency(windows),
		ROIDispersion:     stddev(rois),
	}, nil
}

// CalculateConsistency calculates the share of profitable windows
func CalculateConsistency(windows []WalkForwardWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	profitable := 0
	for _, w := range windows {
		if w.Metrics.NetProfit > 0 {
			profitable++
		}
	}
	return float64(profitable) / float64(len(windows))
}

func aggregateWalkForward(windows []WalkForwardWindow) Metrics {
	if len(windows) == 0 {
		return Metrics{}
	}
	metrics := Metrics{Policy: windows[0].Metrics.Policy}
	for _, w := range windows {
		metrics.ROI += w.Metrics.ROI
		metrics.TotalReturn += w.Metrics.TotalReturn
		metrics.SharpeRatio += w.Metrics.SharpeRatio
		metrics.MaxDrawdown += w.Metrics.MaxDrawdown
		metrics.HitRate += w.Metrics.HitRate
		metrics.TotalBets += w.Metrics.TotalBets
		metrics.NetProfit += w.Metrics.NetProfit
	}
	n := float64(len(windows))
	metrics.ROI /= n
	metrics.TotalReturn /= n
	metrics.SharpeRatio /= n
	metrics.MaxDrawdown /= n
	metrics.HitRate /= n
	return metrics
}

// ToJSON exports the walk-forward result
func (w WalkForwardResult) ToJSON() string {
	data, _ := json.Marshal(w)
	return string(data)
}
