package backtest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// EquityPoint is the bankroll after a settled race
type EquityPoint struct {
	Time     time.Time `json:"time"`
	RaceID   string    `json:"race_id,omitempty"`
	Bankroll int64     `json:"bankroll"`
	Drawdown float64   `json:"drawdown"`
}

// EquityCurve represents a time-series of equity points
type EquityCurve []EquityPoint

// GetReturns calculates per-race returns from the equity curve
func (e EquityCurve) GetReturns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].Bankroll
		curr := e[i].Bankroll
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, float64(curr-prev)/float64(prev))
	}
	return returns
}

// GetVolatility calculates standard deviation of returns
func (e EquityCurve) GetVolatility() float64 {
	return stddev(e.GetReturns())
}

// MaxDrawdown returns the largest peak-to-trough fall as a fraction of the peak
func (e EquityCurve) MaxDrawdown() float64 {
	maxDD := 0.0
	var peak int64
	for _, p := range e {
		if p.Bankroll > peak {
			peak = p.Bankroll
		}
		if peak == 0 {
			continue
		}
		drawdown := float64(peak-p.Bankroll) / float64(peak)
		maxDD = math.Max(maxDD, drawdown)
	}
	return maxDD
}

// ToCSV exports equity curve to CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("time,race_id,bankroll,drawdown\n")
	for _, point := range e {
		buf.WriteString(point.Time.Format("2006-01-02"))
		buf.WriteString(",")
		buf.WriteString(point.RaceID)
		buf.WriteString(",")
		buf.WriteString(strconv.FormatInt(point.Bankroll, 10))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Drawdown))
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToJSON exports equity curve to JSON string
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
