package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BetDecision represents the outcome of a sizing policy for one entrant
type BetDecision string

const (
	BetDecisionBuy  BetDecision = "BUY"
	BetDecisionSkip BetDecision = "SKIP"
)

// WagerType represents the pool a wager is placed into
type WagerType string

const (
	WagerTypeWin   WagerType = "WIN"
	WagerTypePlace WagerType = "PLACE"
)

// BetRecommendation is the stake decision for one entrant. Stake is expressed
// in the smallest currency unit and is always a multiple of the sizing
// denomination.
type BetRecommendation struct {
	HorseID       uuid.UUID   `json:"horse_id"`
	HorseNumber   int         `json:"horse_number"`
	WagerType     WagerType   `json:"wager_type"`
	Decision      BetDecision `json:"decision"`
	Stake         int64       `json:"stake"`
	Probability   float64     `json:"probability"`
	Odds          float64     `json:"odds"`
	ExpectedValue float64     `json:"expected_value"`
	Edge          float64     `json:"edge"`
	KellyFraction float64     `json:"kelly_fraction"`
	Policy        string      `json:"policy"`
	PlaceEligible bool        `json:"place_eligible,omitempty"`
	Reason        string      `json:"reason,omitempty"`
}

// IsBuy checks if the recommendation places a stake
func (b *BetRecommendation) IsBuy() bool {
	return b.Decision == BetDecisionBuy && b.Stake > 0
}

// Payout returns the gross return of the wager given whether it won,
// truncated to the smallest currency unit
func (b *BetRecommendation) Payout(won bool) int64 {
	if !b.IsBuy() || !won {
		return 0
	}
	return decimal.NewFromInt(b.Stake).Mul(decimal.NewFromFloat(b.Odds)).IntPart()
}

// ProfitLoss returns the net result of the wager given whether it won
func (b *BetRecommendation) ProfitLoss(won bool) int64 {
	if !b.IsBuy() {
		return 0
	}
	return b.Payout(won) - b.Stake
}
