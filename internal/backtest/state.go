package backtest

import (
	"time"

	"github.com/google/uuid"
)

// SettledBet is one wager settled against a confirmed finish
type SettledBet struct {
	RaceID        string    `json:"race_id"`
	RaceDate      time.Time `json:"race_date"`
	HorseID       uuid.UUID `json:"horse_id"`
	HorseNumber   int       `json:"horse_number"`
	HorseName     string    `json:"horse_name"`
	Policy        string    `json:"policy"`
	Stake         int64     `json:"stake"`
	Odds          float64   `json:"odds"`
	Probability   float64   `json:"probability"`
	Won           bool      `json:"won"`
	Payout        int64     `json:"payout"`
	ProfitLoss    int64     `json:"profit_loss"`
	BankrollAfter int64     `json:"bankroll_after"`
}

// State tracks the bankroll of one policy through a replay
type State struct {
	Policy          string
	InitialBankroll int64
	CurrentBankroll int64
	PeakBankroll    int64
	Bets            []*SettledBet
	EquityCurve     EquityCurve
	DailyPnL        map[time.Time]int64
	RacesEvaluated  int
	RacesBet        int
	RacesSkipped    int
	Halted          bool
}

// NewState initializes replay state with a starting equity point
func NewState(policy string, initialBankroll int64, start time.Time) *State {
	state := &State{
		Policy:          policy,
		InitialBankroll: initialBankroll,
		CurrentBankroll: initialBankroll,
		PeakBankroll:    initialBankroll,
		Bets:            []*SettledBet{},
		EquityCurve:     EquityCurve{},
		DailyPnL:        make(map[time.Time]int64),
	}
	state.RecordEquityPoint(start, "", initialBankroll)
	return state
}

// ApplyRace books every settled bet of one race and moves the bankroll once
// by their combined result
func (s *State) ApplyRace(raceID string, raceDate time.Time, bets []*SettledBet) int64 {
	s.RacesEvaluated++
	if len(bets) == 0 {
		return 0
	}

	var delta int64
	for _, bet := range bets {
		delta += bet.ProfitLoss
	}

	s.CurrentBankroll += delta
	if s.CurrentBankroll > s.PeakBankroll {
		s.PeakBankroll = s.CurrentBankroll
	}
	for _, bet := range bets {
		bet.BankrollAfter = s.CurrentBankroll
	}
	s.Bets = append(s.Bets, bets...)
	s.RacesBet++

	day := time.Date(raceDate.Year(), raceDate.Month(), raceDate.Day(), 0, 0, 0, 0, time.UTC)
	s.DailyPnL[day] += delta
	s.RecordEquityPoint(raceDate, raceID, s.CurrentBankroll)

	return delta
}

// GetCurrentDrawdown calculates peak-to-trough drawdown
func (s *State) GetCurrentDrawdown() float64 {
	if s.PeakBankroll <= 0 {
		return 0
	}
	drawdown := float64(s.PeakBankroll-s.CurrentBankroll) / float64(s.PeakBankroll)
	if drawdown < 0 {
		return 0
	}
	return drawdown
}

// RecordEquityPoint adds an equity point to the curve
func (s *State) RecordEquityPoint(t time.Time, raceID string, bankroll int64) {
	drawdown := 0.0
	if bankroll < s.PeakBankroll && s.PeakBankroll > 0 {
		drawdown = float64(s.PeakBankroll-bankroll) / float64(s.PeakBankroll)
	}

	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Time:     t,
		RaceID:   raceID,
		Bankroll: bankroll,
		Drawdown: drawdown,
	})
}
