package models

import (
	"time"

	"github.com/google/uuid"
)

// Entry represents one horse's start in one race. Pre-race fields are known
// at declaration time; result fields stay nil until results are confirmed.
type Entry struct {
	ID             uuid.UUID `db:"id" json:"id" validate:"required"`
	RaceID         uuid.UUID `db:"race_id" json:"race_id" validate:"required"`
	HorseID        uuid.UUID `db:"horse_id" json:"horse_id" validate:"required"`
	Bracket        *int      `db:"bracket" json:"bracket"`
	HorseNumber    int       `db:"horse_number" json:"horse_number" validate:"required,gt=0"`
	Jockey         string    `db:"jockey" json:"jockey"`
	WeightCarried  *float64  `db:"weight_carried" json:"weight_carried"`
	Odds           *float64  `db:"odds" json:"odds"`
	Popularity     *int      `db:"popularity" json:"popularity"`
	FinishPosition *int      `db:"finish_position" json:"finish_position"`
	FinishTime     string    `db:"finish_time" json:"finish_time"`
	Margin         string    `db:"margin" json:"margin"`
	PassingOrder   string    `db:"passing_order" json:"passing_order"`
	Last3F         *float64  `db:"last_3f" json:"last_3f"`
	BodyWeight     string    `db:"body_weight" json:"body_weight"`
	BodyWeightKg   *int      `db:"body_weight_kg" json:"body_weight_kg"`
	BodyWeightDiff *int      `db:"body_weight_diff" json:"body_weight_diff"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// HasFinished checks if a confirmed finish position is recorded
func (e *Entry) HasFinished() bool {
	return e.FinishPosition != nil && *e.FinishPosition > 0
}

// GetOdds returns the pre-race odds or the fallback if none were published
func (e *Entry) GetOdds(fallback float64) float64 {
	if e.Odds == nil {
		return fallback
	}
	return *e.Odds
}

// Entrant is an entry joined with its horse, as listed on a race card
type Entrant struct {
	Entry *Entry `json:"entry"`
	Horse *Horse `json:"horse"`
}

// HistoricalEntry is a past entry joined with the race it was run in
type HistoricalEntry struct {
	Entry          *Entry    `json:"entry"`
	RaceDate       time.Time `json:"race_date"`
	Surface        Surface   `json:"surface"`
	Distance       int       `json:"distance"`
	TrackCondition string    `json:"track_condition"`
}

// Position returns the confirmed finish position and whether one exists
func (h *HistoricalEntry) Position() (int, bool) {
	if h.Entry == nil || !h.Entry.HasFinished() {
		return 0, false
	}
	return *h.Entry.FinishPosition, true
}
