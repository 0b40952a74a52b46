package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/yourusername/race-edge/internal/models"
)

// seedNamespace derives stable record ids from external ids, so seeding the
// same fixture into different stores yields identical keys
var seedNamespace = uuid.MustParse("6f1d3c52-8a0e-4f7b-9a52-2f4c3b9d7e11")

// Fixture is the JSON layout accepted by Seed
type Fixture struct {
	Horses []FixtureHorse `json:"horses" validate:"dive"`
	Races  []FixtureRace  `json:"races" validate:"dive"`
}

// FixtureHorse describes one horse
type FixtureHorse struct {
	HorseID   string `json:"horse_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Sex       string `json:"sex" validate:"omitempty,oneof=male female gelding"`
	BirthDate string `json:"birth_date"`
	Sire      string `json:"sire"`
	Dam       string `json:"dam"`
	DamSire   string `json:"dam_sire"`
}

// FixtureRace describes one race and its card
type FixtureRace struct {
	RaceID         string         `json:"race_id" validate:"required"`
	Name           string         `json:"name"`
	Date           string         `json:"date" validate:"required,datetime=2006-01-02"`
	Venue          string         `json:"venue"`
	Surface        string         `json:"surface" validate:"required,oneof=turf dirt"`
	Distance       int            `json:"distance" validate:"required,gt=0"`
	TrackCondition string         `json:"track_condition"`
	Entries        []FixtureEntry `json:"entries" validate:"dive"`
}

// FixtureEntry describes one start. Result fields are omitted for upcoming races.
type FixtureEntry struct {
	HorseID        string   `json:"horse_id" validate:"required"`
	Bracket        *int     `json:"bracket"`
	HorseNumber    int      `json:"horse_number" validate:"required,gt=0"`
	Jockey         string   `json:"jockey"`
	WeightCarried  *float64 `json:"weight_carried"`
	Odds           *float64 `json:"odds"`
	Popularity     *int     `json:"popularity"`
	FinishPosition *int     `json:"finish_position"`
	FinishTime     string   `json:"finish_time"`
	Margin         string   `json:"margin"`
	PassingOrder   string   `json:"passing_order"`
	Last3F         *float64 `json:"last_3f"`
	BodyWeight     string   `json:"body_weight"`
}

// SeedResult counts inserted records
type SeedResult struct {
	Horses  int
	Races   int
	Entries int
}

// DecodeFixture reads and validates a JSON fixture
func DecodeFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid fixture: %v: %w", err, models.ErrInvalidInput)
	}
	return &f, nil
}

// HorseKey returns the record id Seed assigns to a horse external id
func HorseKey(externalID string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("horse:"+externalID))
}

// RaceKey returns the record id Seed assigns to a race external id
func RaceKey(externalID string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("race:"+externalID))
}

// EntryKey returns the record id Seed assigns to a start
func EntryKey(raceExternalID, horseExternalID string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("entry:"+raceExternalID+":"+horseExternalID))
}

// Seed writes the fixture through w. Records that already exist are skipped,
// so re-applying a fixture is harmless.
func Seed(ctx context.Context, w HistoryWriter, f *Fixture) (SeedResult, error) {
	var res SeedResult

	for _, h := range f.Horses {
		err := w.AddHorse(ctx, &models.Horse{
			ID:         HorseKey(h.HorseID),
			ExternalID: h.HorseID,
			Name:       h.Name,
			Sex:        models.Sex(h.Sex),
			BirthDate:  h.BirthDate,
			Sire:       h.Sire,
			Dam:        h.Dam,
			DamSire:    h.DamSire,
		})
		if skip, err := seedOutcome(err); err != nil {
			return res, err
		} else if !skip {
			res.Horses++
		}
	}

	for _, r := range f.Races {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return res, fmt.Errorf("race %s: %w", r.RaceID, models.ErrInvalidInput)
		}

		raceID := RaceKey(r.RaceID)
		err = w.AddRace(ctx, &models.Race{
			ID:             raceID,
			ExternalID:     r.RaceID,
			Name:           r.Name,
			Date:           date,
			Venue:          r.Venue,
			Surface:        models.Surface(r.Surface),
			Distance:       r.Distance,
			TrackCondition: r.TrackCondition,
			EntrantCount:   len(r.Entries),
		})
		if skip, err := seedOutcome(err); err != nil {
			return res, err
		} else if !skip {
			res.Races++
		}

		for _, e := range r.Entries {
			entry := &models.Entry{
				ID:             EntryKey(r.RaceID, e.HorseID),
				RaceID:         raceID,
				HorseID:        HorseKey(e.HorseID),
				Bracket:        e.Bracket,
				HorseNumber:    e.HorseNumber,
				Jockey:         e.Jockey,
				WeightCarried:  e.WeightCarried,
				Odds:           e.Odds,
				Popularity:     e.Popularity,
				FinishPosition: e.FinishPosition,
				FinishTime:     e.FinishTime,
				Margin:         e.Margin,
				PassingOrder:   e.PassingOrder,
				Last3F:         e.Last3F,
				BodyWeight:     e.BodyWeight,
			}
			if kg, diff, ok := models.ParseBodyWeight(e.BodyWeight); ok {
				entry.BodyWeightKg = &kg
				entry.BodyWeightDiff = diff
			}

			if skip, err := seedOutcome(w.AddEntry(ctx, entry)); err != nil {
				return res, err
			} else if !skip {
				res.Entries++
			}
		}
	}

	return res, nil
}

func seedOutcome(err error) (skipped bool, _ error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, models.ErrDuplicateKey):
		return true, nil
	default:
		return false, err
	}
}
