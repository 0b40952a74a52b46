package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/race-edge/internal/models"
)

// HistoryStore is the read side of the entrant history store. Every history
// query is strictly before the given date, so a race never sees its own or
// later results.
type HistoryStore interface {
	// GetRace looks up a race by its external identifier.
	GetRace(ctx context.Context, externalID string) (*models.Race, error)
	// GetRaceEntrants returns the race card ordered by horse number.
	GetRaceEntrants(ctx context.Context, raceID uuid.UUID) ([]*models.Entrant, error)
	// GetHorseHistory returns a horse's past starts, newest first.
	GetHorseHistory(ctx context.Context, horseID uuid.UUID, before time.Time, excludeEntryID uuid.UUID) ([]*models.HistoricalEntry, error)
	// GetJockeyHistory returns every past ride of a jockey, newest first.
	GetJockeyHistory(ctx context.Context, jockey string, before time.Time) ([]*models.HistoricalEntry, error)
	// GetRacesByDateRange returns races with start <= date <= end, oldest first.
	GetRacesByDateRange(ctx context.Context, start, end time.Time) ([]*models.Race, error)
}

// HistoryWriter loads races, horses and entries. Prediction never writes;
// writers exist for fixtures and seeding.
type HistoryWriter interface {
	AddRace(ctx context.Context, race *models.Race) error
	AddHorse(ctx context.Context, horse *models.Horse) error
	AddEntry(ctx context.Context, entry *models.Entry) error
}

// Store combines both sides with a release hook for the backing connection
type Store interface {
	HistoryStore
	HistoryWriter
	Close() error
}
