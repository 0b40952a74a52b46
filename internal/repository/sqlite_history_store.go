package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/models"
)

const (
	sqliteRaceColumns = `id, external_id, name, race_date, venue, surface, distance,
		track_condition, entrant_count`

	sqliteEntryColumns = `e.id, e.race_id, e.horse_id, e.bracket, e.horse_number, e.jockey,
		e.weight_carried, e.odds, e.popularity, e.finish_position, e.finish_time, e.margin,
		e.passing_order, e.last_3f, e.body_weight, e.body_weight_kg, e.body_weight_diff`

	sqliteHistoryQuery = `SELECT ` + sqliteEntryColumns + `, r.race_date, r.surface, r.distance, r.track_condition
		FROM entries e
		JOIN races r ON r.id = e.race_id`
)

// SQLiteHistoryStore implements Store over a local SQLite file. Dates are
// stored as YYYY-MM-DD text so comparisons stay lexical.
type SQLiteHistoryStore struct {
	db *sql.DB
}

// NewSQLiteHistoryStore creates a new history store over an open database
func NewSQLiteHistoryStore(db *sql.DB) *SQLiteHistoryStore {
	return &SQLiteHistoryStore{db: db}
}

// GetRace retrieves a race by external ID
func (s *SQLiteHistoryStore) GetRace(ctx context.Context, externalID string) (*models.Race, error) {
	query := `SELECT ` + sqliteRaceColumns + ` FROM races WHERE external_id = ?`

	race, err := scanSQLiteRace(s.db.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}

	return race, nil
}

// GetRaceEntrants retrieves the race card joined with horses
func (s *SQLiteHistoryStore) GetRaceEntrants(ctx context.Context, raceID uuid.UUID) ([]*models.Entrant, error) {
	query := `SELECT ` + sqliteEntryColumns + `,
			h.id, h.external_id, h.name, h.sex, h.birth_date, h.sire, h.dam, h.dam_sire
		FROM entries e
		JOIN horses h ON h.id = e.horse_id
		WHERE e.race_id = ?
		ORDER BY e.horse_number ASC, e.id ASC`

	rows, err := s.db.QueryContext(ctx, query, raceID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query entrants: %w", err)
	}
	defer rows.Close()

	var entrants []*models.Entrant
	for rows.Next() {
		entry := &models.Entry{}
		horse := &models.Horse{}
		dest := append(sqliteEntryDest(entry),
			&horse.ID, &horse.ExternalID, &horse.Name, &horse.Sex, &horse.BirthDate,
			&horse.Sire, &horse.Dam, &horse.DamSire,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf(errScanEntrant, err)
		}
		entrants = append(entrants, &models.Entrant{Entry: entry, Horse: horse})
	}

	return entrants, rows.Err()
}

// GetHorseHistory retrieves a horse's starts strictly before the given day
func (s *SQLiteHistoryStore) GetHorseHistory(ctx context.Context, horseID uuid.UUID, before time.Time, excludeEntryID uuid.UUID) ([]*models.HistoricalEntry, error) {
	query := sqliteHistoryQuery + `
		WHERE e.horse_id = ? AND r.race_date < ? AND e.id <> ?
		ORDER BY r.race_date DESC, e.id DESC`

	return s.queryHistory(ctx, query, horseID.String(), models.TruncateDay(before).Format(sqlDateLayout), excludeEntryID.String())
}

// GetJockeyHistory retrieves every ride of a jockey strictly before the given day
func (s *SQLiteHistoryStore) GetJockeyHistory(ctx context.Context, jockey string, before time.Time) ([]*models.HistoricalEntry, error) {
	if jockey == "" {
		return nil, nil
	}

	query := sqliteHistoryQuery + `
		WHERE e.jockey = ? AND r.race_date < ?
		ORDER BY r.race_date DESC, e.id DESC`

	return s.queryHistory(ctx, query, jockey, models.TruncateDay(before).Format(sqlDateLayout))
}

// GetRacesByDateRange retrieves races within an inclusive date range
func (s *SQLiteHistoryStore) GetRacesByDateRange(ctx context.Context, start, end time.Time) ([]*models.Race, error) {
	query := `SELECT ` + sqliteRaceColumns + `
		FROM races
		WHERE race_date BETWEEN ? AND ?
		ORDER BY race_date ASC, external_id ASC`

	rows, err := s.db.QueryContext(ctx, query,
		models.TruncateDay(start).Format(sqlDateLayout),
		models.TruncateDay(end).Format(sqlDateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query races by date range: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race, err := scanSQLiteRace(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRace, err)
		}
		races = append(races, race)
	}

	return races, rows.Err()
}

// AddRace inserts a race
func (s *SQLiteHistoryStore) AddRace(ctx context.Context, race *models.Race) error {
	query := `
		INSERT INTO races (id, external_id, name, race_date, venue, surface, distance, track_condition, entrant_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		race.ID.String(), race.ExternalID, race.Name, race.Day().Format(sqlDateLayout), race.Venue,
		string(race.Surface), race.Distance, race.TrackCondition, race.EntrantCount,
	)
	if database.IsSQLiteConstraintError(err) {
		return fmt.Errorf("race %s: %w", race.ExternalID, models.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create race: %w", err)
	}

	return nil
}

// AddHorse inserts a horse
func (s *SQLiteHistoryStore) AddHorse(ctx context.Context, horse *models.Horse) error {
	query := `
		INSERT INTO horses (id, external_id, name, sex, birth_date, sire, dam, dam_sire)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		horse.ID.String(), horse.ExternalID, horse.Name, string(horse.Sex), horse.BirthDate,
		horse.Sire, horse.Dam, horse.DamSire,
	)
	if database.IsSQLiteConstraintError(err) {
		return fmt.Errorf("horse %s: %w", horse.ExternalID, models.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create horse: %w", err)
	}

	return nil
}

// AddEntry inserts an entry; (race, horse) is unique
func (s *SQLiteHistoryStore) AddEntry(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (id, race_id, horse_id, bracket, horse_number, jockey, weight_carried,
			odds, popularity, finish_position, finish_time, margin, passing_order, last_3f,
			body_weight, body_weight_kg, body_weight_diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID.String(), entry.RaceID.String(), entry.HorseID.String(), nullable(entry.Bracket),
		entry.HorseNumber, entry.Jockey, nullable(entry.WeightCarried), nullable(entry.Odds),
		nullable(entry.Popularity), nullable(entry.FinishPosition), entry.FinishTime, entry.Margin,
		entry.PassingOrder, nullable(entry.Last3F), entry.BodyWeight, nullable(entry.BodyWeightKg),
		nullable(entry.BodyWeightDiff),
	)
	if database.IsSQLiteConstraintError(err) {
		return fmt.Errorf("entry for horse %s in race %s: %w", entry.HorseID, entry.RaceID, models.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}

	return nil
}

// Ping checks the database file is still usable
func (s *SQLiteHistoryStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteHistoryStore) queryHistory(ctx context.Context, query string, args ...interface{}) ([]*models.HistoricalEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []*models.HistoricalEntry
	for rows.Next() {
		entry := &models.Entry{}
		h := &models.HistoricalEntry{Entry: entry}
		var raceDate string
		dest := append(sqliteEntryDest(entry), &raceDate, &h.Surface, &h.Distance, &h.TrackCondition)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf(errScanEntry, err)
		}
		if h.RaceDate, err = time.Parse(sqlDateLayout, raceDate); err != nil {
			return nil, fmt.Errorf(errScanEntry, err)
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRace(row rowScanner) (*models.Race, error) {
	race := &models.Race{}
	var raceDate string
	err := row.Scan(
		&race.ID, &race.ExternalID, &race.Name, &raceDate, &race.Venue, &race.Surface,
		&race.Distance, &race.TrackCondition, &race.EntrantCount,
	)
	if err != nil {
		return nil, err
	}
	if race.Date, err = time.Parse(sqlDateLayout, raceDate); err != nil {
		return nil, fmt.Errorf("invalid race_date %q: %w", raceDate, err)
	}
	return race, nil
}

func sqliteEntryDest(e *models.Entry) []interface{} {
	return []interface{}{
		&e.ID, &e.RaceID, &e.HorseID, &e.Bracket, &e.HorseNumber, &e.Jockey,
		&e.WeightCarried, &e.Odds, &e.Popularity, &e.FinishPosition, &e.FinishTime, &e.Margin,
		&e.PassingOrder, &e.Last3F, &e.BodyWeight, &e.BodyWeightKg, &e.BodyWeightDiff,
	}
}

// nullable unwraps an optional column value, mapping nil to SQL NULL
func nullable[T int | float64](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
