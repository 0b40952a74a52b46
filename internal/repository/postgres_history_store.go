package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/models"
)

const (
	pgRaceColumns = `id, external_id, name, race_date, venue, surface, distance,
		track_condition, entrant_count, created_at, updated_at`

	pgEntryColumns = `e.id, e.race_id, e.horse_id, e.bracket, e.horse_number, e.jockey,
		e.weight_carried, e.odds, e.popularity, e.finish_position, e.finish_time, e.margin,
		e.passing_order, e.last_3f, e.body_weight, e.body_weight_kg, e.body_weight_diff,
		e.created_at, e.updated_at`

	pgHistoryQuery = `SELECT ` + pgEntryColumns + `, r.race_date, r.surface, r.distance, r.track_condition
		FROM entries e
		JOIN races r ON r.id = e.race_id`
)

// PostgresHistoryStore implements Store for PostgreSQL
type PostgresHistoryStore struct {
	db *database.DB
}

// NewPostgresHistoryStore creates a new history store over the pool
func NewPostgresHistoryStore(db *database.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

// GetRace retrieves a race by external ID
func (s *PostgresHistoryStore) GetRace(ctx context.Context, externalID string) (*models.Race, error) {
	query := `SELECT ` + pgRaceColumns + ` FROM races WHERE external_id = $1`

	race, err := scanPgRace(s.db.Pool().QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}

	return race, nil
}

// GetRaceEntrants retrieves the race card joined with horses
func (s *PostgresHistoryStore) GetRaceEntrants(ctx context.Context, raceID uuid.UUID) ([]*models.Entrant, error) {
	query := `SELECT ` + pgEntryColumns + `,
			h.id, h.external_id, h.name, h.sex, h.birth_date, h.sire, h.dam, h.dam_sire, h.created_at
		FROM entries e
		JOIN horses h ON h.id = e.horse_id
		WHERE e.race_id = $1
		ORDER BY e.horse_number ASC, e.id ASC`

	rows, err := s.db.Pool().Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entrants: %w", err)
	}
	defer rows.Close()

	var entrants []*models.Entrant
	for rows.Next() {
		entry := &models.Entry{}
		horse := &models.Horse{}
		dest := append(entryDest(entry),
			&horse.ID, &horse.ExternalID, &horse.Name, &horse.Sex, &horse.BirthDate,
			&horse.Sire, &horse.Dam, &horse.DamSire, &horse.CreatedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf(errScanEntrant, err)
		}
		entrants = append(entrants, &models.Entrant{Entry: entry, Horse: horse})
	}

	return entrants, rows.Err()
}

// GetHorseHistory retrieves a horse's starts strictly before the given day
func (s *PostgresHistoryStore) GetHorseHistory(ctx context.Context, horseID uuid.UUID, before time.Time, excludeEntryID uuid.UUID) ([]*models.HistoricalEntry, error) {
	query := pgHistoryQuery + `
		WHERE e.horse_id = $1 AND r.race_date < $2::date AND e.id <> $3
		ORDER BY r.race_date DESC, e.id DESC`

	return s.queryHistory(ctx, query, horseID, models.TruncateDay(before).Format(sqlDateLayout), excludeEntryID)
}

// GetJockeyHistory retrieves every ride of a jockey strictly before the given day
func (s *PostgresHistoryStore) GetJockeyHistory(ctx context.Context, jockey string, before time.Time) ([]*models.HistoricalEntry, error) {
	if jockey == "" {
		return nil, nil
	}

	query := pgHistoryQuery + `
		WHERE e.jockey = $1 AND r.race_date < $2::date
		ORDER BY r.race_date DESC, e.id DESC`

	return s.queryHistory(ctx, query, jockey, models.TruncateDay(before).Format(sqlDateLayout))
}

// GetRacesByDateRange retrieves races within an inclusive date range
func (s *PostgresHistoryStore) GetRacesByDateRange(ctx context.Context, start, end time.Time) ([]*models.Race, error) {
	query := `SELECT ` + pgRaceColumns + `
		FROM races
		WHERE race_date BETWEEN $1::date AND $2::date
		ORDER BY race_date ASC, external_id ASC`

	rows, err := s.db.Pool().Query(ctx, query,
		models.TruncateDay(start).Format(sqlDateLayout),
		models.TruncateDay(end).Format(sqlDateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query races by date range: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race, err := scanPgRace(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRace, err)
		}
		races = append(races, race)
	}

	return races, rows.Err()
}

// AddRace inserts a race
func (s *PostgresHistoryStore) AddRace(ctx context.Context, race *models.Race) error {
	query := `
		INSERT INTO races (id, external_id, name, race_date, venue, surface, distance, track_condition, entrant_count)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Pool().Exec(ctx, query,
		race.ID, race.ExternalID, race.Name, race.Day().Format(sqlDateLayout), race.Venue,
		string(race.Surface), race.Distance, race.TrackCondition, race.EntrantCount,
	)
	if database.IsDuplicateKeyError(err) {
		return fmt.Errorf("race %s: %w", race.ExternalID, models.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create race: %w", err)
	}

	return nil
}

// AddHorse inserts a horse
func (s *PostgresHistoryStore) AddHorse(ctx context.Context, horse *models.Horse) error {
	query := `
		INSERT INTO horses (id, external_id, name, sex, birth_date, sire, dam, dam_sire)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.Pool().Exec(ctx, query,
		horse.ID, horse.ExternalID, horse.Name, string(horse.Sex), horse.BirthDate,
		horse.Sire, horse.Dam, horse.DamSire,
	)
	if database.IsDuplicateKeyError(err) {
		return fmt.Errorf("horse %s: %w", horse.ExternalID, models.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create horse: %w", err)
	}

	return nil
}

// AddEntry inserts an entry; (race, horse) is unique
func (s *PostgresHistoryStore) AddEntry(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (id, race_id, horse_id, bracket, horse_number, jockey, weight_carried,
			odds, popularity, finish_position, finish_time, margin, passing_order, last_3f,
			body_weight, body_weight_kg, body_weight_diff)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.db.Pool().Exec(ctx, query, entryArgs(entry)...)
	if database.IsDuplicateKeyError(err) {
		return fmt.Errorf("entry for horse %s in race %s: %w", entry.HorseID, entry.RaceID, models.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}

	return nil
}

// Ping checks the pool can reach the server
func (s *PostgresHistoryStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool
func (s *PostgresHistoryStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresHistoryStore) queryHistory(ctx context.Context, query string, args ...interface{}) ([]*models.HistoricalEntry, error) {
	rows, err := s.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []*models.HistoricalEntry
	for rows.Next() {
		entry := &models.Entry{}
		h := &models.HistoricalEntry{Entry: entry}
		dest := append(entryDest(entry), &h.RaceDate, &h.Surface, &h.Distance, &h.TrackCondition)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf(errScanEntry, err)
		}
		h.RaceDate = models.TruncateDay(h.RaceDate)
		history = append(history, h)
	}

	return history, rows.Err()
}

func scanPgRace(row pgx.Row) (*models.Race, error) {
	race := &models.Race{}
	err := row.Scan(
		&race.ID, &race.ExternalID, &race.Name, &race.Date, &race.Venue, &race.Surface,
		&race.Distance, &race.TrackCondition, &race.EntrantCount, &race.CreatedAt, &race.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	race.Date = models.TruncateDay(race.Date)
	return race, nil
}

// entryDest lists scan targets in pgEntryColumns order
func entryDest(e *models.Entry) []interface{} {
	return []interface{}{
		&e.ID, &e.RaceID, &e.HorseID, &e.Bracket, &e.HorseNumber, &e.Jockey,
		&e.WeightCarried, &e.Odds, &e.Popularity, &e.FinishPosition, &e.FinishTime, &e.Margin,
		&e.PassingOrder, &e.Last3F, &e.BodyWeight, &e.BodyWeightKg, &e.BodyWeightDiff,
		&e.CreatedAt, &e.UpdatedAt,
	}
}

// entryArgs lists insert arguments in column order, without timestamps
func entryArgs(e *models.Entry) []interface{} {
	return []interface{}{
		e.ID, e.RaceID, e.HorseID, e.Bracket, e.HorseNumber, e.Jockey, e.WeightCarried,
		e.Odds, e.Popularity, e.FinishPosition, e.FinishTime, e.Margin, e.PassingOrder, e.Last3F,
		e.BodyWeight, e.BodyWeightKg, e.BodyWeightDiff,
	}
}
