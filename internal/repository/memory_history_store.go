package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/race-edge/internal/models"
)

type raceHorseKey struct {
	raceID  uuid.UUID
	horseID uuid.UUID
}

// MemoryHistoryStore is an in-memory implementation of Store. Reads return
// copies, so callers cannot mutate stored records.
type MemoryHistoryStore struct {
	mu          sync.RWMutex
	races       map[uuid.UUID]*models.Race
	raceByExtID map[string]uuid.UUID
	horses      map[uuid.UUID]*models.Horse
	horseExtIDs map[string]struct{}
	entries     map[uuid.UUID]*models.Entry
	entryKeys   map[raceHorseKey]struct{}
}

// NewMemoryHistoryStore creates an empty in-memory store
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		races:       make(map[uuid.UUID]*models.Race),
		raceByExtID: make(map[string]uuid.UUID),
		horses:      make(map[uuid.UUID]*models.Horse),
		horseExtIDs: make(map[string]struct{}),
		entries:     make(map[uuid.UUID]*models.Entry),
		entryKeys:   make(map[raceHorseKey]struct{}),
	}
}

// AddRace stores a race. Returns ErrDuplicateKey if the id or external id exists.
func (s *MemoryHistoryStore) AddRace(_ context.Context, race *models.Race) error {
	if race == nil || race.ID == uuid.Nil || race.ExternalID == "" {
		return models.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.races[race.ID]; exists {
		return fmt.Errorf("race %s: %w", race.ExternalID, models.ErrDuplicateKey)
	}
	if _, exists := s.raceByExtID[race.ExternalID]; exists {
		return fmt.Errorf("race %s: %w", race.ExternalID, models.ErrDuplicateKey)
	}

	raceCopy := *race
	raceCopy.Date = race.Day()
	s.races[race.ID] = &raceCopy
	s.raceByExtID[race.ExternalID] = race.ID
	return nil
}

// AddHorse stores a horse. Returns ErrDuplicateKey if the id or external id exists.
func (s *MemoryHistoryStore) AddHorse(_ context.Context, horse *models.Horse) error {
	if horse == nil || horse.ID == uuid.Nil || horse.ExternalID == "" {
		return models.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.horses[horse.ID]; exists {
		return fmt.Errorf("horse %s: %w", horse.ExternalID, models.ErrDuplicateKey)
	}
	if _, exists := s.horseExtIDs[horse.ExternalID]; exists {
		return fmt.Errorf("horse %s: %w", horse.ExternalID, models.ErrDuplicateKey)
	}

	horseCopy := *horse
	s.horses[horse.ID] = &horseCopy
	s.horseExtIDs[horse.ExternalID] = struct{}{}
	return nil
}

// AddEntry stores an entry. The race and horse must already exist and the
// (race, horse) pair must be unique.
func (s *MemoryHistoryStore) AddEntry(_ context.Context, entry *models.Entry) error {
	if entry == nil || entry.ID == uuid.Nil {
		return models.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.races[entry.RaceID]; !ok {
		return fmt.Errorf("entry references unknown race %s: %w", entry.RaceID, models.ErrInvalidInput)
	}
	if _, ok := s.horses[entry.HorseID]; !ok {
		return fmt.Errorf("entry references unknown horse %s: %w", entry.HorseID, models.ErrInvalidInput)
	}

	key := raceHorseKey{raceID: entry.RaceID, horseID: entry.HorseID}
	if _, exists := s.entryKeys[key]; exists {
		return fmt.Errorf("entry for horse %s in race %s: %w", entry.HorseID, entry.RaceID, models.ErrDuplicateKey)
	}
	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("entry %s: %w", entry.ID, models.ErrDuplicateKey)
	}

	s.entries[entry.ID] = copyEntry(entry)
	s.entryKeys[key] = struct{}{}
	return nil
}

// GetRace retrieves a race by external ID
func (s *MemoryHistoryStore) GetRace(_ context.Context, externalID string) (*models.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.raceByExtID[externalID]
	if !ok {
		return nil, models.ErrNotFound
	}

	raceCopy := *s.races[id]
	return &raceCopy, nil
}

// GetRaceEntrants retrieves the race card ordered by horse number
func (s *MemoryHistoryStore) GetRaceEntrants(_ context.Context, raceID uuid.UUID) ([]*models.Entrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Entrant
	for _, e := range s.entries {
		if e.RaceID != raceID {
			continue
		}
		horseCopy := *s.horses[e.HorseID]
		result = append(result, &models.Entrant{Entry: copyEntry(e), Horse: &horseCopy})
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].Entry, result[j].Entry
		if a.HorseNumber != b.HorseNumber {
			return a.HorseNumber < b.HorseNumber
		}
		return a.ID.String() < b.ID.String()
	})

	return result, nil
}

// GetHorseHistory retrieves a horse's starts strictly before the given day, newest first
func (s *MemoryHistoryStore) GetHorseHistory(_ context.Context, horseID uuid.UUID, before time.Time, excludeEntryID uuid.UUID) ([]*models.HistoricalEntry, error) {
	return s.history(func(e *models.Entry) bool {
		return e.HorseID == horseID && e.ID != excludeEntryID
	}, before), nil
}

// GetJockeyHistory retrieves every ride of a jockey strictly before the given day, newest first
func (s *MemoryHistoryStore) GetJockeyHistory(_ context.Context, jockey string, before time.Time) ([]*models.HistoricalEntry, error) {
	if jockey == "" {
		return nil, nil
	}
	return s.history(func(e *models.Entry) bool {
		return e.Jockey == jockey
	}, before), nil
}

// GetRacesByDateRange retrieves races within [start, end] (inclusive), oldest first
func (s *MemoryHistoryStore) GetRacesByDateRange(_ context.Context, start, end time.Time) ([]*models.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := models.TruncateDay(start), models.TruncateDay(end)

	var result []*models.Race
	for _, r := range s.races {
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		raceCopy := *r
		result = append(result, &raceCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ExternalID < result[j].ExternalID
	})

	return result, nil
}

// Close is a no-op
func (s *MemoryHistoryStore) Close() error {
	return nil
}

func (s *MemoryHistoryStore) history(match func(*models.Entry) bool, before time.Time) []*models.HistoricalEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.HistoricalEntry
	for _, e := range s.entries {
		if !match(e) {
			continue
		}
		race := s.races[e.RaceID]
		if !strictlyBefore(race.Date, before) {
			continue
		}
		result = append(result, &models.HistoricalEntry{
			Entry:          copyEntry(e),
			RaceDate:       race.Date,
			Surface:        race.Surface,
			Distance:       race.Distance,
			TrackCondition: race.TrackCondition,
		})
	}

	sortNewestFirst(result)
	return result
}

func copyEntry(e *models.Entry) *models.Entry {
	c := *e
	c.Bracket = copyPtr(e.Bracket)
	c.WeightCarried = copyPtr(e.WeightCarried)
	c.Odds = copyPtr(e.Odds)
	c.Popularity = copyPtr(e.Popularity)
	c.FinishPosition = copyPtr(e.FinishPosition)
	c.Last3F = copyPtr(e.Last3F)
	c.BodyWeightKg = copyPtr(e.BodyWeightKg)
	c.BodyWeightDiff = copyPtr(e.BodyWeightDiff)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
