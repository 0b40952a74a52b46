package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-edge/internal/models"
)

const (
	fixturePath  = "testdata/history.json"
	targetRaceID = "202506010811"
	horseAlpha   = "2020100001"
	horseBlue    = "2020100002"
	horseCinder  = "2021100003"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func loadFixture(t *testing.T) *Fixture {
	t.Helper()
	f, err := os.Open(fixturePath)
	require.NoError(t, err)
	defer f.Close()

	fixture, err := DecodeFixture(f)
	require.NoError(t, err)
	return fixture
}

func seededStore(t *testing.T, store Store) Store {
	t.Helper()
	res, err := Seed(context.Background(), store, loadFixture(t))
	require.NoError(t, err)
	require.Equal(t, SeedResult{Horses: 3, Races: 5, Entries: 10}, res)
	return store
}

// runHistoryStoreContract exercises behaviour every Store must share
func runHistoryStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("reseed skips existing records", func(t *testing.T) {
		store := seededStore(t, newStore(t))
		res, err := Seed(ctx, store, loadFixture(t))
		require.NoError(t, err)
		assert.Equal(t, SeedResult{}, res)
	})

	t.Run("get race", func(t *testing.T) {
		store := seededStore(t, newStore(t))

		race, err := store.GetRace(ctx, targetRaceID)
		require.NoError(t, err)
		assert.Equal(t, RaceKey(targetRaceID), race.ID)
		assert.Equal(t, "June Stakes", race.Name)
		assert.Equal(t, day("2025-06-01"), race.Date.UTC())
		assert.Equal(t, models.SurfaceTurf, race.Surface)
		assert.Equal(t, 1600, race.Distance)
		assert.Equal(t, 3, race.EntrantCount)

		_, err = store.GetRace(ctx, "209912319999")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("race entrants ordered by number", func(t *testing.T) {
		store := seededStore(t, newStore(t))

		entrants, err := store.GetRaceEntrants(ctx, RaceKey(targetRaceID))
		require.NoError(t, err)
		require.Len(t, entrants, 3)

		assert.Equal(t, 1, entrants[0].Entry.HorseNumber)
		assert.Equal(t, "Alpha Comet", entrants[0].Horse.Name)
		assert.Equal(t, models.SexMale, entrants[0].Horse.Sex)
		require.NotNil(t, entrants[0].Entry.BodyWeightKg)
		assert.Equal(t, 486, *entrants[0].Entry.BodyWeightKg)
		require.NotNil(t, entrants[0].Entry.BodyWeightDiff)
		assert.Equal(t, 2, *entrants[0].Entry.BodyWeightDiff)

		assert.Equal(t, "Cinder Road", entrants[2].Horse.Name)
		assert.Nil(t, entrants[2].Entry.Odds)
		assert.Nil(t, entrants[2].Entry.BodyWeightKg)
	})

	t.Run("race entrants with equal numbers ordered by id", func(t *testing.T) {
		store := newStore(t)
		race := &models.Race{
			ID:         uuid.MustParse("00000000-0000-0000-0000-0000000000a0"),
			ExternalID: "202507010101",
			Date:       day("2025-07-01"),
			Surface:    models.SurfaceTurf,
			Distance:   1400,
		}
		require.NoError(t, store.AddRace(ctx, race))

		ids := []string{
			"00000000-0000-0000-0000-000000000003",
			"00000000-0000-0000-0000-000000000002",
			"00000000-0000-0000-0000-000000000001",
		}
		for _, id := range ids {
			horse := &models.Horse{ID: uuid.New(), ExternalID: "tie-" + id, Name: "Tie " + id}
			require.NoError(t, store.AddHorse(ctx, horse))
			require.NoError(t, store.AddEntry(ctx, &models.Entry{
				ID:      uuid.MustParse(id),
				RaceID:  race.ID,
				HorseID: horse.ID,
			}))
		}

		for attempt := 0; attempt < 3; attempt++ {
			entrants, err := store.GetRaceEntrants(ctx, race.ID)
			require.NoError(t, err)
			require.Len(t, entrants, 3)
			for i, e := range entrants {
				assert.Equal(t, ids[len(ids)-1-i], e.Entry.ID.String())
			}
		}
	})

	t.Run("horse history is strictly earlier and newest first", func(t *testing.T) {
		store := seededStore(t, newStore(t))

		history, err := store.GetHorseHistory(ctx, HorseKey(horseAlpha), day("2025-06-01"), EntryKey(targetRaceID, horseAlpha))
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, day("2025-05-20"), history[0].RaceDate.UTC())
		assert.Equal(t, models.SurfaceDirt, history[0].Surface)
		assert.Equal(t, 1800, history[0].Distance)
		assert.Equal(t, "soft", history[0].TrackCondition)
		assert.Equal(t, day("2025-05-01"), history[1].RaceDate.UTC())

		pos, ok := history[1].Position()
		assert.True(t, ok)
		assert.Equal(t, 1, pos)
	})

	t.Run("same day starts are excluded", func(t *testing.T) {
		store := seededStore(t, newStore(t))

		history, err := store.GetHorseHistory(ctx, HorseKey(horseBlue), day("2025-06-01"), EntryKey(targetRaceID, horseBlue))
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, day("2025-05-01"), history[0].RaceDate.UTC())
	})

	t.Run("jockey history across horses", func(t *testing.T) {
		store := seededStore(t, newStore(t))

		history, err := store.GetJockeyHistory(ctx, "Sato", day("2025-06-01"))
		require.NoError(t, err)
		require.Len(t, history, 2)
		for _, h := range history {
			assert.Equal(t, "Sato", h.Entry.Jockey)
			assert.True(t, h.RaceDate.Before(day("2025-06-01")))
		}

		history, err = store.GetJockeyHistory(ctx, "", day("2025-06-01"))
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("races by date range inclusive and ascending", func(t *testing.T) {
		store := seededStore(t, newStore(t))

		races, err := store.GetRacesByDateRange(ctx, day("2025-05-01"), day("2025-06-01"))
		require.NoError(t, err)
		require.Len(t, races, 4)

		var ids []string
		for _, r := range races {
			ids = append(ids, r.ExternalID)
		}
		assert.Equal(t, []string{"202505010101", "202505200305", targetRaceID, "202506010812"}, ids)
	})

	t.Run("entry uniqueness per race and horse", func(t *testing.T) {
		store := seededStore(t, newStore(t))

		err := store.AddEntry(ctx, &models.Entry{
			ID:          uuid.New(),
			RaceID:      RaceKey(targetRaceID),
			HorseID:     HorseKey(horseCinder),
			HorseNumber: 9,
		})
		assert.ErrorIs(t, err, models.ErrDuplicateKey)
	})
}

func TestMemoryHistoryStore(t *testing.T) {
	runHistoryStoreContract(t, func(t *testing.T) Store {
		return NewMemoryHistoryStore()
	})
}

func TestMemoryHistoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, NewMemoryHistoryStore())

	entrants, err := store.GetRaceEntrants(ctx, RaceKey(targetRaceID))
	require.NoError(t, err)
	*entrants[0].Entry.Odds = 999
	entrants[0].Horse.Name = "mutated"

	again, err := store.GetRaceEntrants(ctx, RaceKey(targetRaceID))
	require.NoError(t, err)
	assert.Equal(t, 3.2, *again[0].Entry.Odds)
	assert.Equal(t, "Alpha Comet", again[0].Horse.Name)
}

func TestMemoryHistoryStoreRejectsDanglingEntry(t *testing.T) {
	store := NewMemoryHistoryStore()

	err := store.AddEntry(context.Background(), &models.Entry{
		ID:          uuid.New(),
		RaceID:      uuid.New(),
		HorseID:     uuid.New(),
		HorseNumber: 1,
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDecodeFixtureValidates(t *testing.T) {
	_, err := DecodeFixture(stringsReader(`{"races":[{"race_id":"x","date":"June 1","surface":"turf","distance":1600}]}`))
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = DecodeFixture(stringsReader(`{"races":[{"race_id":"x","date":"2025-06-01","surface":"sand","distance":1600}]}`))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSeedKeysAreStable(t *testing.T) {
	assert.Equal(t, HorseKey(horseAlpha), HorseKey(horseAlpha))
	assert.NotEqual(t, HorseKey(horseAlpha), RaceKey(horseAlpha))
	assert.NotEqual(t, EntryKey(targetRaceID, horseAlpha), EntryKey(targetRaceID, horseBlue))
}
