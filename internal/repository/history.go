package repository

import (
	"sort"
	"time"

	"github.com/yourusername/race-edge/internal/models"
)

const (
	errScanRace    = "failed to scan race: %w"
	errScanEntry   = "failed to scan entry: %w"
	errScanEntrant = "failed to scan entrant: %w"
	sqlDateLayout  = "2006-01-02"
)

// sortNewestFirst orders history by race date descending. Same-day starts
// keep a deterministic order by entry id.
func sortNewestFirst(history []*models.HistoricalEntry) {
	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].RaceDate.Equal(history[j].RaceDate) {
			return history[i].RaceDate.After(history[j].RaceDate)
		}
		return history[i].Entry.ID.String() > history[j].Entry.ID.String()
	})
}

// strictlyBefore reports whether a race run on raceDate precedes the day of before
func strictlyBefore(raceDate, before time.Time) bool {
	return models.TruncateDay(raceDate).Before(models.TruncateDay(before))
}
