package features

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/yourusername/race-edge/internal/repository"
)

type jockeyStats struct {
	WinRate   float64
	PlaceRate float64
}

// jockeyCache memoizes jockey form for a single BuildRace call. A fresh cache
// is created per call because every entry is only valid for one as-of date.
type jockeyCache struct {
	store repository.HistoryStore
	items *cache.Cache
}

func newJockeyCache(store repository.HistoryStore) *jockeyCache {
	return &jockeyCache{
		store: store,
		items: cache.New(cache.NoExpiration, 0),
	}
}

func jockeyKey(jockey string, asOf time.Time) string {
	return jockey + "|" + asOf.Format("2006-01-02")
}

// stats returns the jockey's win and top-3 rates over all rides strictly
// before asOf
func (c *jockeyCache) stats(ctx context.Context, jockey string, asOf time.Time) (jockeyStats, error) {
	if jockey == "" {
		return jockeyStats{}, nil
	}

	key := jockeyKey(jockey, asOf)
	if cached, found := c.items.Get(key); found {
		return cached.(jockeyStats), nil
	}

	rides, err := c.store.GetJockeyHistory(ctx, jockey, asOf)
	if err != nil {
		return jockeyStats{}, fmt.Errorf("failed to get history for jockey %s: %w", jockey, err)
	}

	var finished, wins, places int
	for _, r := range rides {
		if r == nil || !isBefore(r.RaceDate, asOf) {
			continue
		}
		pos, ok := r.Position()
		if !ok {
			continue
		}
		finished++
		if pos == 1 {
			wins++
		}
		if pos <= 3 {
			places++
		}
	}

	var s jockeyStats
	if finished > 0 {
		s.WinRate = float64(wins) / float64(finished)
		s.PlaceRate = float64(places) / float64(finished)
	}

	c.items.Set(key, s, cache.NoExpiration)
	return s, nil
}

// size reports the number of cached (jockey, date) pairs
func (c *jockeyCache) size() int {
	return c.items.ItemCount()
}
