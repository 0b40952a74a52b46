package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/repository"
)

// ErrNoFeatures is returned when a race has no entrant that can be featurized
var ErrNoFeatures = errors.New("no features could be built for race")

// EntrantFeatures is one featurized entrant with its identity columns
type EntrantFeatures struct {
	EntryID         uuid.UUID
	HorseID         uuid.UUID
	ExternalHorseID string
	HorseName       string
	HorseNumber     int
	Jockey          string
	// Odds is the published pre-race odds, zero when none were published
	Odds    float64
	HasOdds bool
	Style   RunningStyle
	Vector  Vector
}

// RaceFeatures holds the feature rows of one race in entrant order
type RaceFeatures struct {
	RaceID         uuid.UUID
	ExternalRaceID string
	RaceDate       time.Time
	Rows           []EntrantFeatures
}

// Matrix returns the feature rows as a batch for the scoring models
func (rf *RaceFeatures) Matrix() [][]float64 {
	m := make([][]float64, len(rf.Rows))
	for i := range rf.Rows {
		m[i] = rf.Rows[i].Vector.Slice()
	}
	return m
}

// Len returns the number of featurized entrants
func (rf *RaceFeatures) Len() int {
	return len(rf.Rows)
}

// Builder computes point-in-time feature vectors from the history store
type Builder struct {
	store  repository.HistoryStore
	logger logrus.FieldLogger
}

// NewBuilder creates a feature builder reading from store
func NewBuilder(store repository.HistoryStore, logger logrus.FieldLogger) *Builder {
	return &Builder{
		store:  store,
		logger: logger,
	}
}

// raceContext carries the race-level aggregates computed once per race
type raceContext struct {
	race      *models.Race
	asOf      time.Time
	distance  int
	fieldSize int
	oddsRank  []int
	meanKg    float64
	hasMeanKg bool
	jockeys   *jockeyCache
}

// BuildRace featurizes every entrant of race. Entrants missing their entry or
// horse record are skipped; if none remain ErrNoFeatures is returned. Store
// failures are returned wrapped.
func (b *Builder) BuildRace(ctx context.Context, race *models.Race, entrants []*models.Entrant) (*RaceFeatures, error) {
	if race == nil {
		return nil, fmt.Errorf("race is required: %w", models.ErrInvalidInput)
	}
	start := time.Now()

	resolved := make([]*models.Entrant, 0, len(entrants))
	for _, e := range entrants {
		if e == nil || e.Entry == nil || e.Horse == nil {
			b.logger.WithField("race_id", race.ExternalID).Warn("Skipping entrant without entry or horse record")
			continue
		}
		resolved = append(resolved, e)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("race %s: %w", race.ExternalID, ErrNoFeatures)
	}

	rc := &raceContext{
		race:      race,
		asOf:      race.Day(),
		distance:  race.Distance,
		fieldSize: len(resolved),
		oddsRank:  oddsRanks(resolved),
		jockeys:   newJockeyCache(b.store),
	}
	if rc.distance <= 0 {
		rc.distance = DefaultDistance
	}
	rc.meanKg, rc.hasMeanKg = meanBodyWeight(resolved)

	result := &RaceFeatures{
		RaceID:         race.ID,
		ExternalRaceID: race.ExternalID,
		RaceDate:       rc.asOf,
		Rows:           make([]EntrantFeatures, 0, len(resolved)),
	}

	for i, e := range resolved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := b.buildEntrant(ctx, rc, i, e)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}

	metrics.RecordFeatureBuild(time.Since(start).Seconds())
	b.logger.WithFields(logrus.Fields{
		"race_id":        race.ExternalID,
		"entrants":       len(result.Rows),
		"skipped":        len(entrants) - len(resolved),
		"jockeys_cached": rc.jockeys.size(),
	}).Debug("Built race features")

	return result, nil
}

func (b *Builder) buildEntrant(ctx context.Context, rc *raceContext, idx int, e *models.Entrant) (EntrantFeatures, error) {
	entry, horse := e.Entry, e.Horse

	stored, err := b.store.GetHorseHistory(ctx, horse.ID, rc.asOf, entry.ID)
	if err != nil {
		return EntrantFeatures{}, fmt.Errorf("failed to get history for horse %s: %w", horse.ExternalID, err)
	}
	history := pointInTime(stored, rc.asOf, entry.ID)

	var v Vector
	form := summarizeForm(history)

	v[AvgPositionAll] = form.avgAll
	v[AvgPositionRecent3] = form.avgRecent3
	v[WinRate] = form.winRate
	v[PlaceRate] = form.placeRate
	v[Trend] = form.trend

	v[AvgPositionSurface] = meanPosition(history, form.avgAll, func(h *models.HistoricalEntry) bool {
		return h.Surface == rc.race.Surface
	})
	v[AvgPositionDistance] = form.avgAll
	if rc.race.Distance > 0 {
		v[AvgPositionDistance] = meanPosition(history, form.avgAll, func(h *models.HistoricalEntry) bool {
			return h.Distance > 0 && absInt(h.Distance-rc.race.Distance) <= DistanceBand
		})
	}
	v[Top3DistanceGap] = top3DistanceGap(history, rc.distance)

	style := ClassifyRunningStyle(history)
	v[RunningStyleCode] = style.Ordinal()

	v[RaceDistance] = float64(rc.distance)
	if rc.race.IsTurf() {
		v[SurfaceTurf] = 1
	}
	v[FieldSize] = float64(rc.fieldSize)

	odds, hasOdds := entrantOdds(entry)
	v[Odds] = DefaultOdds
	if hasOdds {
		v[Odds] = odds
	}
	v[OddsRank] = float64(rc.oddsRank[idx])

	v[DaysSinceLast] = DefaultDaysSinceLast
	if len(history) > 0 {
		v[DaysSinceLast] = math.Round(rc.asOf.Sub(models.TruncateDay(history[0].RaceDate)).Hours() / 24)
	}

	v[AvgPositionCondition] = form.avgAll
	if cond := strings.TrimSpace(rc.race.TrackCondition); cond != "" {
		v[AvgPositionCondition] = meanPosition(history, form.avgAll, func(h *models.HistoricalEntry) bool {
			return strings.EqualFold(strings.TrimSpace(h.TrackCondition), cond)
		})
	}

	kg, diff, hasKg := bodyWeight(entry)
	if diff != nil {
		v[WeightChange] = float64(*diff)
	}
	if hasKg && rc.hasMeanKg {
		v[WeightDeviation] = float64(kg) - rc.meanKg
	}

	v[JockeyHorseWinRate] = partnershipWinRate(history, entry.Jockey)
	jockey, err := rc.jockeys.stats(ctx, entry.Jockey, rc.asOf)
	if err != nil {
		return EntrantFeatures{}, err
	}
	v[JockeyWinRate] = jockey.WinRate
	v[JockeyPlaceRate] = jockey.PlaceRate

	v[Age] = horseAge(horse, rc.race)
	if horse.IsMale() {
		v[SexMale] = 1
	}

	return EntrantFeatures{
		EntryID:         entry.ID,
		HorseID:         horse.ID,
		ExternalHorseID: horse.ExternalID,
		HorseName:       horse.Name,
		HorseNumber:     entry.HorseNumber,
		Jockey:          entry.Jockey,
		Odds:            odds,
		HasOdds:         hasOdds,
		Style:           style,
		Vector:          v,
	}, nil
}

// pointInTime drops anything on or after asOf and the entry being featurized,
// then orders newest first
func pointInTime(stored []*models.HistoricalEntry, asOf time.Time, exclude uuid.UUID) []*models.HistoricalEntry {
	history := make([]*models.HistoricalEntry, 0, len(stored))
	for _, h := range stored {
		if h == nil || h.Entry == nil || h.Entry.ID == exclude || !isBefore(h.RaceDate, asOf) {
			continue
		}
		history = append(history, h)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].RaceDate.After(history[j].RaceDate)
	})
	return history
}

func isBefore(raceDate, asOf time.Time) bool {
	return models.TruncateDay(raceDate).Before(models.TruncateDay(asOf))
}

type formSummary struct {
	avgAll     float64
	avgRecent3 float64
	winRate    float64
	placeRate  float64
	trend      float64
}

func summarizeForm(history []*models.HistoricalEntry) formSummary {
	s := formSummary{avgAll: DefaultPosition, avgRecent3: DefaultPosition}

	var positions []int
	for _, h := range history {
		if pos, ok := h.Position(); ok {
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		return s
	}

	var total, wins, places int
	for _, p := range positions {
		total += p
		if p == 1 {
			wins++
		}
		if p <= 3 {
			places++
		}
	}
	n := float64(len(positions))
	s.avgAll = float64(total) / n
	s.winRate = float64(wins) / n
	s.placeRate = float64(places) / n

	recent := positions
	if len(recent) > 3 {
		recent = recent[:3]
	}
	var recentTotal int
	for _, p := range recent {
		recentTotal += p
	}
	s.avgRecent3 = float64(recentTotal) / float64(len(recent))
	s.trend = s.avgRecent3 - s.avgAll

	return s
}

// meanPosition averages finishes of the starts matching keep, or returns fallback
func meanPosition(history []*models.HistoricalEntry, fallback float64, keep func(*models.HistoricalEntry) bool) float64 {
	var total, n int
	for _, h := range history {
		pos, ok := h.Position()
		if !ok || !keep(h) {
			continue
		}
		total += pos
		n++
	}
	if n == 0 {
		return fallback
	}
	return float64(total) / float64(n)
}

func top3DistanceGap(history []*models.HistoricalEntry, target int) float64 {
	var total, n int
	for _, h := range history {
		pos, ok := h.Position()
		if !ok || pos > 3 || h.Distance <= 0 {
			continue
		}
		total += h.Distance
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Abs(float64(target) - float64(total)/float64(n))
}

func partnershipWinRate(history []*models.HistoricalEntry, jockey string) float64 {
	if jockey == "" {
		return 0
	}
	var rides, wins int
	for _, h := range history {
		pos, ok := h.Position()
		if !ok || h.Entry.Jockey != jockey {
			continue
		}
		rides++
		if pos == 1 {
			wins++
		}
	}
	if rides == 0 {
		return 0
	}
	return float64(wins) / float64(rides)
}

func entrantOdds(e *models.Entry) (float64, bool) {
	if e.Odds == nil || *e.Odds <= 0 || math.IsNaN(*e.Odds) || math.IsInf(*e.Odds, 0) {
		return 0, false
	}
	return *e.Odds, true
}

// oddsRanks ranks the field by odds, shortest first. Entrants without odds
// rank last; ties go to the lower horse number.
func oddsRanks(entrants []*models.Entrant) []int {
	order := make([]int, len(entrants))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := entrants[order[a]].Entry, entrants[order[b]].Entry
		oa, hasA := entrantOdds(ea)
		ob, hasB := entrantOdds(eb)
		if hasA != hasB {
			return hasA
		}
		if oa != ob {
			return oa < ob
		}
		return ea.HorseNumber < eb.HorseNumber
	})

	ranks := make([]int, len(entrants))
	for rank, idx := range order {
		ranks[idx] = rank + 1
	}
	return ranks
}

// bodyWeight prefers the parsed columns and falls back to the raw token
func bodyWeight(e *models.Entry) (kg int, diff *int, ok bool) {
	kg, diff, ok = models.ParseBodyWeight(e.BodyWeight)
	if e.BodyWeightKg != nil && *e.BodyWeightKg > 0 {
		kg, ok = *e.BodyWeightKg, true
	}
	if e.BodyWeightDiff != nil {
		diff = e.BodyWeightDiff
	}
	return kg, diff, ok
}

func meanBodyWeight(entrants []*models.Entrant) (float64, bool) {
	var total, n int
	for _, e := range entrants {
		if kg, _, ok := bodyWeight(e.Entry); ok {
			total += kg
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(total) / float64(n), true
}

func horseAge(h *models.Horse, race *models.Race) float64 {
	year, ok := models.ParseBirthYear(h.BirthDate)
	if !ok {
		return DefaultAge
	}
	age := race.Date.Year() - year
	if age <= 0 {
		return DefaultAge
	}
	return float64(age)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
