// Package features converts a race card into fixed-length numeric feature
// vectors using only results dated strictly before the race.
package features

// NumFeatures is the length of every feature vector
const NumFeatures = 23

// Feature column indices. The order is part of the model artifact contract.
const (
	AvgPositionAll = iota
	AvgPositionRecent3
	WinRate
	PlaceRate
	Trend
	AvgPositionSurface
	AvgPositionDistance
	Top3DistanceGap
	RunningStyleCode
	RaceDistance
	SurfaceTurf
	FieldSize
	Odds
	OddsRank
	DaysSinceLast
	AvgPositionCondition
	WeightChange
	WeightDeviation
	JockeyHorseWinRate
	JockeyWinRate
	JockeyPlaceRate
	Age
	SexMale
)

// Defaults substituted when an entrant has no qualifying history or a field
// cannot be parsed
const (
	DefaultPosition      = 9.0
	DefaultDaysSinceLast = 90.0
	DefaultOdds          = 50.0
	DefaultDistance      = 1600
	DefaultAge           = 4.0
	DistanceBand         = 200
)

var featureNames = [NumFeatures]string{
	AvgPositionAll:       "avg_position_all",
	AvgPositionRecent3:   "avg_position_recent3",
	WinRate:              "win_rate",
	PlaceRate:            "place_rate",
	Trend:                "trend",
	AvgPositionSurface:   "avg_position_surface",
	AvgPositionDistance:  "avg_position_distance",
	Top3DistanceGap:      "top3_distance_gap",
	RunningStyleCode:     "running_style",
	RaceDistance:         "race_distance",
	SurfaceTurf:          "surface_turf",
	FieldSize:            "field_size",
	Odds:                 "odds",
	OddsRank:             "odds_rank",
	DaysSinceLast:        "days_since_last",
	AvgPositionCondition: "avg_position_condition",
	WeightChange:         "weight_change",
	WeightDeviation:      "weight_deviation",
	JockeyHorseWinRate:   "jockey_horse_win_rate",
	JockeyWinRate:        "jockey_win_rate",
	JockeyPlaceRate:      "jockey_place_rate",
	Age:                  "age",
	SexMale:              "sex_male",
}

// Vector is the feature row for one entrant
type Vector [NumFeatures]float64

// Names returns the feature names in column order
func Names() []string {
	names := make([]string, NumFeatures)
	copy(names, featureNames[:])
	return names
}

// Index returns the column of a named feature
func Index(name string) (int, bool) {
	for i, n := range featureNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Slice returns the vector as a fresh slice
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Map returns the vector keyed by feature name, for logging and export
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range featureNames {
		m[name] = v[i]
	}
	return m
}
