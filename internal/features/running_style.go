package features

import "github.com/yourusername/race-edge/internal/models"

// RunningStyle is where a horse habitually races in the field
type RunningStyle int

const (
	StyleUnknown RunningStyle = iota
	StyleFrontRunner
	StylePacePresser
	StyleMidPackCloser
	StyleBackCloser
)

const unknownStyleOrdinal = 2.5

// Ordinal encodes the style for the feature vector. Unknown sits between
// pace-presser and mid-pack closer.
func (s RunningStyle) Ordinal() float64 {
	switch s {
	case StyleFrontRunner:
		return 1
	case StylePacePresser:
		return 2
	case StyleMidPackCloser:
		return 3
	case StyleBackCloser:
		return 4
	default:
		return unknownStyleOrdinal
	}
}

func (s RunningStyle) String() string {
	switch s {
	case StyleFrontRunner:
		return "front_runner"
	case StylePacePresser:
		return "pace_presser"
	case StyleMidPackCloser:
		return "mid_pack_closer"
	case StyleBackCloser:
		return "back_closer"
	default:
		return "unknown"
	}
}

// ClassifyRunningStyle averages the mean checkpoint position of every
// parseable passing order. Malformed strings are skipped.
func ClassifyRunningStyle(history []*models.HistoricalEntry) RunningStyle {
	var sum float64
	var races int

	for _, h := range history {
		if h == nil || h.Entry == nil {
			continue
		}
		positions, ok := models.ParsePassingOrder(h.Entry.PassingOrder)
		if !ok {
			continue
		}
		total := 0
		for _, p := range positions {
			total += p
		}
		sum += float64(total) / float64(len(positions))
		races++
	}

	if races == 0 {
		return StyleUnknown
	}

	switch mean := sum / float64(races); {
	case mean <= 2.0:
		return StyleFrontRunner
	case mean <= 5.0:
		return StylePacePresser
	case mean <= 10.0:
		return StyleMidPackCloser
	default:
		return StyleBackCloser
	}
}
