package models

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bodyWeightPattern = regexp.MustCompile(`^\s*(\d{3,4})\s*\(\s*([+-]?\d+)\s*\)`)
	bodyWeightOnly    = regexp.MustCompile(`^\s*(\d{3,4})\s*$`)
	yearPattern       = regexp.MustCompile(`(\d{4})`)
)

// ParseBodyWeight splits a body-weight token such as "486(+4)" into the
// weight and the change since the previous start. A bare "486" yields a
// weight with no change. Tokens such as "計不" report ok=false.
func ParseBodyWeight(token string) (kg int, diff *int, ok bool) {
	if m := bodyWeightPattern.FindStringSubmatch(token); m != nil {
		kg, _ = strconv.Atoi(m[1])
		d, err := strconv.Atoi(m[2])
		if err != nil {
			return kg, nil, true
		}
		return kg, &d, true
	}
	if m := bodyWeightOnly.FindStringSubmatch(token); m != nil {
		kg, _ = strconv.Atoi(m[1])
		return kg, nil, true
	}
	return 0, nil, false
}

// ParseBirthYear extracts the first four-digit year from birth date text
// ("2020-03-15", "2020年3月15日", "2020").
func ParseBirthYear(text string) (int, bool) {
	m := yearPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year < 1900 {
		return 0, false
	}
	return year, true
}

// ParsePassingOrder converts a hyphen-separated checkpoint string such as
// "3-3-2-1" into positions. Any non-numeric segment makes the whole string
// malformed.
func ParsePassingOrder(text string) ([]int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var positions []int
	for _, part := range strings.Split(text, "-") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil || p <= 0 {
			return nil, false
		}
		positions = append(positions, p)
	}
	return positions, len(positions) > 0
}
