// Package summary reduces per-image observations to per-location means.
package summary

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/streetcover/internal/model"
)

type groupKey struct {
	sid   string
	pitch string
}

// Summarize groups observations by (SID, pitch) and returns the arithmetic
// mean of per_green and per_sky for each group. Heading is averaged out.
// Rows are sorted by SID, then pitch. The input is not modified.
func Summarize(obs []model.Observation) []model.SummaryRow {
	greens := make(map[groupKey][]float64)
	skies := make(map[groupKey][]float64)
	var keys []groupKey

	for _, o := range obs {
		k := groupKey{sid: o.SID, pitch: o.Pitch}
		if _, seen := greens[k]; !seen {
			keys = append(keys, k)
		}
		greens[k] = append(greens[k], o.PerGreen)
		skies[k] = append(skies[k], o.PerSky)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sid != keys[j].sid {
			return keys[i].sid < keys[j].sid
		}
		return PitchLess(keys[i].pitch, keys[j].pitch)
	})

	rows := make([]model.SummaryRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, model.SummaryRow{
			SID:      k.sid,
			Pitch:    k.pitch,
			PerGreen: stat.Mean(greens[k], nil),
			PerSky:   stat.Mean(skies[k], nil),
			Headings: len(greens[k]),
		})
	}
	return rows
}

// PitchLess orders pitches numerically when both parse as integers and
// lexically otherwise.
func PitchLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
