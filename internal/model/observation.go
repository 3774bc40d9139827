// Package model defines the records shared by the classification pipeline,
// the run store and the read API.
package model

// Observation is the land-cover result for one image, keyed by
// (SID, heading, pitch). Percentages are always within [0, 100].
type Observation struct {
	SID      string  `json:"sid" yaml:"sid"`
	Heading  string  `json:"heading" yaml:"heading"`
	Pitch    string  `json:"pitch" yaml:"pitch"`
	PerGreen float64 `json:"per_green" yaml:"per_green"`
	PerSky   float64 `json:"per_sky" yaml:"per_sky"`
}

// SummaryRow is the mean coverage for one (SID, pitch) pair across all
// observed headings.
type SummaryRow struct {
	SID      string  `json:"sid"`
	Pitch    string  `json:"pitch"`
	PerGreen float64 `json:"per_green"`
	PerSky   float64 `json:"per_sky"`
	Headings int     `json:"headings"`
}

// Skip records an image the aggregator could not classify.
type Skip struct {
	Path   string    `json:"path" yaml:"path"`
	Kind   ErrorKind `json:"kind" yaml:"kind"`
	Reason string    `json:"reason" yaml:"reason"`
}

// Location is a sensor site to acquire imagery around.
type Location struct {
	SID string  `json:"sid"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
