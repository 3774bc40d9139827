package model

import "time"

// RunStatus represents the current state of a classification run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one pass of the batch aggregator over an input directory.
type Run struct {
	ID        string    `json:"id"`
	InputDir  string    `json:"input_dir"`
	Status    RunStatus `json:"status"`
	Images    int       `json:"images"`
	Observed  int       `json:"observed"`
	Skipped   int       `json:"skipped"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunCounts holds the totals recorded when a run completes.
type RunCounts struct {
	Images   int `json:"images"`
	Observed int `json:"observed"`
	Skipped  int `json:"skipped"`
}
