// Package store persists the run ledger: one row per aggregator run plus the
// observations and skips it produced.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/streetcover/internal/model"
)

// ErrNotFound is returned (wrapped) when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
// A zero Limit selects the default page size; a negative Limit lists every
// matching run.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	InputDir     string          `json:"input_dir,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for classification runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, inputDir string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SaveObservations(ctx context.Context, runID string, obs []model.Observation) error
	SaveSkips(ctx context.Context, runID string, skips []model.Skip) error
	ListObservations(ctx context.Context, runID string) ([]model.Observation, error)
	ListSkips(ctx context.Context, runID string) ([]model.Skip, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// listLimit resolves the page size; -1 means unbounded.
func listLimit(f RunFilter) int {
	switch {
	case f.Limit < 0:
		return -1
	case f.Limit == 0:
		return defaultListLimit
	}
	return f.Limit
}

func notFound(runID string) error {
	return eris.Wrapf(ErrNotFound, "run %s", runID)
}
