package summary

import (
	"context"
	"io"

	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/table"
)

// FromCSV reads a raw observation table and summarizes it.
func FromCSV(ctx context.Context, r io.Reader) ([]model.SummaryRow, error) {
	obs, err := table.ReadObservations(ctx, r)
	if err != nil {
		return nil, err
	}
	return Summarize(obs), nil
}
