package table

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/streetcover/internal/model"
)

// Column headers of the two published tables.
var (
	ObservationHeader = []string{"SID", "heading", "pitch", "per_green", "per_sky"}
	SummaryHeader     = []string{"SID", "pitch", "per_green", "per_sky"}
)

// FormatFloat renders v as the shortest decimal that round-trips, always with
// a fractional part (50 -> "50.0").
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// WriteObservations writes the raw observation table, one row per
// observation in the given order.
func WriteObservations(w io.Writer, obs []model.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ObservationHeader); err != nil {
		return eris.Wrap(err, "table: write observation header")
	}
	for _, o := range obs {
		rec := []string{o.SID, o.Heading, o.Pitch, FormatFloat(o.PerGreen), FormatFloat(o.PerSky)}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "table: write observation row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "table: flush observations")
}

// WriteSummary writes the per-(SID, pitch) summary table.
func WriteSummary(w io.Writer, rows []model.SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return eris.Wrap(err, "table: write summary header")
	}
	for _, r := range rows {
		rec := []string{r.SID, r.Pitch, FormatFloat(r.PerGreen), FormatFloat(r.PerSky)}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "table: write summary row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "table: flush summary")
}

// ReadObservations parses a raw observation table. Columns are located by
// header name, so extra or reordered columns are tolerated.
func ReadObservations(ctx context.Context, r io.Reader) ([]model.Observation, error) {
	header, rows, err := ReadAllCSV(ctx, r)
	if err != nil {
		return nil, eris.Wrap(err, "table: read observations")
	}

	pos, err := RequireColumns(ColumnIndex(header), ObservationHeader...)
	if err != nil {
		return nil, err
	}

	obs := make([]model.Observation, 0, len(rows))
	for i, row := range rows {
		green, err := strconv.ParseFloat(field(row, pos[3]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "table: row %d per_green", i+2)
		}
		sky, err := strconv.ParseFloat(field(row, pos[4]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "table: row %d per_sky", i+2)
		}
		obs = append(obs, model.Observation{
			SID:      field(row, pos[0]),
			Heading:  field(row, pos[1]),
			Pitch:    field(row, pos[2]),
			PerGreen: green,
			PerSky:   sky,
		})
	}
	return obs, nil
}
