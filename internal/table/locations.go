package table

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/streetcover/internal/model"
)

// ReadLocations loads sensor locations from a CSV or XLSX file with SID, LAT
// and LON columns (header names are case-insensitive).
func ReadLocations(ctx context.Context, path string) ([]model.Location, error) {
	var header []string
	var rows [][]string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		all, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		if len(all) == 0 {
			return nil, eris.Errorf("table: %s is empty", path)
		}
		header, rows = all[0], all[1:]
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "table: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		header, rows, err = ReadAllCSV(ctx, f)
		if err != nil {
			return nil, eris.Wrapf(err, "table: read %s", path)
		}
	}

	return parseLocations(header, rows)
}

func parseLocations(header []string, rows [][]string) ([]model.Location, error) {
	pos, err := RequireColumns(ColumnIndex(header), "SID", "LAT", "LON")
	if err != nil {
		return nil, err
	}

	locs := make([]model.Location, 0, len(rows))
	for i, row := range rows {
		sid := strings.TrimSpace(field(row, pos[0]))
		if sid == "" {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(field(row, pos[1])), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "table: row %d LAT", i+2)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(field(row, pos[2])), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "table: row %d LON", i+2)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, eris.Errorf("table: row %d coordinates out of range (%v, %v)", i+2, lat, lon)
		}
		locs = append(locs, model.Location{SID: sid, Lat: lat, Lon: lon})
	}
	return locs, nil
}
