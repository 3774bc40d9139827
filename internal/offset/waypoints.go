package offset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/streetcover/internal/table"
)

// LoadWaypoints reads a CSV with X (longitude) and Y (latitude) columns.
func LoadWaypoints(ctx context.Context, r io.Reader) ([]Point, error) {
	header, rows, err := table.ReadAllCSV(ctx, r)
	if err != nil {
		return nil, eris.Wrap(err, "offset: read waypoints")
	}
	pos, err := table.RequireColumns(table.ColumnIndex(header), "X", "Y")
	if err != nil {
		return nil, eris.Wrap(err, "offset: waypoints")
	}

	pts := make([]Point, 0, len(rows))
	for i, row := range rows {
		if pos[0] >= len(row) || pos[1] >= len(row) {
			return nil, eris.Errorf("offset: waypoint row %d is short", i+2)
		}
		x, err := strconv.ParseFloat(row[pos[0]], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "offset: waypoint row %d X", i+2)
		}
		y, err := strconv.ParseFloat(row[pos[1]], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "offset: waypoint row %d Y", i+2)
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	return pts, nil
}

// WriteCSV writes points with an X,Y header.
func WriteCSV(w io.Writer, pts []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"X", "Y"}); err != nil {
		return eris.Wrap(err, "offset: write header")
	}
	for _, p := range pts {
		if err := cw.Write([]string{table.FormatFloat(p.X), table.FormatFloat(p.Y)}); err != nil {
			return eris.Wrap(err, "offset: write point")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "offset: flush csv")
}

// WriteGeoJSON writes points as a FeatureCollection of Point features with
// their input index as the "index" property.
func WriteGeoJSON(w io.Writer, pts []Point) error {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, len(pts))}
	for i, p := range pts {
		fc.Features[i] = &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}),
			Properties: map[string]any{"index": i},
		}
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "offset: encode geojson")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "offset: write geojson")
}
