package offset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// LoadPath reads the vertices of a path from a GeoJSON (.geojson, .json) or
// shapefile (.shp). Point features contribute one vertex each, in file
// order; line features contribute their coordinates in order.
func LoadPath(path string) ([]Point, error) {
	var (
		pts []Point
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		pts, err = loadGeoJSON(path)
	case ".shp":
		pts, err = loadShapefile(path)
	default:
		return nil, eris.Errorf("offset: unsupported path format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, eris.Errorf("offset: %s has %d vertices, need at least 2", path, len(pts))
	}
	return pts, nil
}

func loadGeoJSON(path string) ([]Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "offset: read %s", path)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrapf(err, "offset: parse %s", path)
	}

	var geoms []geom.T
	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrapf(err, "offset: parse feature collection %s", path)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrapf(err, "offset: parse feature %s", path)
		}
		geoms = append(geoms, f.Geometry)
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(err, "offset: parse geometry %s", path)
		}
		geoms = append(geoms, g)
	}

	var pts []Point
	for _, g := range geoms {
		pts = appendVertices(pts, g)
	}
	return pts, nil
}

func loadShapefile(path string) ([]Point, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "offset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var pts []Point
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}
		pts = appendVertices(pts, g)
	}

	if skipped > 0 {
		zap.L().Debug("offset: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return pts, nil
}

// appendVertices flattens point and line geometries into dst. Other
// geometry types are ignored.
func appendVertices(dst []Point, g geom.T) []Point {
	switch t := g.(type) {
	case *geom.Point:
		if t.Empty() {
			return dst
		}
		c := t.Coords()
		return append(dst, Point{X: c.X(), Y: c.Y()})
	case *geom.MultiPoint:
		return appendCoords(dst, t.Coords())
	case *geom.LineString:
		return appendCoords(dst, t.Coords())
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			dst = appendCoords(dst, t.LineString(i).Coords())
		}
		return dst
	default:
		return dst
	}
}

func appendCoords(dst []Point, coords []geom.Coord) []Point {
	for _, c := range coords {
		dst = append(dst, Point{X: c.X(), Y: c.Y()})
	}
	return dst
}

// shapeToGeom converts a go-shp point or polyline to a go-geom geometry.
// Returns nil for unsupported or empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	default:
		return nil
	}
}

// polyLineToMultiLineString converts a shapefile PolyLine to a geom.MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("offset: skipping malformed polyline part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}
