package offset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPath_PointFeatures(t *testing.T) {
	path := writeFile(t, "nodes.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-105.1, 40.1]}, "properties": {}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-105.2, 40.2]}, "properties": {}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-105.3, 40.3]}, "properties": {}}
		]
	}`)

	pts, err := LoadPath(path)
	require.NoError(t, err)
	assert.Equal(t, []Point{{X: -105.1, Y: 40.1}, {X: -105.2, Y: 40.2}, {X: -105.3, Y: 40.3}}, pts)
}

func TestLoadPath_LineFeatures(t *testing.T) {
	path := writeFile(t, "route.json", `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [0, 1]]}, "properties": null},
			{"type": "Feature", "geometry": {"type": "MultiLineString", "coordinates": [[[1, 1], [2, 2]], [[3, 3]]]}, "properties": null},
			{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}, "properties": null}
		]
	}`)

	pts, err := LoadPath(path)
	require.NoError(t, err)
	assert.Equal(t, []Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}, pts)
}

func TestLoadPath_BareGeometry(t *testing.T) {
	path := writeFile(t, "line.geojson", `{"type": "LineString", "coordinates": [[5, 5], [6, 6]]}`)

	pts, err := LoadPath(path)
	require.NoError(t, err)
	assert.Len(t, pts, 2)
}

func TestLoadPath_TooFewVertices(t *testing.T) {
	path := writeFile(t, "one.geojson", `{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}}`)

	_, err := LoadPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 2")
}

func TestLoadPath_Errors(t *testing.T) {
	_, err := LoadPath(writeFile(t, "path.kml", "<kml/>"))
	assert.ErrorContains(t, err, "unsupported path format")

	_, err = LoadPath(writeFile(t, "bad.geojson", "{not json"))
	assert.Error(t, err)

	_, err = LoadPath(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}

func TestLoadPath_Shapefile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "route.shp")
	w, err := shp.Create(base, shp.POLYLINE)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 16)}))

	line := shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 0.01}},
		{{X: 0.01, Y: 0.01}},
	})
	n := w.Write(line)
	require.NoError(t, w.WriteAttribute(int(n), 0, "main"))
	w.Close()

	pts, err := LoadPath(base)
	require.NoError(t, err)
	assert.Equal(t, []Point{{X: 0, Y: 0}, {X: 0, Y: 0.01}, {X: 0.01, Y: 0.01}}, pts)
}

func TestShapeToGeom_Unsupported(t *testing.T) {
	assert.Nil(t, shapeToGeom(nil))
	assert.Nil(t, shapeToGeom(&shp.Polygon{}))
	assert.Nil(t, polyLineToMultiLineString(&shp.PolyLine{}))
}
