package offset

import (
	"math"

	"github.com/tidwall/geodesic"
)

// Point is a geographic position in decimal degrees. X is longitude and Y is
// latitude, matching the column order of waypoint files.
type Point struct {
	X float64
	Y float64
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

// normalize maps an angle in degrees to [0, 360).
func normalize(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Bearing returns the initial great-circle bearing from one point to
// another, in degrees clockwise from north within [0, 360).
func Bearing(from, to Point) float64 {
	lat1, lat2 := rad(from.Y), rad(to.Y)
	dLon := rad(to.X - from.X)

	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return normalize(deg(math.Atan2(x, y)))
}

// Left returns the bearing perpendicular to the left of b.
func Left(b float64) float64 {
	return normalize(b - 90)
}

// Destination solves the direct geodesic problem on WGS84: the point reached
// by travelling meters from start along the initial bearing.
func Destination(start Point, bearing, meters float64) Point {
	if meters == 0 {
		return start
	}
	var lat, lon float64
	geodesic.WGS84.Direct(start.Y, start.X, bearing, meters, &lat, &lon, nil)
	return Point{X: normalize(lon+180) - 180, Y: lat}
}

// Distance solves the inverse geodesic problem on WGS84 and returns the
// ellipsoidal distance in meters.
func Distance(p, q Point) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(p.Y, p.X, q.Y, q.X, &s12, nil, nil)
	return s12
}

// planar is the squared Euclidean distance in degrees, used only to rank
// candidates.
func planar(p, q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}
