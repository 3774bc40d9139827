// Package offset moves waypoints recorded along a path sideways by a fixed
// distance, perpendicular to the left of the path's direction of travel.
package offset

import (
	"github.com/rotisserie/eris"
)

// Offsetter shifts waypoints relative to a fixed path.
type Offsetter struct {
	path   []Point
	meters float64
}

// New creates an Offsetter for a path of at least two vertices.
func New(path []Point, meters float64) (*Offsetter, error) {
	if len(path) < 2 {
		return nil, eris.Errorf("offset: path has %d vertices, need at least 2", len(path))
	}
	return &Offsetter{path: path, meters: meters}, nil
}

// Offset returns wp moved by the configured distance to the left of the path
// segment it lies on. The segment is chosen by projecting the nearest vertex
// along the incoming and outgoing segments by the waypoint's distance from
// it and keeping whichever projection lands closer to the waypoint. At the
// ends of the path the single adjoining segment is used.
func (o *Offsetter) Offset(wp Point) Point {
	return Destination(wp, Left(o.segmentBearing(wp)), o.meters)
}

// OffsetAll applies Offset to every waypoint in order.
func (o *Offsetter) OffsetAll(wps []Point) []Point {
	out := make([]Point, len(wps))
	for i, wp := range wps {
		out[i] = o.Offset(wp)
	}
	return out
}

func (o *Offsetter) segmentBearing(wp Point) float64 {
	i := nearestVertex(o.path, wp)
	last := len(o.path) - 1

	switch i {
	case 0:
		return Bearing(wp, o.path[1])
	case last:
		return Bearing(o.path[last-1], wp)
	}

	nv := o.path[i]
	dist := Distance(wp, nv)

	backward := Bearing(o.path[i-1], wp)
	forward := Bearing(wp, o.path[i+1])

	backPt := Destination(nv, normalize(backward-180), dist)
	fwdPt := Destination(nv, forward, dist)
	if planar(wp, backPt) <= planar(wp, fwdPt) {
		return backward
	}
	return forward
}

// nearestVertex returns the index of the vertex closest to p by planar
// distance in degrees; ties go to the lowest index.
func nearestVertex(path []Point, p Point) int {
	best, bestD := 0, planar(path[0], p)
	for i := 1; i < len(path); i++ {
		if d := planar(path[i], p); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
