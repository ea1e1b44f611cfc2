package route

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// Candidates closer than this (in meters) are treated as equally near.
	tieTolerance = 1e-6
	// When a previous along-route distance is known, a candidate behind it
	// must be nearer than the best candidate ahead by more than this to win.
	backtrackMargin = 1.0
)

// NearestSegmentInfo describes the point on a route nearest to a query
// point, or the point at a given distance or time along it.
type NearestSegmentInfo struct {
	// SegmentIndex is -1 if the route has no segments.
	SegmentIndex int `json:"segment_index"`
	// LineIndex N is the line from on-curve point N to N+1 of the segment.
	LineIndex    int       `json:"line_index"`
	NearestPoint orb.Point `json:"nearest_point"`
	// Distances are in meters and times in seconds.
	DistanceToRoute      float64 `json:"distance_to_route"`
	DistanceAlongRoute   float64 `json:"distance_along_route"`
	DistanceAlongSegment float64 `json:"distance_along_segment"`
	TimeAlongRoute       float64 `json:"time_along_route"`
	TimeAlongSegment     float64 `json:"time_along_segment"`
	// Heading of the nearest line in degrees, anticlockwise from the
	// positive x axis.
	Heading float64 `json:"heading"`
}

// NoSegment is the result for queries against an empty route.
var NoSegment = NearestSegmentInfo{SegmentIndex: -1}

// NearestSegment finds the point on the route nearest to p.
//
// Only segments in section and later sections are considered; a negative
// section considers the whole route. prevAlong is the distance along the
// route of the previous position, or 0 if unknown; when it is positive,
// positions at or beyond it are preferred so a route that doubles back on
// itself is not followed backwards. Among equally near candidates the one
// furthest along the route wins.
func (r *Route) NearestSegment(p orb.Point, section int, prevAlong float64) NearestSegmentInfo {
	if r.SegmentCount() == 0 {
		return NoSegment
	}

	best := NoSegment
	bestDist := math.Inf(1)
	for i := range r.segs {
		if section >= 0 && r.segs[i].Section < section {
			continue
		}
		g := &r.geom[i]
		if !math.IsInf(bestDist, 1) {
			reach := (bestDist+backtrackMargin)/g.perpScale + tieTolerance
			if !g.bound.Pad(reach).Contains(p) {
				continue
			}
		}
		lines := max(len(g.line)-1, 1)
		for k := 0; k < lines; k++ {
			c := r.project(i, k, p)
			if better(c, best, prevAlong) {
				best = c
				bestDist = c.DistanceToRoute
			}
		}
	}
	return best
}

// better reports whether candidate c should replace the current best b.
func better(c, b NearestSegmentInfo, prevAlong float64) bool {
	if b.SegmentIndex < 0 {
		return true
	}
	if prevAlong > 0 {
		cAhead := c.DistanceAlongRoute >= prevAlong
		bAhead := b.DistanceAlongRoute >= prevAlong
		if cAhead && !bAhead {
			return c.DistanceToRoute <= b.DistanceToRoute+backtrackMargin
		}
		if bAhead && !cAhead {
			return c.DistanceToRoute < b.DistanceToRoute-backtrackMargin
		}
	}
	if c.DistanceToRoute < b.DistanceToRoute-tieTolerance {
		return true
	}
	if c.DistanceToRoute > b.DistanceToRoute+tieTolerance {
		return false
	}
	return c.DistanceAlongRoute >= b.DistanceAlongRoute
}

// project returns the nearest point to p on line k of segment i. A segment
// with a single on-curve point is treated as one degenerate line.
func (r *Route) project(i, k int, p orb.Point) NearestSegmentInfo {
	g := &r.geom[i]
	a := g.line[k]
	b := a
	if k+1 < len(g.line) {
		b = g.line[k+1]
	}

	dx, dy := b[0]-a[0], b[1]-a[1]
	t := 0.0
	if l2 := dx*dx + dy*dy; l2 > 0 {
		t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	q := orb.Point{a[0] + t*dx, a[1] + t*dy}

	alongPath := g.cum[k]
	if k+1 < len(g.cum) {
		alongPath += t * (g.cum[k+1] - g.cum[k])
	}
	info := NearestSegmentInfo{
		SegmentIndex:    i,
		LineIndex:       k,
		NearestPoint:    q,
		DistanceToRoute: math.Hypot(p[0]-q[0], p[1]-q[1]) * g.perpScale,
		Heading:         heading(dx, dy),
	}
	r.fillAlong(i, alongPath*g.alongScale, &info)
	return info
}

// fillAlong sets the along-route fields for a point distAlong meters into
// segment i.
func (r *Route) fillAlong(i int, distAlong float64, info *NearestSegmentInfo) {
	s := &r.segs[i]
	g := &r.geom[i]
	if distAlong > s.Distance {
		distAlong = s.Distance
	}
	frac := 0.0
	if s.Distance > 0 {
		frac = distAlong / s.Distance
	}
	info.DistanceAlongSegment = distAlong
	info.DistanceAlongRoute = g.startDist + distAlong
	info.TimeAlongSegment = frac * s.Time
	info.TimeAlongRoute = g.startTime + info.TimeAlongSegment
}

func heading(dx, dy float64) float64 {
	if dx == 0 && dy == 0 {
		return 0
	}
	h := math.Atan2(dy, dx) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}

// PointAtDistance returns the point d meters along the route. d is clamped
// to [0, Distance()].
func (r *Route) PointAtDistance(d float64) NearestSegmentInfo {
	return r.pointAt(d, func(i int) (start, length float64) {
		return r.geom[i].startDist, r.segs[i].Distance
	}, r.distance)
}

// PointAtTime returns the point reached t seconds after the start of the
// route. t is clamped to [0, Time()].
func (r *Route) PointAtTime(t float64) NearestSegmentInfo {
	return r.pointAt(t, func(i int) (start, length float64) {
		return r.geom[i].startTime, r.segs[i].Time
	}, r.time)
}

func (r *Route) pointAt(v float64, span func(i int) (start, length float64), total float64) NearestSegmentInfo {
	if r.SegmentCount() == 0 {
		return NoSegment
	}
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	if v > total {
		v = total
	}

	// Last segment whose span contains v; zero-length segments are skipped
	// unless nothing else covers v.
	i := 0
	for j := range r.segs {
		start, length := span(j)
		if v < start {
			break
		}
		if v <= start+length && (length > 0 || j == 0) {
			i = j
		}
	}
	start, length := span(i)
	frac := 0.0
	if length > 0 {
		frac = (v - start) / length
	}
	return r.interpolate(i, frac)
}

// interpolate returns the point at fraction frac of the path of segment i.
func (r *Route) interpolate(i int, frac float64) NearestSegmentInfo {
	g := &r.geom[i]
	s := &r.segs[i]
	info := NearestSegmentInfo{SegmentIndex: i}

	n := len(g.line)
	pathLen := g.cum[n-1]
	if n == 1 || pathLen == 0 {
		info.NearestPoint = g.line[0]
		r.fillAlong(i, frac*s.Distance, &info)
		return info
	}

	target := frac * pathLen
	k := 0
	for k < n-2 && g.cum[k+1] < target {
		k++
	}
	a, b := g.line[k], g.line[k+1]
	t := 0.0
	if l := g.cum[k+1] - g.cum[k]; l > 0 {
		t = (target - g.cum[k]) / l
	}
	info.LineIndex = k
	info.NearestPoint = orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
	info.Heading = heading(b[0]-a[0], b[1]-a[1])
	r.fillAlong(i, frac*s.Distance, &info)
	return info
}
