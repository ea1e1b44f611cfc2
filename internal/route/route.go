// Package route holds the immutable model of a computed route and the
// spatial queries navigation runs against it.
package route

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	ErrCorrupt         = errors.New("corrupt route data")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Consecutive segment endpoints closer than this (in map units) are
// considered to coincide.
const contiguityTolerance = 1e-3

// PointKind classifies a path point for curve rendering.
type PointKind uint8

const (
	OnCurve PointKind = iota
	Quadratic
	Cubic
)

// Point is a path point in projected map coordinates.
type Point struct {
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Kind PointKind `json:"kind,omitempty"`
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Orb() orb.Point { return orb.Point{p.X, p.Y} }

// Segment is a stretch of route along one road between two junctions
// where guidance may be needed.
type Segment struct {
	RoadType RoadType `json:"road_type"`
	// MaxSpeed in km/h; 0 means unknown.
	MaxSpeed float64 `json:"max_speed,omitempty"`
	Name     string  `json:"name,omitempty"`
	Ref      string  `json:"ref,omitempty"`
	// Distance in meters.
	Distance float64 `json:"distance"`
	// Time in seconds to traverse the segment, including TurnTime.
	Time     float64 `json:"time"`
	TurnTime float64 `json:"turn_time,omitempty"`
	Path     []Point `json:"path"`
	// Section is assigned by New from the segment's position in the route.
	Section    int      `json:"-"`
	Junction   Junction `json:"junction"`
	Restricted bool     `json:"restricted,omitempty"`
}

// Section is the part of a route between two consecutive waypoints.
type Section struct {
	Segments []Segment `json:"segments"`
}

// segmentGeometry caches what the locator needs for one segment.
type segmentGeometry struct {
	line       orb.LineString // on-curve points only
	cum        []float64      // path length, in map units, up to each point
	bound      orb.Bound
	startDist  float64
	startTime  float64
	alongScale float64 // meters along route per map unit of path
	perpScale  float64 // meters per map unit for distances off the path
}

// Route is an ordered list of sections; it is read-only once built and safe
// to share between goroutines.
type Route struct {
	segs     []Segment
	geom     []segmentGeometry
	sections int
	distance float64
	time     float64
	toll     float64
}

// New builds a route from its sections. It fails with ErrCorrupt if a
// section is empty, a segment has no on-curve points, or consecutive
// segments do not join up.
func New(sections []Section) (*Route, error) {
	r := &Route{sections: len(sections)}
	for si, sec := range sections {
		if len(sec.Segments) == 0 {
			return nil, fmt.Errorf("section %d has no segments: %w", si, ErrCorrupt)
		}
		for _, s := range sec.Segments {
			s.Section = si
			s.Path = append([]Point(nil), s.Path...)
			r.segs = append(r.segs, s)
		}
	}

	r.geom = make([]segmentGeometry, len(r.segs))
	for i := range r.segs {
		s := &r.segs[i]
		g := &r.geom[i]
		for _, p := range s.Path {
			if p.Kind == OnCurve {
				g.line = append(g.line, p.Orb())
			}
		}
		if len(g.line) == 0 {
			return nil, fmt.Errorf("segment %d has no on-curve points: %w", i, ErrCorrupt)
		}
		if s.Distance < 0 || s.Time < 0 || math.IsNaN(s.Distance) || math.IsNaN(s.Time) {
			return nil, fmt.Errorf("segment %d has negative distance or time: %w", i, ErrCorrupt)
		}
		if i > 0 {
			prev := r.geom[i-1].line
			if planar.Distance(prev[len(prev)-1], g.line[0]) > contiguityTolerance {
				return nil, fmt.Errorf("segment %d does not start where segment %d ends: %w", i, i-1, ErrCorrupt)
			}
		}

		g.cum = make([]float64, len(g.line))
		for k := 1; k < len(g.line); k++ {
			g.cum[k] = g.cum[k-1] + planar.Distance(g.line[k-1], g.line[k])
		}
		g.bound = g.line.Bound()
		g.startDist = r.distance
		g.startTime = r.time
		if pathLen := g.cum[len(g.cum)-1]; pathLen > 0 {
			g.alongScale = s.Distance / pathLen
		}
		g.perpScale = g.alongScale
		if g.perpScale <= 0 {
			g.perpScale = 1
		}

		r.distance += s.Distance
		r.time += s.Time
		if s.RoadType.Toll() {
			r.toll += s.Distance
		}
	}
	return r, nil
}

// Distance returns the length of the route in meters.
func (r *Route) Distance() float64 { return r.distance }

// Time returns the estimated time to traverse the route in seconds.
func (r *Route) Time() float64 { return r.time }

// TollRoadDistance returns the meters of the route that are on toll roads.
func (r *Route) TollRoadDistance() float64 { return r.toll }

func (r *Route) SegmentCount() int {
	if r == nil {
		return 0
	}
	return len(r.segs)
}

func (r *Route) SectionCount() int { return r.sections }

// Segment returns a copy of the segment at index i. The Path slice is shared
// and must not be modified.
func (r *Route) Segment(i int) (Segment, error) {
	if err := r.checkIndex(i); err != nil {
		return Segment{}, err
	}
	return r.segs[i], nil
}

// SegmentStart returns the distance and time along the route at which
// segment i starts.
func (r *Route) SegmentStart(i int) (distance, time float64, err error) {
	if err := r.checkIndex(i); err != nil {
		return 0, 0, err
	}
	g := r.geom[i]
	return g.startDist, g.startTime, nil
}

// StartPoint returns the first on-curve point of segment i.
func (r *Route) StartPoint(i int) (orb.Point, error) {
	if err := r.checkIndex(i); err != nil {
		return orb.Point{}, err
	}
	return r.geom[i].line[0], nil
}

func (r *Route) checkIndex(i int) error {
	if i < 0 || i >= r.SegmentCount() {
		return fmt.Errorf("segment index %d out of range [0,%d): %w", i, r.SegmentCount(), ErrInvalidArgument)
	}
	return nil
}

// Waypoints returns the start of each section followed by the end of the
// route. A route with n sections has n+1 waypoints.
func (r *Route) Waypoints() []orb.Point {
	if r.SegmentCount() == 0 {
		return nil
	}
	wps := make([]orb.Point, 0, r.sections+1)
	section := -1
	for i, s := range r.segs {
		if s.Section != section {
			section = s.Section
			wps = append(wps, r.geom[i].line[0])
		}
	}
	last := r.geom[len(r.geom)-1].line
	return append(wps, last[len(last)-1])
}

// Sections returns the route in the form New accepts.
func (r *Route) Sections() []Section {
	if r.SegmentCount() == 0 {
		return nil
	}
	secs := make([]Section, r.sections)
	for _, s := range r.segs {
		secs[s.Section].Segments = append(secs[s.Section].Segments, s)
	}
	return secs
}
