package route

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func straight(x0, x1 float64, name string) Segment {
	return Segment{
		Name:     name,
		Distance: x1 - x0,
		Time:     (x1 - x0) / 10,
		Path:     []Point{Pt(x0, 0), Pt(x1, 0)},
	}
}

// twoSegmentRoute is a 300 m route along the x axis: 100 m then 200 m.
func twoSegmentRoute(t *testing.T) *Route {
	t.Helper()
	r, err := New([]Section{{Segments: []Segment{straight(0, 100, "A"), straight(100, 300, "B")}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		sections []Section
		err      error
	}{
		{"empty section", []Section{{}}, ErrCorrupt},
		{"gap between segments", []Section{{Segments: []Segment{straight(0, 100, "A"), straight(101, 200, "B")}}}, ErrCorrupt},
		{"gap between sections", []Section{
			{Segments: []Segment{straight(0, 100, "A")}},
			{Segments: []Segment{straight(150, 200, "B")}},
		}, ErrCorrupt},
		{"only control points", []Section{{Segments: []Segment{{Path: []Point{{X: 1, Y: 1, Kind: Cubic}}}}}}, ErrCorrupt},
		{"negative distance", []Section{{Segments: []Segment{{Distance: -1, Path: []Point{Pt(0, 0)}}}}}, ErrCorrupt},
		{"contiguous", []Section{
			{Segments: []Segment{straight(0, 100, "A")}},
			{Segments: []Segment{straight(100, 200, "B")}},
		}, nil},
		{"no sections", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.sections)
			if !errors.Is(err, tt.err) {
				t.Errorf("New error: got %v, expected %v", err, tt.err)
			}
		})
	}
}

func TestTotals(t *testing.T) {
	toll := straight(100, 300, "B")
	toll.RoadType = SecondaryRoad | TollFlag
	r, err := New([]Section{{Segments: []Segment{straight(0, 100, "A"), toll}}})
	if err != nil {
		t.Fatal(err)
	}
	if r.Distance() != 300 {
		t.Errorf("Distance: got %v, expected 300", r.Distance())
	}
	if r.Time() != 30 {
		t.Errorf("Time: got %v, expected 30", r.Time())
	}
	if r.TollRoadDistance() != 200 {
		t.Errorf("TollRoadDistance: got %v, expected 200", r.TollRoadDistance())
	}
}

func TestSegmentIndex(t *testing.T) {
	r := twoSegmentRoute(t)
	for _, i := range []int{-1, 2, 3} {
		if _, err := r.Segment(i); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Segment(%d): got %v, expected ErrInvalidArgument", i, err)
		}
		if _, _, err := r.SegmentStart(i); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SegmentStart(%d): got %v, expected ErrInvalidArgument", i, err)
		}
		if _, err := r.StartPoint(i); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("StartPoint(%d): got %v, expected ErrInvalidArgument", i, err)
		}
	}
	if d, tm, err := r.SegmentStart(1); err != nil || d != 100 || tm != 10 {
		t.Errorf("SegmentStart(1): got %v, %v, %v, expected 100, 10", d, tm, err)
	}
	if p, err := r.StartPoint(1); err != nil || p != (orb.Point{100, 0}) {
		t.Errorf("StartPoint(1): got %v, %v, expected [100 0]", p, err)
	}
	s, err := r.Segment(1)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "B" {
		t.Errorf("Segment(1).Name: got %q, expected %q", s.Name, "B")
	}
}

func TestNewCopiesInput(t *testing.T) {
	seg := straight(0, 100, "A")
	sections := []Section{{Segments: []Segment{seg}}}
	r, err := New(sections)
	if err != nil {
		t.Fatal(err)
	}
	sections[0].Segments[0].Path[1] = Pt(50, 50)
	s, _ := r.Segment(0)
	if s.Path[1] != Pt(100, 0) {
		t.Errorf("route path changed with input: got %v", s.Path[1])
	}
}

func TestBoundaryFix(t *testing.T) {
	r := twoSegmentRoute(t)
	info := r.NearestSegment(orb.Point{100, 0}, 0, 0)
	if info.SegmentIndex != 1 {
		t.Errorf("SegmentIndex: got %d, expected 1", info.SegmentIndex)
	}
	if info.LineIndex != 0 {
		t.Errorf("LineIndex: got %d, expected 0", info.LineIndex)
	}
	if info.DistanceAlongRoute != 100 {
		t.Errorf("DistanceAlongRoute: got %v, expected 100", info.DistanceAlongRoute)
	}
	if info.DistanceToRoute != 0 {
		t.Errorf("DistanceToRoute: got %v, expected 0", info.DistanceToRoute)
	}
}

func TestEmptyRoute(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	info := r.NearestSegment(orb.Point{1, 1}, -1, 0)
	if info.SegmentIndex != -1 || info.DistanceToRoute != 0 {
		t.Errorf("got %+v, expected no segment", info)
	}
	if got := r.PointAtDistance(10); got.SegmentIndex != -1 {
		t.Errorf("PointAtDistance on empty route: got segment %d", got.SegmentIndex)
	}
}

func TestMonotonicity(t *testing.T) {
	// An L-shaped route with a bend in the middle of the second segment.
	r, err := New([]Section{{Segments: []Segment{
		straight(0, 100, "A"),
		{Name: "B", Distance: 200, Time: 25, Path: []Point{Pt(100, 0), Pt(200, 0), Pt(200, 100)}},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	prevDist, prevTime := -1.0, -1.0
	for d := 0.0; d <= r.Distance(); d += 7 {
		p := r.PointAtDistance(d).NearestPoint
		p[1] += 3 // a little off the path
		info := r.NearestSegment(p, 0, prevDist)
		if info.DistanceAlongRoute < prevDist {
			t.Errorf("distance along route went backwards at %v: got %v after %v", d, info.DistanceAlongRoute, prevDist)
		}
		if info.TimeAlongRoute < prevTime {
			t.Errorf("time along route went backwards at %v: got %v after %v", d, info.TimeAlongRoute, prevTime)
		}
		prevDist, prevTime = info.DistanceAlongRoute, info.TimeAlongRoute
	}
}

func TestPointAtDistanceRoundTrip(t *testing.T) {
	r, err := New([]Section{
		{Segments: []Segment{straight(0, 100, "A")}},
		{Segments: []Segment{
			{Name: "B", Distance: 400, Time: 40, Path: []Point{Pt(100, 0), Pt(100, 100), Pt(300, 100)}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Path units are scaled: segment B has 300 units of path for 400 m.
	for _, d := range []float64{0, 0.5, 50, 100, 150, 233.3, 399, 400} {
		p := r.PointAtDistance(d)
		back := r.NearestSegment(p.NearestPoint, -1, 0)
		if math.Abs(back.DistanceAlongRoute-d) > 1e-9 {
			t.Errorf("round trip of %v: got %v", d, back.DistanceAlongRoute)
		}
	}
}

func TestPointAtClamps(t *testing.T) {
	r := twoSegmentRoute(t)
	tests := []struct {
		name  string
		info  NearestSegmentInfo
		point orb.Point
	}{
		{"negative distance", r.PointAtDistance(-5), orb.Point{0, 0}},
		{"beyond end", r.PointAtDistance(1000), orb.Point{300, 0}},
		{"negative time", r.PointAtTime(-1), orb.Point{0, 0}},
		{"time inside second segment", r.PointAtTime(15), orb.Point{150, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.info.NearestPoint != tt.point {
				t.Errorf("got %v, expected %v", tt.info.NearestPoint, tt.point)
			}
		})
	}
}

func TestSectionHint(t *testing.T) {
	// Out and back: section 1 retraces section 0 one unit to the side.
	r, err := New([]Section{
		{Segments: []Segment{straight(0, 100, "out")}},
		{Segments: []Segment{{Name: "back", Distance: 101, Time: 10, Path: []Point{Pt(100, 0), Pt(100, 1), Pt(0, 1)}}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := orb.Point{30, 0.4}

	tests := []struct {
		name      string
		section   int
		prevAlong float64
		segment   int
		along     float64
	}{
		{"whole route", -1, 0, 0, 30},
		{"section hint skips earlier sections", 1, 0, 1, 171},
		{"previous position on the way back", 0, 150, 1, 171},
		{"previous position on the way out", 0, 20, 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := r.NearestSegment(p, tt.section, tt.prevAlong)
			if info.SegmentIndex != tt.segment {
				t.Errorf("SegmentIndex: got %d, expected %d", info.SegmentIndex, tt.segment)
			}
			if math.Abs(info.DistanceAlongRoute-tt.along) > 1e-9 {
				t.Errorf("DistanceAlongRoute: got %v, expected %v", info.DistanceAlongRoute, tt.along)
			}
		})
	}
}

func TestHeading(t *testing.T) {
	r, err := New([]Section{{Segments: []Segment{
		{Distance: 100, Time: 10, Path: []Point{Pt(0, 0), Pt(0, 100)}},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	info := r.NearestSegment(orb.Point{5, 50}, -1, 0)
	if info.Heading != 90 {
		t.Errorf("Heading: got %v, expected 90", info.Heading)
	}
	if info.DistanceToRoute != 5 {
		t.Errorf("DistanceToRoute: got %v, expected 5", info.DistanceToRoute)
	}
}

func TestWaypoints(t *testing.T) {
	r, err := New([]Section{
		{Segments: []Segment{straight(0, 100, "A"), straight(100, 200, "B")}},
		{Segments: []Segment{straight(200, 300, "C")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := r.Waypoints()
	expected := []orb.Point{{0, 0}, {200, 0}, {300, 0}}
	if len(got) != len(expected) {
		t.Fatalf("Waypoints: got %v, expected %v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("Waypoints[%d]: got %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestRoadTypeLevel(t *testing.T) {
	tests := []struct {
		rt       RoadType
		expected int
	}{
		{0, 0},
		{2 << levelShift, 2},
		{15 << levelShift, -1},
		{8 << levelShift, -8},
	}
	for _, tt := range tests {
		if got := tt.rt.Level(); got != tt.expected {
			t.Errorf("Level(%#x): got %d, expected %d", uint32(tt.rt), got, tt.expected)
		}
	}
}

func TestSectionsRebuild(t *testing.T) {
	r, err := New([]Section{
		{Segments: []Segment{straight(0, 100, "A"), straight(100, 200, "B")}},
		{Segments: []Segment{straight(200, 300, "C")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	secs := r.Sections()
	if len(secs) != 2 || len(secs[0].Segments) != 2 || len(secs[1].Segments) != 1 {
		t.Fatalf("Sections: got %+v", secs)
	}
	again, err := New(secs)
	if err != nil {
		t.Fatal(err)
	}
	if again.Distance() != r.Distance() || again.SectionCount() != 2 {
		t.Errorf("rebuilt route: distance %v sections %d", again.Distance(), again.SectionCount())
	}
}
