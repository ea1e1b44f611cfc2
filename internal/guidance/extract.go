package guidance

import (
	"route-navigator/internal/route"

	"github.com/paulmach/orb"
)

// Turn is an instruction at the junction at the start of a route segment.
type Turn struct {
	Type       route.TurnType        `json:"type"`
	Roundabout route.RoundaboutState `json:"roundabout"`
	Angle      float64               `json:"angle"`
	ExitNumber int                   `json:"exit_number"`
	Continue   bool                  `json:"continue"`
	Choices    int                   `json:"choices"`
	// Distance in meters and Time in seconds to the junction.
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`

	FromName string         `json:"from_name,omitempty"`
	FromRef  string         `json:"from_ref,omitempty"`
	FromType route.RoadType `json:"from_type"`
	ToName   string         `json:"to_name,omitempty"`
	ToRef    string         `json:"to_ref,omitempty"`
	ToType   route.RoadType `json:"to_type"`

	JunctionName string    `json:"junction_name,omitempty"`
	JunctionRef  string    `json:"junction_ref,omitempty"`
	Position     orb.Point `json:"position"`
	// SegmentIndex is the segment starting at the junction, or -1.
	SegmentIndex int `json:"segment_index"`
}

// NoTurn is reported when no instruction lies ahead.
var NoTurn = Turn{SegmentIndex: -1}

// Turns are the instructions ahead of a position. First is measured from the
// position, Second from First, and Continuation from the position.
type Turns struct {
	First        Turn `json:"first"`
	Second       Turn `json:"second"`
	Continuation Turn `json:"continuation"`
}

// NoTurns is the result when no position on the route is known.
var NoTurns = Turns{First: NoTurn, Second: NoTurn, Continuation: NoTurn}

// Extract returns the turns ahead of the on-route position at. The first
// turn is the next junction that needs an instruction; the continuation is
// the junction after it when that needs none but changes road name, so a
// "continue on" message can be given.
func Extract(r *route.Route, at route.NearestSegmentInfo) Turns {
	turns := NoTurns
	n := r.SegmentCount()
	if at.SegmentIndex < 0 || at.SegmentIndex >= n {
		return turns
	}

	first := nextInstruction(r, at.SegmentIndex+1)
	if first < 0 {
		return turns
	}
	dist, tm, _ := r.SegmentStart(first)
	turns.First = turnAt(r, first, dist-at.DistanceAlongRoute, tm-at.TimeAlongRoute)

	if second := nextInstruction(r, first+1); second >= 0 {
		d, t, _ := r.SegmentStart(second)
		turns.Second = turnAt(r, second, d-dist, t-tm)
	}

	if next := first + 1; next < n {
		cur, _ := r.Segment(first)
		s, _ := r.Segment(next)
		if s.Junction.Continue && s.Name != cur.Name {
			d, t, _ := r.SegmentStart(next)
			turns.Continuation = turnAt(r, next, d-at.DistanceAlongRoute, t-at.TimeAlongRoute)
		}
	}
	return turns
}

// nextInstruction returns the index of the first segment at or after from
// whose junction needs an instruction, or -1.
func nextInstruction(r *route.Route, from int) int {
	for i := from; i < r.SegmentCount(); i++ {
		s, _ := r.Segment(i)
		if !s.Junction.Continue {
			return i
		}
	}
	return -1
}

// turnAt builds the turn at the start of segment i, which must be > 0.
func turnAt(r *route.Route, i int, dist, tm float64) Turn {
	prev, _ := r.Segment(i - 1)
	s, _ := r.Segment(i)
	pos, _ := r.StartPoint(i)
	j := s.Junction
	t := Turn{
		Type:         ClassifyJunction(j),
		Angle:        j.Angle,
		Continue:     j.Continue,
		Choices:      j.Choices,
		Distance:     max(dist, 0),
		Time:         max(tm, 0),
		FromName:     prev.Name,
		FromRef:      prev.Ref,
		FromType:     prev.RoadType,
		ToName:       s.Name,
		ToRef:        s.Ref,
		ToType:       s.RoadType,
		JunctionName: j.Name,
		JunctionRef:  j.Ref,
		Position:     pos,
		SegmentIndex: i,
	}
	t.Roundabout, t.ExitNumber = roundabout(r, i)
	return t
}

// roundabout derives the roundabout state at the start of segment i from
// the roundabout flags of the segments either side of the junction. The
// exit number counts the roundabout segments traversed before the junction;
// the junction where the roundabout is entered is exit 0.
func roundabout(r *route.Route, i int) (route.RoundaboutState, int) {
	prev, _ := r.Segment(i - 1)
	s, _ := r.Segment(i)
	in, on := prev.RoadType.Roundabout(), s.RoadType.Roundabout()
	if !in {
		if on {
			return route.RoundaboutEnter, 0
		}
		return s.Junction.Roundabout, s.Junction.ExitNumber
	}

	exits := 0
	for k := i - 1; k >= 0; k-- {
		seg, _ := r.Segment(k)
		if !seg.RoadType.Roundabout() {
			break
		}
		exits++
	}
	if on {
		return route.RoundaboutContinue, exits
	}
	return route.RoundaboutExit, exits
}
