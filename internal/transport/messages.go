package transport

import (
	"errors"
	"fmt"
	"time"

	"route-navigator/internal/nav"
	"route-navigator/internal/profile"
	"route-navigator/internal/route"

	"github.com/paulmach/orb"
)

// FixMessage is a position report on the wire. Absent fields are invalid.
type FixMessage struct {
	Time *time.Time `json:"time,omitempty"`
	Lon  *float64   `json:"lon,omitempty"`
	Lat  *float64   `json:"lat,omitempty"`
	// Speed in km/h.
	Speed *float64 `json:"speed,omitempty"`
	// Course in degrees clockwise from north.
	Course *float64 `json:"course,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// Fix converts m, setting the validity flag of each field present. A
// position needs both coordinates.
func (m FixMessage) Fix() nav.Fix {
	var f nav.Fix
	if m.Time != nil {
		f.Validity |= nav.ValidTime
		f.Time = *m.Time
	}
	if m.Lon != nil && m.Lat != nil {
		f.Validity |= nav.ValidPosition
		f.Position = orb.Point{*m.Lon, *m.Lat}
	}
	if m.Speed != nil {
		f.Validity |= nav.ValidSpeed
		f.Speed = *m.Speed
	}
	if m.Course != nil {
		f.Validity |= nav.ValidCourse
		f.Course = *m.Course
	}
	if m.Height != nil {
		f.Validity |= nav.ValidHeight
		f.Height = *m.Height
	}
	return f
}

// Control actions.
const (
	ActionStart     = "start"
	ActionEnd       = "end"
	ActionEnable    = "enable"
	ActionDisable   = "disable"
	ActionConfigure = "configure"
)

// ControlRequest asks for a change to a vehicle's navigation. A start
// request names either a stored route or destinations to route to from the
// vehicle's position. Settings left out of a configure request are
// unchanged.
type ControlRequest struct {
	Action  string `json:"action"`
	RouteID string `json:"route_id,omitempty"`
	// Destinations are longitude, latitude pairs.
	Destinations []orb.Point `json:"destinations,omitempty"`
	Profile      string      `json:"profile,omitempty"`

	MinimumFixDistance *float64 `json:"minimum_fix_distance,omitempty"`
	DistanceTolerance  *float64 `json:"distance_tolerance,omitempty"`
	TimeToleranceSec   *float64 `json:"time_tolerance_sec,omitempty"`
	AutoReRoute        *bool    `json:"auto_re_route,omitempty"`
}

type ControlReply struct {
	Code  int    `json:"code"`
	Error string `json:"error,omitempty"`
}

type invalidRequest struct{ err error }

func (e *invalidRequest) Error() string { return "invalid request: " + e.err.Error() }
func (e *invalidRequest) Unwrap() []error {
	return []error{e.err, route.ErrInvalidArgument}
}

func replyFor(err error) ControlReply {
	if err == nil {
		return ControlReply{}
	}
	return ControlReply{Code: nav.Code(err), Error: err.Error()}
}

// RouteRequest is sent to the routing service. Waypoints are in map
// coordinates.
type RouteRequest struct {
	Profile   *profile.Profile `json:"profile"`
	Waypoints []orb.Point      `json:"waypoints"`
	Options   nav.RouteOptions `json:"options"`
}

// RouteReply is the routing service's answer: a result code and, on
// success, the route.
type RouteReply struct {
	Code     int             `json:"code"`
	Error    string          `json:"error,omitempty"`
	Sections []route.Section `json:"sections,omitempty"`
}

// Route decodes the reply into a route or the routing error it reports.
func (r RouteReply) Route() (*route.Route, error) {
	if err := nav.FromCode(r.Code, r.Error); err != nil {
		return nil, err
	}
	if len(r.Sections) == 0 {
		return nil, nav.ErrNoRoute
	}
	rt, err := route.New(r.Sections)
	if err != nil {
		return nil, fmt.Errorf("route reply: %w", err)
	}
	return rt, nil
}

// ReplyFor builds the reply for a routing result, for routing services
// written against this package.
func ReplyFor(r *route.Route, err error) RouteReply {
	if err != nil {
		return RouteReply{Code: nav.Code(err), Error: err.Error()}
	}
	if r == nil {
		return RouteReply{Code: nav.CodeNoRoute, Error: nav.ErrNoRoute.Error()}
	}
	return RouteReply{Sections: r.Sections()}
}

var errEmptyReply = errors.New("empty reply from router")
