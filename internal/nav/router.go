package nav

import (
	"context"

	"route-navigator/internal/profile"
	"route-navigator/internal/route"

	"github.com/paulmach/orb"
)

// RouteOptions qualify a route request.
type RouteOptions struct {
	// Heading of travel at the start in degrees clockwise from north, used
	// to avoid routes that begin with a U-turn. Ignored unless HasHeading.
	Heading    float64 `json:"heading,omitempty"`
	HasHeading bool    `json:"has_heading,omitempty"`
	// ReRoute is set when the request replaces a route being followed.
	ReRoute bool `json:"re_route,omitempty"`
}

// Router computes routes through the road network. Waypoints are in map
// coordinates; the route starts at the first and ends at the last. Failures
// are ErrNoRoute, ErrNoRoadsNearStart, ErrNoRoadsNearEnd or
// ErrNoRouteConnectivity.
type Router interface {
	ComputeRoute(ctx context.Context, p *profile.Profile, waypoints []orb.Point, opts RouteOptions) (*route.Route, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(ctx context.Context, p *profile.Profile, waypoints []orb.Point, opts RouteOptions) (*route.Route, error)

func (f RouterFunc) ComputeRoute(ctx context.Context, p *profile.Profile, waypoints []orb.Point, opts RouteOptions) (*route.Route, error) {
	return f(ctx, p, waypoints, opts)
}
