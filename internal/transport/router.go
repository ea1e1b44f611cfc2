package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"route-navigator/internal/nav"
	"route-navigator/internal/profile"
	"route-navigator/internal/route"

	"github.com/nats-io/nats.go"
	"github.com/paulmach/orb"
)

const defaultRouterTimeout = 30 * time.Second

// Router computes routes by request/reply with a routing service over NATS.
type Router struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

func (r *Router) ComputeRoute(ctx context.Context, p *profile.Profile, waypoints []orb.Point, opts nav.RouteOptions) (*route.Route, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%d waypoints: %w", len(waypoints), route.ErrInvalidArgument)
	}
	b, err := json.Marshal(RouteRequest{Profile: p, Waypoints: waypoints, Options: opts})
	if err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		timeout := r.timeout
		if timeout <= 0 {
			timeout = defaultRouterTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msg, err := r.nc.RequestWithContext(ctx, r.subject, b)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("%s: %w", r.subject, nav.ErrNoRouter)
		}
		return nil, fmt.Errorf("route request: %w", err)
	}
	return decodeReply(msg.Data)
}

func decodeReply(data []byte) (*route.Route, error) {
	if len(data) == 0 {
		return nil, errEmptyReply
	}
	var reply RouteReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("route reply: %v: %w", err, route.ErrCorrupt)
	}
	return reply.Route()
}
