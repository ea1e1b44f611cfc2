package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"route-navigator/internal/nav"
	"route-navigator/internal/profile"
	"route-navigator/internal/route"
	"route-navigator/internal/transport"
)

// Control carries out a control request for a vehicle. Starting navigation
// creates the vehicle if needed; other actions need a known vehicle.
func (m *Manager) Control(ctx context.Context, id string, req transport.ControlRequest) error {
	switch req.Action {
	case transport.ActionStart:
		v, err := m.vehicle(id, true)
		if err != nil {
			return err
		}
		return m.start(ctx, v, req)
	case transport.ActionEnd, transport.ActionEnable, transport.ActionDisable, transport.ActionConfigure:
	default:
		return fmt.Errorf("action %q: %w", req.Action, route.ErrInvalidArgument)
	}

	v, err := m.vehicle(id, false)
	if err != nil {
		return err
	}
	switch req.Action {
	case transport.ActionEnd:
		return v.engine.EndNavigation()
	case transport.ActionEnable:
		v.engine.SetNavigationEnabled(true)
	case transport.ActionDisable:
		v.engine.SetNavigationEnabled(false)
	case transport.ActionConfigure:
		return configure(v.engine, req)
	}
	return nil
}

func (m *Manager) start(ctx context.Context, v *vehicle, req transport.ControlRequest) error {
	p, err := m.profile(ctx, req.Profile)
	if err != nil {
		return err
	}
	if req.RouteID != "" {
		if m.opts.Routes == nil {
			return ErrNoRouteStore
		}
		r, err := m.opts.Routes.Route(ctx, req.RouteID)
		if err != nil {
			return err
		}
		v.log.Info("starting stored route", "route", req.RouteID)
		return v.engine.StartNavigation(r, p)
	}
	if len(req.Destinations) == 0 {
		return fmt.Errorf("no route or destination: %w", route.ErrInvalidArgument)
	}
	v.log.Info("routing to destinations", "destinations", len(req.Destinations))
	return v.engine.StartNavigationTo(ctx, p, req.Destinations...)
}

// profile resolves a profile name; an empty name selects the engine
// default.
func (m *Manager) profile(ctx context.Context, name string) (*profile.Profile, error) {
	if name == "" {
		return nil, nil
	}
	if m.opts.Routes != nil {
		return m.opts.Routes.Profile(ctx, name)
	}
	p, err := profile.ByName(name)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, route.ErrInvalidArgument)
	}
	return p, nil
}

func configure(e *nav.Engine, req transport.ControlRequest) error {
	var errs []error
	if req.MinimumFixDistance != nil {
		errs = append(errs, e.SetMinimumFixDistance(*req.MinimumFixDistance))
	}
	if req.DistanceTolerance != nil {
		errs = append(errs, e.SetDistanceTolerance(*req.DistanceTolerance))
	}
	if req.TimeToleranceSec != nil {
		errs = append(errs, e.SetTimeTolerance(time.Duration(*req.TimeToleranceSec*float64(time.Second))))
	}
	if req.AutoReRoute != nil {
		errs = append(errs, e.SetAutoReRoute(*req.AutoReRoute))
	}
	return errors.Join(errs...)
}
