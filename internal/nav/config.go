package nav

import (
	"fmt"
	"math"
	"time"

	"route-navigator/internal/route"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Config holds the tunable navigation parameters. Distances are in meters.
type Config struct {
	// Fixes closer than this to the last accepted fix are ignored.
	MinimumFixDistance float64
	// Positions at least this far from the route count as off route.
	DistanceTolerance float64
	// How long a position must stay off route before re-routing.
	TimeTolerance time.Duration
	// AutoReRoute requests a new route as soon as the vehicle is off route;
	// otherwise the request waits for the next fix.
	AutoReRoute bool
	// WrongWayAngle is the difference in degrees between course and route
	// heading beyond which the vehicle is going the wrong way; 0 disables
	// the check.
	WrongWayAngle float64
	// ArrivalDistance is the remaining distance under which, with no turns
	// left, the destination counts as reached.
	ArrivalDistance float64
	// TurnAlertDistance limits StateTurn to turns at most this far ahead;
	// 0 reports any turn ahead.
	TurnAlertDistance float64
	// ReRouteTimeout bounds a single route calculation; 0 means no limit.
	ReRouteTimeout time.Duration
	// Projection converts fix positions to the map coordinates routes are
	// expressed in.
	Projection orb.Projection
}

func DefaultConfig() Config {
	return Config{
		MinimumFixDistance: 5,
		DistanceTolerance:  20,
		TimeTolerance:      30 * time.Second,
		AutoReRoute:        true,
		WrongWayAngle:      135,
		ArrivalDistance:    1000,
		ReRouteTimeout:     30 * time.Second,
		Projection:         project.WGS84.ToMercator,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"minimum fix distance", c.MinimumFixDistance},
		{"distance tolerance", c.DistanceTolerance},
		{"time tolerance", c.TimeTolerance.Seconds()},
		{"wrong way angle", c.WrongWayAngle},
		{"arrival distance", c.ArrivalDistance},
		{"turn alert distance", c.TurnAlertDistance},
		{"re-route timeout", c.ReRouteTimeout.Seconds()},
	}
	for _, ch := range checks {
		if ch.v < 0 || math.IsNaN(ch.v) || math.IsInf(ch.v, 0) {
			return fmt.Errorf("%s %v: %w", ch.name, ch.v, route.ErrInvalidArgument)
		}
	}
	if c.WrongWayAngle > 180 {
		return fmt.Errorf("wrong way angle %v exceeds 180: %w", c.WrongWayAngle, route.ErrInvalidArgument)
	}
	return nil
}
