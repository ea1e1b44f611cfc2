package nav

import (
	"time"

	"route-navigator/internal/guidance"
	"route-navigator/internal/route"
)

// Unknown is reported for distances and times that are not yet known.
const Unknown = -1

// Snapshot is a consistent view of the navigation state. Snapshots are
// immutable once published.
type Snapshot struct {
	// Seq increases with every published snapshot.
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`

	State      State `json:"state"`
	Navigating bool  `json:"navigating"`
	Enabled    bool  `json:"enabled"`

	// PositionKnown is set once a fix with a position has been accepted.
	PositionKnown bool `json:"position_known"`
	Fix           Fix  `json:"fix"`

	// OnRoute is the projection of the last fix on to the route.
	OnRoute route.NearestSegmentInfo `json:"on_route"`
	Section int                      `json:"section"`
	Turns   guidance.Turns           `json:"turns"`

	// Meters and seconds; Unknown until the first fix after navigation
	// starts.
	DistanceToDestination float64 `json:"distance_to_destination"`
	TimeToDestination     float64 `json:"time_to_destination"`
	RouteDistance         float64 `json:"route_distance"`
	RouteTime             float64 `json:"route_time"`

	// ReRoutes counts routes replaced since navigation started.
	ReRoutes int `json:"re_routes"`
	// LastError is the most recent routing failure, if any.
	LastError string `json:"last_error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// DestinationKnown reports whether the distance and time to the
// destination are known.
func (s Snapshot) DestinationKnown() bool { return s.DistanceToDestination != Unknown }
