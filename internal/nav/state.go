package nav

import "fmt"

// State is the navigation state reported after each fix.
type State int

const (
	// StateNone: not navigating, or no action needed.
	StateNone State = iota
	// StateTurn: a turn lies ahead.
	StateTurn
	// StateTurnRound: travelling the wrong way along the route.
	StateTurnRound
	// StateNewRoute: a new route has just been calculated.
	StateNewRoute
	// StateArrival: close to the destination with no more turns.
	StateArrival
	// StateOffRoute: off the route for longer than the time tolerance.
	StateOffRoute
	// StateReRouteNeeded: a new route will be calculated on the next fix.
	StateReRouteNeeded
)

var stateNames = [...]string{"none", "turn", "turn_round", "new_route", "arrival", "off_route", "re_route_needed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown navigation state %q", b)
}
