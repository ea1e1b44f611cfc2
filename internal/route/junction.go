package route

// TurnType is the classification of the turn at a junction.
type TurnType int

const (
	TurnNone TurnType = iota
	TurnAhead
	TurnBearRight
	TurnRight
	TurnSharpRight
	TurnAround
	TurnSharpLeft
	TurnLeft
	TurnBearLeft
)

var turnTypeNames = [...]string{"none", "ahead", "bear_right", "right", "sharp_right", "around", "sharp_left", "left", "bear_left"}

func (t TurnType) String() string {
	if t < 0 || int(t) >= len(turnTypeNames) {
		return "unknown"
	}
	return turnTypeNames[t]
}

// RoundaboutState marks junctions that enter, continue around or leave a
// roundabout so exits can be counted.
type RoundaboutState int

const (
	RoundaboutNone RoundaboutState = iota
	RoundaboutEnter
	RoundaboutContinue
	RoundaboutExit
)

var roundaboutNames = [...]string{"none", "enter", "continue", "exit"}

func (s RoundaboutState) String() string {
	if s < 0 || int(s) >= len(roundaboutNames) {
		return "unknown"
	}
	return roundaboutNames[s]
}

// Junction is the turn metadata stored for the junction at the start of a
// segment.
type Junction struct {
	// Type is the turn type as computed by the router. Only TurnAround is
	// significant to navigation: it marks a U-turn regardless of angle.
	Type TurnType `json:"type,omitempty"`
	// Angle in degrees: 0 is straight ahead, negative is left, positive right.
	Angle      float64         `json:"angle"`
	Roundabout RoundaboutState `json:"roundabout,omitempty"`
	ExitNumber int             `json:"exit_number,omitempty"`
	// Continue is true when no instruction is needed at this junction.
	Continue bool `json:"continue,omitempty"`
	// Choices is the number of ways out of the junction; 0 if unknown.
	Choices           int `json:"choices,omitempty"`
	LeftAlternatives  int `json:"left_alternatives,omitempty"`
	RightAlternatives int `json:"right_alternatives,omitempty"`
	// Fork is set where the road splits into two of similar status.
	Fork bool `json:"fork,omitempty"`
	// TurnOff is set for a turn on to a lower-status road.
	TurnOff bool   `json:"turn_off,omitempty"`
	Name    string `json:"name,omitempty"`
	Ref     string `json:"ref,omitempty"`
}
