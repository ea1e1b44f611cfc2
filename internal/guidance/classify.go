// Package guidance derives the turn instructions ahead of a position on a
// route.
package guidance

import (
	"math"

	"route-navigator/internal/route"
)

// Classify maps a signed turn angle in degrees (negative left, positive
// right) to a turn type. Bucket edges belong to the sharper bucket, so
// 22.5 is a bear and 180 is a U-turn.
func Classify(angle float64) route.TurnType {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return route.TurnNone
	}
	angle = math.Remainder(angle, 360)
	a := math.Abs(angle)
	right := angle > 0
	switch {
	case a < 22.5:
		return route.TurnAhead
	case a < 67.5:
		return pick(right, route.TurnBearRight, route.TurnBearLeft)
	case a < 112.5:
		return pick(right, route.TurnRight, route.TurnLeft)
	case a < 180:
		return pick(right, route.TurnSharpRight, route.TurnSharpLeft)
	default:
		return route.TurnAround
	}
}

func pick(right bool, r, l route.TurnType) route.TurnType {
	if right {
		return r
	}
	return l
}

// ClassifyJunction classifies the turn at j. A plain "ahead" is ambiguous
// at a fork or when turning off on to a lesser road, so those become a bear
// to the side of the angle; a dead straight fork bears away from the
// alternatives on the left.
func ClassifyJunction(j route.Junction) route.TurnType {
	if j.Type == route.TurnAround {
		return route.TurnAround
	}
	t := Classify(j.Angle)
	if t != route.TurnAhead || (j.Choices != 2 && !j.TurnOff) {
		return t
	}
	switch {
	case j.Angle > 0:
		return route.TurnBearRight
	case j.Angle < 0:
		return route.TurnBearLeft
	case j.LeftAlternatives > 0:
		return route.TurnBearRight
	default:
		return route.TurnBearLeft
	}
}
