package nav

import (
	"time"

	"github.com/paulmach/orb"
)

// Validity flags say which fields of a Fix hold data.
type Validity uint32

const (
	ValidTime Validity = 1 << iota
	ValidPosition
	ValidSpeed
	ValidCourse
	ValidHeight
)

// Fix is a position report from a location source.
type Fix struct {
	Validity Validity  `json:"validity"`
	Time     time.Time `json:"time"`
	// Position is longitude, latitude in degrees.
	Position orb.Point `json:"position"`
	// Speed in km/h.
	Speed float64 `json:"speed"`
	// Course in degrees clockwise from north.
	Course float64 `json:"course"`
	// Height in meters above sea level.
	Height float64 `json:"height"`
}

func (f Fix) Has(v Validity) bool { return f.Validity&v == v }
