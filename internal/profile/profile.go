// Package profile holds the per-road-class cost tables a router uses to
// compute routes. Navigation does not interpret them beyond validation; it
// passes them to the router when a route has to be recomputed.
package profile

import (
	"fmt"
	"math"
	"strings"
)

// RoadClass indexes the speed, bonus and override tables.
type RoadClass int

const (
	Motorway RoadClass = iota
	MotorwayLink
	Trunk
	TrunkLink
	Primary
	PrimaryLink
	Secondary
	SecondaryLink
	Tertiary
	Unclassified
	Residential
	Track
	ServiceRoad
	PedestrianRoad
	VehicularFerry
	PassengerFerry
	LivingStreet
	Cycleway
	Path
	Footway
	Bridleway
	Steps
	UnknownRoadType
	UnpavedRoad
	OtherRoadType0
	OtherRoadType1
	OtherRoadType2
	OtherRoadType3
	OtherRoadType4
	OtherRoadType5
	OtherRoadType6
	OtherRoadType7

	RoadClassCount = 32
)

var roadClassNames = [RoadClassCount]string{
	"motorway", "motorway_link", "trunk", "trunk_link", "primary", "primary_link", "secondary", "secondary_link",
	"tertiary", "unclassified", "residential", "track", "service_road", "pedestrian_road", "vehicular_ferry", "passenger_ferry",
	"living_street", "cycleway", "path", "footway", "bridleway", "steps", "unknown_road_type", "unpaved_road",
	"other_road_type_0", "other_road_type_1", "other_road_type_2", "other_road_type_3",
	"other_road_type_4", "other_road_type_5", "other_road_type_6", "other_road_type_7",
}

func (c RoadClass) String() string {
	if c < 0 || c >= RoadClassCount {
		return fmt.Sprintf("road_class_%d", int(c))
	}
	return roadClassNames[c]
}

// ParseRoadClass returns the class with the given name.
func ParseRoadClass(name string) (RoadClass, error) {
	for i, n := range roadClassNames {
		if n == name {
			return RoadClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown road class %q", name)
}

// Vehicle type and arc restriction flags. A restriction on a road blocks
// every vehicle type that has the same flag set.
const (
	WrongWay   uint32 = 0x00100000 // cannot travel the wrong way along one-way roads
	Bicycle    uint32 = 0x00200000
	MotorCycle uint32 = 0x00400000
	Car        uint32 = 0x00800000
	HOV        uint32 = 0x01000000
	LightGoods uint32 = 0x02000000
	HeavyGoods uint32 = 0x04000000
	Bus        uint32 = 0x08000000
	Taxi       uint32 = 0x10000000
	TouristBus uint32 = 0x20000000
	Emergency  uint32 = 0x40000000
	Hazardous  uint32 = 0x80000000

	AllMotorVehicles uint32 = 0xFFC00000
	AllVehicles      uint32 = 0xFFE00000
)

// Gradient table indexes: four uphill then four downhill bands.
const (
	GradientUp0 = iota
	GradientUp1
	GradientUp2
	GradientUp3
	GradientDown0
	GradientDown1
	GradientDown2
	GradientDown3

	GradientCount = 8
)

// Type selects a predefined profile.
type Type int

const (
	CarProfile Type = iota
	WalkingProfile
	BicycleProfile
	HikingProfile
)

var typeNames = [...]string{"car", "walking", "bicycle", "hiking"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// Profile is a routing cost model. Speeds and bonuses are in km/h; a road
// class is not used if its speed plus bonus is zero or less. Times are in
// seconds.
type Profile struct {
	Name        string `json:"name,omitempty"`
	VehicleType uint32 `json:"vehicle_type"`

	Speed [RoadClassCount]float64 `json:"speed"`
	Bonus [RoadClassCount]float64 `json:"bonus"`
	// RestrictionOverride[c] lists vehicle flags whose restrictions are
	// ignored on roads of class c, e.g. HeavyGoods on Track.
	RestrictionOverride [RoadClassCount]uint32 `json:"restriction_override"`

	TurnTime             int `json:"turn_time"`
	UTurnTime            int `json:"u_turn_time"`
	CrossTrafficTurnTime int `json:"cross_traffic_turn_time"`
	TrafficLightTime     int `json:"traffic_light_time"`

	// Shortest ignores speeds: the shortest route, not the fastest.
	Shortest bool `json:"shortest"`
	// TollPenalty is in [0,1]: 0 is no penalty, 1 avoids toll roads.
	TollPenalty float64 `json:"toll_penalty"`

	GradientSpeed [GradientCount]float64 `json:"gradient_speed"`
	GradientBonus [GradientCount]float64 `json:"gradient_bonus"`
	// GradientFlags has bit (1 << class) set for classes gradients apply to.
	GradientFlags uint32 `json:"gradient_flags"`
}

// New returns the predefined profile of type t.
func New(t Type) *Profile {
	p := &Profile{
		Name:                 t.String(),
		TurnTime:             4,
		UTurnTime:            300,
		CrossTrafficTurnTime: 10,
		TrafficLightTime:     30,
	}
	switch t {
	case WalkingProfile, HikingProfile:
		for c := range p.Speed {
			p.Speed[c] = 4.5
		}
		p.Speed[Motorway], p.Speed[MotorwayLink] = 0, 0
		p.Speed[VehicularFerry], p.Speed[PassengerFerry] = 0, 0
		p.TurnTime, p.UTurnTime, p.CrossTrafficTurnTime, p.TrafficLightTime = 0, 0, 0, 0
		for _, c := range []RoadClass{Trunk, TrunkLink, Primary, PrimaryLink} {
			p.Bonus[c] = -1
		}
		if t == HikingProfile {
			for _, c := range []RoadClass{Track, Path, Footway, Bridleway, UnpavedRoad} {
				p.Bonus[c] = 1
			}
			for _, c := range []RoadClass{Secondary, SecondaryLink, Tertiary} {
				p.Bonus[c] = -1
			}
		}
		p.GradientSpeed = [GradientCount]float64{0, -0.5, -1, -1.5, 0, 0, -0.5, -1}
		p.GradientFlags = ^uint32(1 << Steps)
	case BicycleProfile:
		p.VehicleType = Bicycle | WrongWay
		for c := range p.Speed {
			p.Speed[c] = 14
		}
		p.Speed[Motorway], p.Speed[MotorwayLink] = 0, 0
		p.Speed[Trunk], p.Speed[TrunkLink] = 0, 0
		p.Speed[Steps] = 0
		p.Speed[Footway], p.Speed[PedestrianRoad] = 0, 0
		p.Bonus[Cycleway] = 3
		p.Bonus[Primary], p.Bonus[PrimaryLink] = -4, -4
		p.TurnTime, p.UTurnTime, p.CrossTrafficTurnTime, p.TrafficLightTime = 2, 10, 5, 20
		p.GradientSpeed = [GradientCount]float64{0, -2, -4, -6, 2, 4, 2, 0}
		p.GradientFlags = ^uint32(1 << Steps)
	default:
		p.VehicleType = Car | WrongWay
		p.Speed = [RoadClassCount]float64{
			110, 40, 96, 40, 88, 30, 80, 30,
			72, 56, 40, 24, 24, 0, 10, 0,
			15, 0, 0, 0, 0, 0, 8, 24,
		}
		p.Bonus[Track] = -24
	}
	return p
}

// ByName returns the predefined profile with the given name.
func ByName(name string) (*Profile, error) {
	for i, n := range typeNames {
		if strings.EqualFold(n, name) {
			return New(Type(i)), nil
		}
	}
	return nil, fmt.Errorf("unknown profile %q", name)
}

// Normalize clamps the fields of p to their valid ranges: TollPenalty to
// [0,1], non-finite speeds and bonuses to 0, and times to >= 0.
func (p *Profile) Normalize() {
	p.TollPenalty = clamp01(p.TollPenalty)
	for i := range p.Speed {
		p.Speed[i] = finite(p.Speed[i])
		p.Bonus[i] = finite(p.Bonus[i])
	}
	for i := range p.GradientSpeed {
		p.GradientSpeed[i] = finite(p.GradientSpeed[i])
		p.GradientBonus[i] = finite(p.GradientBonus[i])
	}
	p.TurnTime = max(p.TurnTime, 0)
	p.UTurnTime = max(p.UTurnTime, 0)
	p.CrossTrafficTurnTime = max(p.CrossTrafficTurnTime, 0)
	p.TrafficLightTime = max(p.TrafficLightTime, 0)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Clone returns a copy of p that can be modified independently.
func (p *Profile) Clone() *Profile {
	c := *p
	return &c
}

// EffectiveSpeed returns speed plus bonus for class c.
func (p *Profile) EffectiveSpeed(c RoadClass) float64 {
	if c < 0 || c >= RoadClassCount {
		return 0
	}
	return p.Speed[c] + p.Bonus[c]
}

// Allows reports whether a road of class c carrying the given restriction
// flags may be used by this profile's vehicle.
func (p *Profile) Allows(c RoadClass, restrictions uint32) bool {
	if p.EffectiveSpeed(c) <= 0 {
		return false
	}
	return restrictions&^p.RestrictionOverride[c]&p.VehicleType == 0
}
