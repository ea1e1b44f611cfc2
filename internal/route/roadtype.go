package route

// RoadType is the bit-field describing the road a segment belongs to:
// major type, toll/roundabout/one-way flags, bridge and tunnel level,
// and access restrictions.
type RoadType uint32

const (
	TunnelFlag         RoadType = 1
	TollFlag           RoadType = 2
	RoundaboutFlag     RoadType = 4
	RestrictionFlag    RoadType = 8
	OneWayForwardFlag  RoadType = 16
	OneWayBackwardFlag RoadType = 32
	RampFlag           RoadType = 64
	LowerGradeFlag     RoadType = 128
	BridgeFlag         RoadType = 0x10000

	RoutingMask   RoadType = 0x3E
	MajorTypeMask RoadType = 0xF00
	LevelMask     RoadType = 0xF000
	levelShift             = 12
	AccessMask    RoadType = 0xFFFE0000
)

// Major road types (values of the MajorTypeMask field).
const (
	UnknownMajorRoad           RoadType = 0
	PrimaryLimitedAccessRoad   RoadType = 0x100
	PrimaryUnlimitedAccessRoad RoadType = 0x200
	SecondaryRoad              RoadType = 0x300
	MinorRoad                  RoadType = 0x400
	BywayRoad                  RoadType = 0x500
	AccessRampRoad             RoadType = 0x600
	ServiceRoad                RoadType = 0x700
	VehicularFerryRoad         RoadType = 0x800
	PassengerFerryRoad         RoadType = 0x900
	PathRoad                   RoadType = 0xA00
	StairwayRoad               RoadType = 0xB00
	CyclePathRoad              RoadType = 0xC00
	FootpathRoad               RoadType = 0xD00
)

// Access restriction bits: a set bit means no access for that class of user.
const (
	BicycleAccess       RoadType = 0x20000
	MotorCycleAccess    RoadType = 0x40000
	MotorCarAccess      RoadType = 0x80000
	HighOccupancyAccess RoadType = 0x100000
	GoodsAccess         RoadType = 0x200000
	HeavyGoodsAccess    RoadType = 0x400000
	BusAccess           RoadType = 0x800000
	TaxiAccess          RoadType = 0x1000000
	TouristBusAccess    RoadType = 0x2000000
	AgriculturalAccess  RoadType = 0x4000000
	ForestryAccess      RoadType = 0x8000000
	EmergencyAccess     RoadType = 0x10000000
	HazardousAccess     RoadType = 0x20000000
	WheelChairAccess    RoadType = 0x40000000
	DisabledAccess      RoadType = 0x80000000

	MotorVehicleAccessMask = AccessMask &^ (BicycleAccess | WheelChairAccess)
)

func (t RoadType) Major() RoadType  { return t & MajorTypeMask }
func (t RoadType) Toll() bool       { return t&TollFlag != 0 }
func (t RoadType) Roundabout() bool { return t&RoundaboutFlag != 0 }
func (t RoadType) Bridge() bool     { return t&BridgeFlag != 0 }
func (t RoadType) Tunnel() bool     { return t&TunnelFlag != 0 }
func (t RoadType) Access() RoadType { return t & AccessMask }

// OneWay reports whether traffic is restricted to one direction.
func (t RoadType) OneWay() bool {
	return t&(OneWayForwardFlag|OneWayBackwardFlag) != 0
}

// Level returns the signed road level: positive values are above ground
// (bridges, flyovers), negative values below it.
func (t RoadType) Level() int {
	l := int((t & LevelMask) >> levelShift)
	if l >= 8 {
		l -= 16
	}
	return l
}
