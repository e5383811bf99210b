package maneuver

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind enumerates the target variants.
type Kind int

const (
	KindPoint Kind = iota
	KindAircraft
	KindEvade
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindAircraft:
		return "aircraft"
	case KindEvade:
		return "evade"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Target is what the mapper steers toward. The set of implementations is
// closed: PointTarget, AircraftTarget and EvadeTarget.
type Target interface {
	Position() mgl64.Vec3
	Kind() Kind
	target()
}

// PointTarget is a fixed objective or patrol waypoint.
type PointTarget struct {
	Pos mgl64.Vec3
}

func (t PointTarget) Position() mgl64.Vec3 { return t.Pos }
func (PointTarget) Kind() Kind             { return KindPoint }
func (PointTarget) target()                {}

// AircraftTarget tracks a hostile aircraft. TAS is zero when the hostile
// is only known from early warning and its speed is unknown.
type AircraftTarget struct {
	ID  string
	Pos mgl64.Vec3
	TAS float64
}

func (t AircraftTarget) Position() mgl64.Vec3 { return t.Pos }
func (AircraftTarget) Kind() Kind             { return KindAircraft }
func (AircraftTarget) target()                {}

// EvadeTarget is the aim point derived from a threat assessment. The
// altitude is held while evading.
type EvadeTarget struct {
	ThreatID string
	Pos      mgl64.Vec3
}

func (t EvadeTarget) Position() mgl64.Vec3 { return t.Pos }
func (EvadeTarget) Kind() Kind             { return KindEvade }
func (EvadeTarget) target()                {}
