package maneuver

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/pkg/core"
)

// ErrUnknownTarget is returned for a nil or foreign Target.
var ErrUnknownTarget = errors.New("unknown target kind")

// MapperConfig holds the thresholds of the intent mapper.
type MapperConfig struct {
	AltitudeThreshold float64 `json:"altitudeThreshold" mapstructure:"altitudeThreshold"`
	ReferenceDistance float64 `json:"referenceDistance" mapstructure:"referenceDistance"`
	SpeedTolerance    float64 `json:"speedTolerance" mapstructure:"speedTolerance"`
	// StraightBand is the turn, in degrees, under which wings stay level.
	StraightBand float64 `json:"straightBand" mapstructure:"straightBand"`
	// FullBankTurn is the turn, in degrees, that asks for full bank.
	FullBankTurn float64 `json:"fullBankTurn" mapstructure:"fullBankTurn"`
	MaxBank      float64 `json:"maxBank" mapstructure:"maxBank"`
}

// DefaultMapperConfig returns the reference thresholds.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		AltitudeThreshold: 300,
		ReferenceDistance: 500,
		SpeedTolerance:    10,
		StraightBand:      4,
		FullBankTurn:      35,
		MaxBank:           90,
	}
}

// Setpoints is the attitude demand derived from an Action. Angles are in
// radians.
type Setpoints struct {
	TargetPitch float64
	TargetRoll  float64
	HeadingRate float64

	// deltas against the current attitude, fed to the controller
	PitchDelta float64
	RollDelta  float64
}

// Mapper converts targets to actions and actions to setpoints. It holds
// no per-tick state.
type Mapper struct {
	cfg MapperConfig
}

// NewMapper returns a mapper, filling unset thresholds from the defaults.
func NewMapper(cfg MapperConfig) Mapper {
	def := DefaultMapperConfig()
	if cfg.AltitudeThreshold <= 0 {
		cfg.AltitudeThreshold = def.AltitudeThreshold
	}
	if cfg.ReferenceDistance <= 0 {
		cfg.ReferenceDistance = def.ReferenceDistance
	}
	if cfg.SpeedTolerance <= 0 {
		cfg.SpeedTolerance = def.SpeedTolerance
	}
	if cfg.StraightBand <= 0 {
		cfg.StraightBand = def.StraightBand
	}
	if cfg.FullBankTurn <= 0 {
		cfg.FullBankTurn = def.FullBankTurn
	}
	if cfg.MaxBank <= 0 {
		cfg.MaxBank = def.MaxBank
	}
	return Mapper{cfg: cfg}
}

// MapToAction picks the altitude, heading and speed bins that steer own
// toward t.
func (m Mapper) MapToAction(own core.AircraftState, t Target) (Action, error) {
	if t == nil {
		return Action{}, ErrUnknownTarget
	}

	pos := t.Position()
	a := Action{
		Altitude: m.altitudeBin(own.Z, pos.Z()),
		Heading:  m.headingBin(own, pos),
	}

	switch tt := t.(type) {
	case PointTarget:
		a.Speed = Accelerate
	case EvadeTarget:
		a.Altitude = HoldAltitude
		a.Speed = Accelerate
	case AircraftTarget:
		a.Speed = m.speedBin(own.TAS, tt.TAS)
	default:
		return Action{}, fmt.Errorf("%w: %T", ErrUnknownTarget, t)
	}

	return a, nil
}

// altitudeBin compares heights with z down: a more negative target z is
// higher and asks for a climb.
func (m Mapper) altitudeBin(ownZ, targetZ float64) AltitudeBin {
	dz := targetZ - ownZ
	switch {
	case dz < -m.cfg.AltitudeThreshold:
		return Climb
	case dz > m.cfg.AltitudeThreshold:
		return Descend
	default:
		return HoldAltitude
	}
}

func (m Mapper) headingBin(own core.AircraftState, pos mgl64.Vec3) HeadingBin {
	bearing := geometry.Bearing(own.Position(), pos)
	delta := geometry.ShortestAngularDifference(own.Yaw, bearing)
	return HeadingBinFor(mgl64.RadToDeg(delta))
}

func (m Mapper) speedBin(ownTAS, targetTAS float64) SpeedBin {
	if targetTAS <= 0 {
		return Accelerate
	}
	switch d := targetTAS - ownTAS; {
	case d > m.cfg.SpeedTolerance:
		return Accelerate
	case d < -m.cfg.SpeedTolerance:
		return Decelerate
	default:
		return HoldSpeed
	}
}

// ActionToSetpoints turns an action into pitch and roll demands. Target
// pitch uses a fixed reference distance so the demand stays bounded.
func (m Mapper) ActionToSetpoints(a Action, own core.AircraftState) (Setpoints, error) {
	if err := a.Validate(); err != nil {
		return Setpoints{}, err
	}

	turn := a.Heading.Degrees()
	sp := Setpoints{
		TargetPitch: math.Atan2(a.Altitude.AltitudeDelta(), m.cfg.ReferenceDistance),
		TargetRoll:  mgl64.DegToRad(m.bankFor(turn)),
		HeadingRate: mgl64.DegToRad(turn),
	}
	sp.PitchDelta = sp.TargetPitch - own.Pitch
	sp.RollDelta = sp.TargetRoll - own.Roll
	return sp, nil
}

// bankFor returns the bank angle in degrees for a heading turn in degrees.
func (m Mapper) bankFor(turnDeg float64) float64 {
	mag := math.Abs(turnDeg)
	if mag < m.cfg.StraightBand {
		return 0
	}
	rate := math.Min(mag/m.cfg.FullBankTurn, 1)
	return math.Copysign(m.cfg.MaxBank*rate, turnDeg)
}
