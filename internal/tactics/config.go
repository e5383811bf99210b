package tactics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/attitude"
	"github.com/hddf2/pilot/internal/maneuver"
	"github.com/hddf2/pilot/internal/threat"
)

// Class separates manned aircraft from UAVs for objective assignment.
type Class string

const (
	Manned Class = "manned"
	UAV    Class = "uav"
)

// Objective is a designated point an aircraft approaches and patrols.
type Objective struct {
	Name  string
	Class Class
	Pos   mgl64.Vec3
}

// ExpiryConfig sets when a threat is considered no longer closing.
type ExpiryConfig struct {
	Window    int
	Margin    float64
	CacheSize int
}

// PatrolConfig shapes the waypoint circle flown around an objective.
type PatrolConfig struct {
	Radius        float64
	Waypoints     int
	CaptureRadius float64
}

// BoundaryConfig is the allowed area, centred on the origin. Zero
// half-widths disable the check on that axis.
type BoundaryConfig struct {
	HalfX float64
	HalfY float64
}

// AltitudeConfig is the safe altitude envelope, in metres above the
// origin (altitude = -z). Zero disables a limit.
type AltitudeConfig struct {
	// Floor and Ceiling bound normal flight. Outside them the aircraft
	// steers back to Margin inside the limit.
	Floor   float64
	Ceiling float64
	Margin  float64
	// Below Emergency, or below Floor with the nose lower than -DivePitch
	// radians, the aircraft pulls up instead of flying its target.
	Emergency float64
	DivePitch float64
}

// WeaponConfig holds launch cooldowns and target filters.
type WeaponConfig struct {
	MidCooldown       float64
	ShortCooldown     float64
	MidMaxRange       float64
	ShortMaxRange     float64
	MidMinAlignment   float64
	ShortMinAlignment float64
	// AimDuration is how long, in sim seconds, the nose is kept on the
	// target of a mid-range launch.
	AimDuration float64
}

// Config is the full agent configuration.
type Config struct {
	Side         string
	InitialPhase string

	ApproachRadius    float64
	AlarmRange        float64
	BreakTurnRange    float64
	EvadeMaxAlignment float64
	TrackCapacity     int

	Objectives       []Objective
	DefaultObjective mgl64.Vec3

	Expiry   ExpiryConfig
	Patrol   PatrolConfig
	Boundary BoundaryConfig
	Altitude AltitudeConfig
	Weapons  WeaponConfig

	Mapper         maneuver.MapperConfig
	Attitude       attitude.Config
	CruiseThrottle float64
	Threat         threat.Config
}

// DefaultConfig returns the reference settings with no objectives.
func DefaultConfig() Config {
	return Config{
		Side:              "red",
		InitialPhase:      Approach.String(),
		ApproachRadius:    15000,
		AlarmRange:        30000,
		BreakTurnRange:    5000,
		EvadeMaxAlignment: 0.7,
		TrackCapacity:     200,
		DefaultObjective:  mgl64.Vec3{0, 0, -3000},
		Expiry:            ExpiryConfig{Window: 40, Margin: 1000, CacheSize: 256},
		Patrol:            PatrolConfig{Radius: 8000, Waypoints: 6, CaptureRadius: 2000},
		Altitude: AltitudeConfig{
			Floor:     1000,
			Ceiling:   12000,
			Margin:    1000,
			Emergency: 300,
			DivePitch: 0.7,
		},
		Weapons: WeaponConfig{
			MidCooldown:       10,
			ShortCooldown:     5,
			MidMaxRange:       30000,
			MidMinAlignment:   0.3,
			ShortMinAlignment: -0.3,
			AimDuration:       30,
		},
		Mapper:         maneuver.DefaultMapperConfig(),
		Attitude:       attitude.DefaultConfig(),
		CruiseThrottle: maneuver.DefaultCruiseThrottle,
		Threat:         threat.DefaultConfig(),
	}
}

// validate rejects settings the agent cannot run with.
func (c Config) validate() (Phase, error) {
	initial, err := ParsePhase(c.InitialPhase)
	if err != nil {
		return 0, err
	}
	if initial == Evade {
		return 0, fmt.Errorf("%w: evade cannot be the initial phase", ErrInvalidConfig)
	}
	if c.ApproachRadius <= 0 || c.AlarmRange <= 0 {
		return 0, fmt.Errorf("%w: approach radius and alarm range must be positive", ErrInvalidConfig)
	}
	if c.Expiry.Window < 2 {
		return 0, fmt.Errorf("%w: expiry window must hold at least two samples", ErrInvalidConfig)
	}
	if alt := c.Altitude; alt.Floor > 0 && alt.Ceiling > 0 && alt.Floor+alt.Margin >= alt.Ceiling-alt.Margin {
		return 0, fmt.Errorf("%w: altitude floor %.0f and ceiling %.0f leave no room", ErrInvalidConfig, alt.Floor, alt.Ceiling)
	}
	if c.Patrol.Waypoints < 1 || c.Patrol.Radius <= 0 {
		return 0, fmt.Errorf("%w: patrol needs at least one waypoint and a positive radius", ErrInvalidConfig)
	}
	for _, o := range c.Objectives {
		if o.Class != Manned && o.Class != UAV {
			return 0, fmt.Errorf("%w: objective %q has class %q", ErrInvalidConfig, o.Name, o.Class)
		}
	}
	return initial, nil
}
