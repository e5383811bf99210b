// Package attitude turns attitude-rate demands into control surface
// deflections using one PID loop per axis.
package attitude

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/internal/pid"
	"github.com/hddf2/pilot/pkg/core"
)

// DefaultElevatorCap bounds the elevator magnitude.
const DefaultElevatorCap = 0.7

// Config holds the per-axis gains.
type Config struct {
	Aileron  pid.Gains `json:"aileron" mapstructure:"aileron"`
	Elevator pid.Gains `json:"elevator" mapstructure:"elevator"`
	Rudder   pid.Gains `json:"rudder" mapstructure:"rudder"`

	// RollDivisor scales the roll-rate error; the measured roll rate is
	// compared over a 90 degree window.
	RollDivisor float64 `json:"rollDivisor" mapstructure:"rollDivisor"`
	YawDivisor  float64 `json:"yawDivisor" mapstructure:"yawDivisor"`

	RudderEnabled bool    `json:"rudderEnabled" mapstructure:"rudderEnabled"`
	ElevatorCap   float64 `json:"elevatorCap" mapstructure:"elevatorCap"`
}

// DefaultConfig returns the reference gains.
func DefaultConfig() Config {
	return Config{
		Aileron:     pid.Gains{Kp: 0.8, Ki: 0.01, Kd: 0.1, OutputMin: -1, OutputMax: 1, WindupGuard: 20},
		Elevator:    pid.Gains{Kp: 0.3, Ki: 0.02, Kd: 0.2, OutputMin: -1, OutputMax: 1, WindupGuard: 10},
		Rudder:      pid.Gains{Kp: 0.4, Ki: 0.01, Kd: 0.1, OutputMin: -1, OutputMax: 1, WindupGuard: 1},
		RollDivisor: 90,
		YawDivisor:  30,
		ElevatorCap: DefaultElevatorCap,
	}
}

// Controller owns the aileron, elevator and rudder loops of one aircraft.
type Controller struct {
	cfg      Config
	aileron  *pid.Loop
	elevator *pid.Loop
	rudder   *pid.Loop
}

// New builds a controller. A zero or out of range ElevatorCap falls back
// to DefaultElevatorCap.
func New(cfg Config) *Controller {
	if cfg.ElevatorCap <= 0 || cfg.ElevatorCap > 1 {
		cfg.ElevatorCap = DefaultElevatorCap
	}
	return &Controller{
		cfg:      cfg,
		aileron:  pid.New(cfg.Aileron),
		elevator: pid.New(cfg.Elevator),
		rudder:   pid.New(cfg.Rudder),
	}
}

// SetTargetRates sets the loop setpoints. Values are in degrees, matching
// the scale ComputeControl converts the measured body rates to.
func (c *Controller) SetTargetRates(pitchDelta, yawDelta, rollDelta float64) {
	c.elevator.SetSetpoint(pitchDelta)
	c.rudder.SetSetpoint(yawDelta)
	c.aileron.SetSetpoint(rollDelta)
}

// ComputeControl runs the three loops against the body rates p, q, r
// (rad/s) and returns aileron, elevator, rudder and a zero throttle for
// the caller to fill. roll is the current bank angle in radians and only
// decides whether the elevator sense is reversed.
func (c *Controller) ComputeControl(p, q, r, roll float64) [4]float64 {
	var out [4]float64

	out[core.Aileron] = c.aileron.Compute(mgl64.RadToDeg(p), c.cfg.RollDivisor)

	elevator := -c.elevator.Compute(mgl64.RadToDeg(q), 1)
	elevator = geometry.Clamp(elevator, -c.cfg.ElevatorCap, c.cfg.ElevatorCap)
	if Inverted(roll) {
		elevator = -elevator
	}
	out[core.Elevator] = elevator

	if c.cfg.RudderEnabled {
		out[core.Rudder] = -c.rudder.Compute(mgl64.RadToDeg(r), c.cfg.YawDivisor)
	}

	return out
}

// Reset clears all loop memory.
func (c *Controller) Reset() {
	c.aileron.Reset()
	c.elevator.Reset()
	c.rudder.Reset()
}

// Inverted reports whether the bank angle is past 90 degrees either way.
func Inverted(roll float64) bool {
	return math.Abs(mgl64.RadToDeg(geometry.NormalizeAngle(roll))) > 90
}
