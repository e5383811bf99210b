// Package pid implements the discrete feedback loop used for each control
// surface channel.
package pid

import (
	"math"

	"github.com/hddf2/pilot/internal/geometry"
)

// Gains configures one loop. Zero-valued limits are treated as unbounded
// only when the matching Has flag is false.
type Gains struct {
	Kp float64 `json:"kp" mapstructure:"kp"`
	Ki float64 `json:"ki" mapstructure:"ki"`
	Kd float64 `json:"kd" mapstructure:"kd"`

	OutputMin float64 `json:"min" mapstructure:"min"`
	OutputMax float64 `json:"max" mapstructure:"max"`
	// WindupGuard bounds the integral to [-WindupGuard, WindupGuard].
	// Zero disables the guard.
	WindupGuard float64 `json:"windup" mapstructure:"windup"`
}

// Loop is a PID controller with integral clamping and output limits.
// It is not safe for concurrent use.
type Loop struct {
	gains    Gains
	limited  bool
	setpoint float64

	integral  float64
	prevError float64
}

// New returns a loop configured with g. Output limits are applied when
// OutputMin < OutputMax.
func New(g Gains) *Loop {
	l := &Loop{}
	l.Configure(g)
	return l
}

// Configure replaces the gains and limits. Accumulated state is kept.
func (l *Loop) Configure(g Gains) {
	l.gains = g
	l.limited = g.OutputMin < g.OutputMax
}

// SetSetpoint sets the value the loop drives toward.
func (l *Loop) SetSetpoint(v float64) {
	l.setpoint = v
}

// Setpoint returns the current setpoint.
func (l *Loop) Setpoint() float64 {
	return l.setpoint
}

// Integral returns the accumulated (clamped) integral term.
func (l *Loop) Integral() float64 {
	return l.integral
}

// Compute advances the loop by one step. The error is divided by divisor
// so that a measurement taken on a different scale than the setpoint can
// be compared; a divisor of 0 is treated as 1. NaN inputs propagate.
func (l *Loop) Compute(measured, divisor float64) float64 {
	if divisor == 0 {
		divisor = 1
	}

	e := (l.setpoint - measured) / divisor

	l.integral += e
	if g := math.Abs(l.gains.WindupGuard); g > 0 {
		l.integral = geometry.Clamp(l.integral, -g, g)
	}

	derivative := e - l.prevError
	l.prevError = e

	out := l.gains.Kp*e + l.gains.Ki*l.integral + l.gains.Kd*derivative
	if l.limited {
		out = geometry.Clamp(out, l.gains.OutputMin, l.gains.OutputMax)
	}
	return out
}

// Reset clears the integral and derivative memory.
func (l *Loop) Reset() {
	l.integral = 0
	l.prevError = 0
}
