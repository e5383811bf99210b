// Package kinematics is a small point-mass world used to fly the agent
// without an external simulator: own aircraft respond to control
// commands, hostiles fly pursuit and shoot pure-pursuit missiles.
package kinematics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/pkg/core"
)

const gravity = 9.81

// Airframe holds the performance limits of a point-mass aircraft.
type Airframe struct {
	MaxRollRate  float64 // rad/s at full aileron
	MaxPitchRate float64 // rad/s at full elevator
	MaxBank      float64 // rad, bank used for the turn rate is clamped to this
	MaxPitch     float64 // rad
	MinSpeed     float64 // m/s at idle
	MaxSpeed     float64 // m/s at full throttle
	SpeedTau     float64 // s, first-order speed response
}

// DefaultAirframe is a generic fighter.
func DefaultAirframe() Airframe {
	return Airframe{
		MaxRollRate:  mgl64.DegToRad(60),
		MaxPitchRate: mgl64.DegToRad(15),
		MaxBank:      mgl64.DegToRad(75),
		MaxPitch:     mgl64.DegToRad(60),
		MinSpeed:     150,
		MaxSpeed:     400,
		SpeedTau:     8,
	}
}

// CommandedSpeed is the speed the airframe settles at for a throttle.
func (f Airframe) CommandedSpeed(throttle float64) float64 {
	return f.MinSpeed + geometry.Clamp(throttle, 0, 1)*(f.MaxSpeed-f.MinSpeed)
}

// Step advances s by dt seconds under the control vector ctl. Negative
// elevator pitches the nose up. Heading follows a coordinated turn at the
// current bank, so s.R is the resulting yaw rate.
func (f Airframe) Step(s *core.AircraftState, ctl [4]float64, dt float64) {
	if dt <= 0 {
		return
	}

	p := geometry.Clamp(ctl[core.Aileron], -1, 1) * f.MaxRollRate
	q := -geometry.Clamp(ctl[core.Elevator], -1, 1) * f.MaxPitchRate

	s.Roll = geometry.NormalizeAngle(s.Roll + p*dt)
	s.Pitch = geometry.Clamp(s.Pitch+q*math.Cos(s.Roll)*dt, -f.MaxPitch, f.MaxPitch)

	speed := s.TAS
	if speed <= 0 {
		speed = f.MinSpeed
	}
	speed += (f.CommandedSpeed(ctl[core.Throttle]) - speed) * math.Min(dt/f.SpeedTau, 1)

	bank := geometry.Clamp(s.Roll, -f.MaxBank, f.MaxBank)
	r := gravity * math.Tan(bank) / speed
	s.Yaw = geometry.NormalizeAngle(s.Yaw + r*dt)

	s.P, s.Q, s.R = p, q, r
	s.TAS = speed
	setVelocity(s)
	integrate(s, dt)
}

// setVelocity derives the NED velocity from speed, pitch and heading.
func setVelocity(s *core.AircraftState) {
	horiz := s.TAS * math.Cos(s.Pitch)
	s.VNorth = horiz * math.Cos(s.Yaw)
	s.VEast = horiz * math.Sin(s.Yaw)
	s.VDown = -s.TAS * math.Sin(s.Pitch)
}

func integrate(s *core.AircraftState, dt float64) {
	s.X += s.VNorth * dt
	s.Y += s.VEast * dt
	s.Z += s.VDown * dt
}

// steer turns s toward pos at no more than turnRate rad/s and holds level
// flight at constant speed. Hostiles are flown this way.
func steer(s *core.AircraftState, pos mgl64.Vec3, turnRate, dt float64) {
	diff := geometry.ShortestAngularDifference(s.Yaw, geometry.Bearing(s.Position(), pos))
	turn := geometry.Clamp(diff, -turnRate*dt, turnRate*dt)
	s.Yaw = geometry.NormalizeAngle(s.Yaw + turn)
	s.R = turn / dt
	s.Roll = math.Atan(s.R * s.TAS / gravity)
	s.Pitch, s.P, s.Q = 0, 0, 0
	setVelocity(s)
	integrate(s, dt)
}
