package kinematics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/pkg/core"
)

// Missile flies pure pursuit: every step it heads straight at the
// target's current position.
type Missile struct {
	ID       string
	Shooter  string
	Target   string
	Weapon   core.WeaponType
	Pos      mgl64.Vec3
	Vel      mgl64.Vec3
	Speed    float64
	Age      float64
	Lifetime float64
}

// Step moves the missile toward target for dt seconds and reports whether
// it passed within hitRadius of it during the step.
func (m *Missile) Step(target mgl64.Vec3, hitRadius, dt float64) bool {
	m.Age += dt
	to := target.Sub(m.Pos)
	dist := to.Len()
	travel := m.Speed * dt
	if dist <= travel || dist <= hitRadius {
		m.Pos = target
		return true
	}
	m.Vel = to.Mul(m.Speed / dist)
	m.Pos = m.Pos.Add(m.Vel.Mul(dt))
	return target.Sub(m.Pos).Len() <= hitRadius
}

// Expired reports whether the missile has run out of motor.
func (m *Missile) Expired() bool {
	return m.Lifetime > 0 && m.Age >= m.Lifetime
}

// Contact is the radar-warning view of the missile.
func (m *Missile) Contact() core.ThreatContact {
	return core.ThreatContact{
		ID:       m.ID,
		X:        m.Pos.X(),
		Y:        m.Pos.Y(),
		Z:        m.Pos.Z(),
		AlarmIDs: []string{m.Target},
	}
}
