// pkg/core/aircraft.go
package core

import "github.com/go-gl/mathgl/mgl64"

// AircraftState is the per-tick view of one aircraft.
// Positions are local NED metres (z down, more negative z is higher).
// Attitude is in radians, body rates in rad/s.
type AircraftState struct {
	ID    string
	IsUAV bool

	X, Y, Z float64

	Roll  float64
	Pitch float64
	Yaw   float64

	P float64 // roll rate
	Q float64 // pitch rate
	R float64 // yaw rate

	TAS    float64 // true airspeed, m/s
	VNorth float64
	VEast  float64
	VDown  float64

	Loadout       map[WeaponType]int
	MidLockList   []string // hostile ids locked for mid-range launch
	ShortLockList []string // hostile ids locked for short-range launch
}

// Position returns the aircraft position as a vector.
func (a AircraftState) Position() mgl64.Vec3 {
	return mgl64.Vec3{a.X, a.Y, a.Z}
}

// Remaining returns how many weapons of the given type are left.
func (a AircraftState) Remaining(w WeaponType) int {
	if a.Loadout == nil {
		return 0
	}
	return a.Loadout[w]
}

// ThreatContact is a radar-warning contact, typically an inbound missile.
// AlarmIDs lists the own aircraft the contact is alarming.
type ThreatContact struct {
	ID       string
	X, Y, Z  float64
	AlarmIDs []string
}

// Position returns the contact position as a vector.
func (c ThreatContact) Position() mgl64.Vec3 {
	return mgl64.Vec3{c.X, c.Y, c.Z}
}

// Alarms reports whether the contact is alarming the given aircraft.
func (c ThreatContact) Alarms(aircraftID string) bool {
	for _, id := range c.AlarmIDs {
		if id == aircraftID {
			return true
		}
	}
	return false
}

// EarlyWarningContact is a hostile reported by airborne early warning.
type EarlyWarningContact struct {
	ID      string
	X, Y, Z float64
}

// Position returns the contact position as a vector.
func (c EarlyWarningContact) Position() mgl64.Vec3 {
	return mgl64.Vec3{c.X, c.Y, c.Z}
}

// Observation is everything the agent sees in one tick.
type Observation struct {
	SimTime      float64 // seconds
	Own          map[string]AircraftState
	Hostile      map[string]AircraftState
	Threats      []ThreatContact
	EarlyWarning []EarlyWarningContact
}
