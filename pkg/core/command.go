package core

import "fmt"

// WeaponType identifies a launchable weapon class.
type WeaponType string

const (
	WeaponMidRange   WeaponType = "mid_range"
	WeaponShortRange WeaponType = "short_range"
)

// Control surface slots in Command.Control.
const (
	Aileron = iota
	Elevator
	Rudder
	Throttle
)

// Command is the per-aircraft output of one tick.
// Control holds aileron, elevator and rudder in [-1, 1] and throttle in [0, 1].
type Command struct {
	Control [4]float64
	Weapon  *WeaponLaunch
}

// WeaponLaunch requests a launch of Type at the hostile with id Target.
type WeaponLaunch struct {
	Type   WeaponType
	Target string
}

// CommandMap maps own aircraft ids to their commands.
type CommandMap map[string]Command

// Validate checks every control value against its allowed range.
func (c Command) Validate() error {
	for i := Aileron; i <= Rudder; i++ {
		if c.Control[i] < -1 || c.Control[i] > 1 {
			return fmt.Errorf("control %d out of range: %v", i, c.Control[i])
		}
	}
	if c.Control[Throttle] < 0 || c.Control[Throttle] > 1 {
		return fmt.Errorf("throttle out of range: %v", c.Control[Throttle])
	}
	return nil
}
