// Package maneuver maps a target to a discretized maneuver intent and flies
// that intent through an attitude controller.
package maneuver

import (
	"errors"
	"fmt"
)

// ErrInvalidAction is returned for bin indices outside their tables.
var ErrInvalidAction = errors.New("invalid action")

// AltitudeBin selects a climb, hold or descend demand.
type AltitudeBin int

const (
	Climb AltitudeBin = iota
	HoldAltitude
	Descend
)

// HeadingBin indexes the seven-way heading table, hard left to hard right.
type HeadingBin int

const (
	HardLeft HeadingBin = iota
	Left
	SlightLeft
	Straight
	SlightRight
	Right
	HardRight
)

// SpeedBin selects an accelerate, hold or decelerate demand.
type SpeedBin int

const (
	Accelerate SpeedBin = iota
	HoldSpeed
	Decelerate
)

// altitudeDelta is the height change each altitude bin asks for, in metres.
var altitudeDelta = [...]float64{500, 0, -500}

// headingDegrees is the turn each heading bin asks for.
var headingDegrees = [...]float64{-30, -15, -5, 0, 5, 15, 30}

// Action is the discretized maneuver intent for one tick.
type Action struct {
	Altitude AltitudeBin
	Heading  HeadingBin
	Speed    SpeedBin
}

// Validate checks every bin against its table.
func (a Action) Validate() error {
	if a.Altitude < Climb || a.Altitude > Descend {
		return fmt.Errorf("%w: altitude bin %d", ErrInvalidAction, a.Altitude)
	}
	if a.Heading < HardLeft || a.Heading > HardRight {
		return fmt.Errorf("%w: heading bin %d", ErrInvalidAction, a.Heading)
	}
	if a.Speed < Accelerate || a.Speed > Decelerate {
		return fmt.Errorf("%w: speed bin %d", ErrInvalidAction, a.Speed)
	}
	return nil
}

// Bins returns the action as plain indices, for recording.
func (a Action) Bins() [3]int {
	return [3]int{int(a.Altitude), int(a.Heading), int(a.Speed)}
}

// AltitudeDelta is the height change requested by the bin.
func (b AltitudeBin) AltitudeDelta() float64 {
	return altitudeDelta[b]
}

// Degrees is the turn requested by the bin.
func (b HeadingBin) Degrees() float64 {
	return headingDegrees[b]
}

// HeadingBinFor buckets a signed heading error in degrees, already
// normalized to (-180, 180].
func HeadingBinFor(deltaDeg float64) HeadingBin {
	switch {
	case deltaDeg > 30:
		return HardRight
	case deltaDeg > 15:
		return Right
	case deltaDeg > 5:
		return SlightRight
	case deltaDeg > -5:
		return Straight
	case deltaDeg > -15:
		return SlightLeft
	case deltaDeg > -30:
		return Left
	default:
		return HardLeft
	}
}
