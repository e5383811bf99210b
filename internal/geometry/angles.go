// Package geometry holds the vector and angle helpers shared by the
// maneuver mapper and the threat evaluator. All angle normalization goes
// through NormalizeAngle so both sides agree on the (-π, π] convention.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeAngle wraps a radian angle into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// DegreesLimit wraps a degree angle into (-180, 180].
func DegreesLimit(deg float64) float64 {
	return mgl64.RadToDeg(NormalizeAngle(mgl64.DegToRad(deg)))
}

// ShortestAngularDifference returns the signed angle to turn from a to b,
// in radians, within (-π, π].
func ShortestAngularDifference(a, b float64) float64 {
	return NormalizeAngle(b - a)
}

// Bearing is the horizontal direction from one point to another, measured
// from +x toward +y.
func Bearing(from, to mgl64.Vec3) float64 {
	d := to.Sub(from)
	return math.Atan2(d.Y(), d.X())
}

// AzimuthElevation returns the bearing and the elevation angle from one
// point to another. Elevation is positive when the target is higher
// (more negative z).
func AzimuthElevation(from, to mgl64.Vec3) (azimuth, elevation float64) {
	d := to.Sub(from)
	azimuth = math.Atan2(d.Y(), d.X())
	elevation = math.Atan2(-d.Z(), math.Hypot(d.X(), d.Y()))
	return azimuth, elevation
}
