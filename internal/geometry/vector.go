package geometry

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerate is returned when a direction cannot be derived, either
// because too few samples were given or because they do not move.
var ErrDegenerate = errors.New("degenerate direction")

// degenerateNorm is the length below which a vector has no usable direction.
const degenerateNorm = 1e-9

// Method selects how a direction of travel is estimated from a track.
type Method int

const (
	// Regression fits a least-squares line through the window.
	Regression Method = iota
	// FiniteDifference uses the last two samples only.
	FiniteDifference
)

func (m Method) String() string {
	switch m {
	case Regression:
		return "regression"
	case FiniteDifference:
		return "finite_difference"
	default:
		return "unknown"
	}
}

// ParseMethod maps a configuration string to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "regression":
		return Regression, nil
	case "finite_difference":
		return FiniteDifference, nil
	default:
		return 0, errors.New("unknown direction method: " + s)
	}
}

// Distance is the 3-D distance between a and b.
func Distance(a, b mgl64.Vec3) float64 {
	return a.Sub(b).Len()
}

// HorizontalDistance ignores z.
func HorizontalDistance(a, b mgl64.Vec3) float64 {
	return math.Hypot(a.X()-b.X(), a.Y()-b.Y())
}

// Unit normalizes v, returning ErrDegenerate for a zero vector.
func Unit(v mgl64.Vec3) (mgl64.Vec3, error) {
	n := v.Len()
	if n < degenerateNorm || math.IsNaN(n) {
		return mgl64.Vec3{}, ErrDegenerate
	}
	return v.Mul(1 / n), nil
}

// EstimateDirection returns the unit direction of travel of a track whose
// samples are in time order, oldest first.
func EstimateDirection(samples []mgl64.Vec3, m Method) (mgl64.Vec3, error) {
	if len(samples) < 2 {
		return mgl64.Vec3{}, ErrDegenerate
	}

	switch m {
	case FiniteDifference:
		n := len(samples)
		return Unit(samples[n-1].Sub(samples[n-2]))
	default:
		return Unit(regressionSlope(samples))
	}
}

// regressionSlope fits x(t), y(t), z(t) for t = 0..n-1 and returns the
// three slopes.
func regressionSlope(samples []mgl64.Vec3) mgl64.Vec3 {
	n := float64(len(samples))
	tMean := (n - 1) / 2

	var mean mgl64.Vec3
	for _, s := range samples {
		mean = mean.Add(s)
	}
	mean = mean.Mul(1 / n)

	var num mgl64.Vec3
	var den float64
	for i, s := range samples {
		dt := float64(i) - tMean
		num = num.Add(s.Sub(mean).Mul(dt))
		den += dt * dt
	}
	return num.Mul(1 / den)
}
