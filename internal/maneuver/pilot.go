package maneuver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/attitude"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/pkg/core"
)

// DefaultCruiseThrottle is the throttle for the hold speed bin.
const DefaultCruiseThrottle = 0.395

// pullUpMinSpeed is the airspeed below which PullUp adds throttle.
const pullUpMinSpeed = 200

// Pilot flies one aircraft: it owns the aircraft's attitude controller
// and remembers the last setpoints it produced.
type Pilot struct {
	mapper     Mapper
	controller *attitude.Controller
	cruise     float64

	last       Setpoints
	lastAction Action
}

// NewPilot builds a pilot with its own controller.
func NewPilot(m Mapper, ac attitude.Config, cruiseThrottle float64) *Pilot {
	if cruiseThrottle <= 0 || cruiseThrottle > 1 {
		cruiseThrottle = DefaultCruiseThrottle
	}
	return &Pilot{
		mapper:     m,
		controller: attitude.New(ac),
		cruise:     cruiseThrottle,
	}
}

// Fly maps the target to an action and flies it.
func (p *Pilot) Fly(own core.AircraftState, t Target) (core.Command, Action, error) {
	a, err := p.mapper.MapToAction(own, t)
	if err != nil {
		return core.Command{}, Action{}, err
	}
	cmd, err := p.FlyAction(own, a)
	return cmd, a, err
}

// FlyAction converts an action into a control command.
func (p *Pilot) FlyAction(own core.AircraftState, a Action) (core.Command, error) {
	sp, err := p.mapper.ActionToSetpoints(a, own)
	if err != nil {
		return core.Command{}, err
	}

	p.controller.SetTargetRates(
		mgl64.RadToDeg(sp.PitchDelta),
		mgl64.RadToDeg(sp.HeadingRate),
		mgl64.RadToDeg(sp.RollDelta),
	)
	ctl := p.controller.ComputeControl(own.P, own.Q, own.R, own.Roll)
	ctl[core.Throttle] = p.throttle(a.Speed)

	p.last = sp
	p.lastAction = a
	return core.Command{Control: ctl}, nil
}

func (p *Pilot) throttle(s SpeedBin) float64 {
	switch s {
	case Decelerate:
		return 0
	case HoldSpeed:
		return p.cruise
	default:
		return 1
	}
}

// Last returns the setpoints of the most recent FlyAction.
func (p *Pilot) Last() Setpoints {
	return p.last
}

// LastAction returns the most recent action flown.
func (p *Pilot) LastAction() Action {
	return p.lastAction
}

// BreakTurn is the default evasive maneuver: full bank away from the
// threat, full pull and full throttle.
func BreakTurn(own core.AircraftState, threat mgl64.Vec3) core.Command {
	rel := geometry.ShortestAngularDifference(own.Yaw, geometry.Bearing(own.Position(), threat))

	var ctl [4]float64
	ctl[core.Aileron] = -math.Copysign(1, rel)
	ctl[core.Elevator] = -1
	if attitude.Inverted(own.Roll) {
		ctl[core.Elevator] = 1
	}
	ctl[core.Throttle] = 1
	return core.Command{Control: ctl}
}

// PullUp recovers from a low or diving attitude: roll wings level, then
// pull. Throttle goes to full only when slow.
func PullUp(own core.AircraftState) core.Command {
	var ctl [4]float64
	if math.Abs(own.Roll) >= 0.2 {
		ctl[core.Aileron] = geometry.Clamp(-0.8*own.Roll, -1, 1)
	}
	if math.Abs(own.Roll) < 1.3 {
		ctl[core.Elevator] = -1
	}
	if own.TAS < pullUpMinSpeed {
		ctl[core.Throttle] = 1
	}
	return core.Command{Control: ctl}
}
