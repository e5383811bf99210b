package tactics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/internal/maneuver"
	"github.com/hddf2/pilot/pkg/core"
)

// assignObjective gives own the nearest unclaimed objective of its class,
// or the default objective when none is left.
func (a *Agent) assignObjective(own core.AircraftState) (string, mgl64.Vec3) {
	class := Manned
	if own.IsUAV {
		class = UAV
	}

	best := -1
	bestDist := math.Inf(1)
	for i, o := range a.cfg.Objectives {
		if o.Class != class {
			continue
		}
		if _, taken := a.claimed[i]; taken {
			continue
		}
		if d := geometry.HorizontalDistance(own.Position(), o.Pos); d < bestDist {
			best, bestDist = i, d
		}
	}

	if best < 0 {
		return "default", a.cfg.DefaultObjective
	}
	a.claimed[best] = own.ID
	o := a.cfg.Objectives[best]
	return o.Name, o.Pos
}

// releaseObjective frees the objective held by id, if any.
func (a *Agent) releaseObjective(id string) {
	for i, holder := range a.claimed {
		if holder == id {
			delete(a.claimed, i)
		}
	}
}

// patrolWaypoint returns the current waypoint on the circle around the
// objective, advancing when own is within the capture radius.
func (a *Agent) patrolWaypoint(own core.AircraftState, st *aircraft) mgl64.Vec3 {
	wp := a.waypoint(st.objective, st.waypoint)
	if geometry.HorizontalDistance(own.Position(), wp) < a.cfg.Patrol.CaptureRadius {
		st.waypoint = (st.waypoint + 1) % a.cfg.Patrol.Waypoints
		wp = a.waypoint(st.objective, st.waypoint)
	}
	return wp
}

func (a *Agent) waypoint(centre mgl64.Vec3, i int) mgl64.Vec3 {
	angle := 2 * math.Pi * float64(i) / float64(a.cfg.Patrol.Waypoints)
	return mgl64.Vec3{
		centre.X() + a.cfg.Patrol.Radius*math.Cos(angle),
		centre.Y() + a.cfg.Patrol.Radius*math.Sin(angle),
		centre.Z(),
	}
}

// boundaryReturn reports a point back inside the allowed area when own
// has left it.
func (a *Agent) boundaryReturn(own core.AircraftState) (mgl64.Vec3, bool) {
	b := a.cfg.Boundary
	out := false
	x, y := own.X, own.Y
	if b.HalfX > 0 && math.Abs(x) > b.HalfX {
		x = math.Copysign(b.HalfX*0.8, x)
		out = true
	}
	if b.HalfY > 0 && math.Abs(y) > b.HalfY {
		y = math.Copysign(b.HalfY*0.8, y)
		out = true
	}
	return mgl64.Vec3{x, y, own.Z}, out
}

// recoveryLead is how far ahead the altitude recovery point is placed.
const recoveryLead = 10000

// altitudeRecovery reports a point ahead of own back inside the altitude
// envelope when own has left it.
func (a *Agent) altitudeRecovery(own core.AircraftState) (mgl64.Vec3, bool) {
	env := a.cfg.Altitude
	alt := -own.Z

	var target float64
	switch {
	case env.Floor > 0 && alt < env.Floor:
		target = env.Floor + env.Margin
	case env.Ceiling > 0 && alt > env.Ceiling:
		target = env.Ceiling - env.Margin
	default:
		return mgl64.Vec3{}, false
	}
	return mgl64.Vec3{
		own.X + recoveryLead*math.Cos(own.Yaw),
		own.Y + recoveryLead*math.Sin(own.Yaw),
		-target,
	}, true
}

// mustPullUp reports whether own is low enough, or diving low enough,
// that steering toward a target is no longer safe.
func (a *Agent) mustPullUp(own core.AircraftState) bool {
	env := a.cfg.Altitude
	alt := -own.Z
	if env.Emergency > 0 && alt < env.Emergency {
		return true
	}
	return env.Floor > 0 && alt < env.Floor && own.Pitch < -env.DivePitch
}

// aimTarget returns the target of st's last mid-range launch while the
// aiming window is open and the target is still in sight.
func (a *Agent) aimTarget(obs core.Observation, st *aircraft) (maneuver.Target, bool) {
	if st.aimTarget == "" {
		return nil, false
	}
	if obs.SimTime >= st.aimUntil {
		st.aimTarget = ""
		return nil, false
	}
	h, ok := obs.Hostile[st.aimTarget]
	if !ok {
		return nil, false
	}
	return maneuver.AircraftTarget{ID: st.aimTarget, Pos: h.Position(), TAS: h.TAS}, true
}
