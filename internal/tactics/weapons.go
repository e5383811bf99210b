package tactics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/pkg/core"
)

type launchRule struct {
	weapon       core.WeaponType
	locks        []string
	cooldown     float64
	minAlignment float64
	maxRange     float64
}

// selectLaunch decides this tick's launch for own, if any. A short-range
// launch supersedes a mid-range one.
func (a *Agent) selectLaunch(obs core.Observation, own core.AircraftState, st *aircraft) *core.WeaponLaunch {
	w := a.cfg.Weapons
	rules := []launchRule{
		{core.WeaponMidRange, own.MidLockList, w.MidCooldown, w.MidMinAlignment, w.MidMaxRange},
		{core.WeaponShortRange, own.ShortLockList, w.ShortCooldown, w.ShortMinAlignment, w.ShortMaxRange},
	}

	var (
		launch *core.WeaponLaunch
		rng    float64
	)
	for _, r := range rules {
		if !a.eligible(obs, own, st, r) {
			continue
		}
		if target, d, ok := a.pickTarget(obs, own, r); ok {
			launch = &core.WeaponLaunch{Type: r.weapon, Target: target}
			rng = d
		}
	}
	if launch == nil {
		return nil
	}

	st.lastLaunch[launch.Type] = obs.SimTime
	if launch.Type == core.WeaponMidRange && w.AimDuration > 0 {
		st.aimTarget, st.aimUntil = launch.Target, obs.SimTime+w.AimDuration
	}
	a.metrics.launch(string(launch.Type))
	a.log.Info("Weapon launch", "aircraft", own.ID, "weapon", launch.Type, "target", launch.Target, "range", rng)
	a.sink.RecordLaunch(core.LaunchRecord{
		Tick:       a.tick,
		SimTime:    obs.SimTime,
		AircraftID: own.ID,
		Weapon:     launch.Type,
		TargetID:   launch.Target,
		Range:      rng,
	})
	return launch
}

func (a *Agent) eligible(obs core.Observation, own core.AircraftState, st *aircraft, r launchRule) bool {
	if len(r.locks) == 0 || own.Remaining(r.weapon) <= 0 {
		return false
	}
	if last, ok := st.lastLaunch[r.weapon]; ok && obs.SimTime-last < r.cooldown {
		return false
	}
	return true
}

// pickTarget returns the nearest locked hostile whose track passes the
// alignment and range filters. Locks on hostiles with no known position
// are ignored. Locked hostiles without enough track to evaluate are taken
// in lock order when nothing else qualifies.
func (a *Agent) pickTarget(obs core.Observation, own core.AircraftState, r launchRule) (string, float64, bool) {
	ownTrack := a.ownTracks.Tail(own.ID, a.cfg.TrackCapacity)

	best := ""
	bestDist := math.Inf(1)
	fallback := ""
	fallbackDist := 0.0

	for _, id := range r.locks {
		pos, known := a.hostilePosition(obs, id)
		if !known {
			// nothing seen of it this tick
			continue
		}
		d := geometry.Distance(own.Position(), pos)
		if r.maxRange > 0 && d > r.maxRange {
			continue
		}

		as, err := a.evaluator.Evaluate(a.hostileTracks.Tail(id, a.cfg.TrackCapacity), ownTrack)
		if err != nil {
			if fallback == "" {
				fallback, fallbackDist = id, d
			}
			continue
		}
		if as.Alignment <= r.minAlignment {
			continue
		}
		if d < bestDist || best == "" {
			best, bestDist = id, d
		}
	}

	switch {
	case best != "":
		return best, bestDist, true
	case fallback != "":
		return fallback, fallbackDist, true
	default:
		return "", 0, false
	}
}

func (a *Agent) hostilePosition(obs core.Observation, id string) (mgl64.Vec3, bool) {
	if h, ok := obs.Hostile[id]; ok {
		return h.Position(), true
	}
	for _, c := range obs.EarlyWarning {
		if c.ID == id {
			return c.Position(), true
		}
	}
	return mgl64.Vec3{}, false
}

// nearestHostile returns the closest hostile from direct observation or
// early warning. Directly observed hostiles carry their airspeed.
func (a *Agent) nearestHostile(obs core.Observation, own core.AircraftState) (id string, pos mgl64.Vec3, tas float64, ok bool) {
	best := math.Inf(1)
	consider := func(cid string, cpos mgl64.Vec3, ctas float64) {
		d := geometry.Distance(own.Position(), cpos)
		if d < best || (d == best && cid < id) {
			best, id, pos, tas, ok = d, cid, cpos, ctas, true
		}
	}
	for hid, h := range obs.Hostile {
		consider(hid, h.Position(), h.TAS)
	}
	for _, c := range obs.EarlyWarning {
		if _, seen := obs.Hostile[c.ID]; seen {
			continue
		}
		consider(c.ID, c.Position(), 0)
	}
	return id, pos, tas, ok
}
