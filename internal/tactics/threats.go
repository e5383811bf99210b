package tactics

import (
	"errors"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/internal/maneuver"
	"github.com/hddf2/pilot/internal/threat"
	"github.com/hddf2/pilot/internal/track"
	"github.com/hddf2/pilot/pkg/core"
)

type pairKey struct {
	aircraft string
	threat   string
}

// alarm is an unexpired threat inside alarm range of one aircraft.
type alarm struct {
	id         string
	pos        mgl64.Vec3
	distance   float64
	horizontal float64
}

// evasion is what an evading aircraft flies this tick.
type evasion struct {
	threatID  string
	threatPos mgl64.Vec3
	target    maneuver.Target
	breakTurn bool
}

// updateThreatTracks appends this tick's contacts. A contact that is a
// known hostile aircraft, or that every own aircraft it alarms has
// expired, is not a threat. Tracks of contacts that vanished are dropped.
func (a *Agent) updateThreatTracks(obs core.Observation) {
	for _, c := range obs.Threats {
		if _, ok := obs.Hostile[c.ID]; ok {
			continue
		}
		if a.expiredForAll(obs, c) {
			continue
		}
		a.threatTracks.Append(c.ID, a.tick, c.Position())
	}
	for _, id := range a.threatTracks.DropStale(a.tick) {
		a.forgetThreat(id)
	}
}

// expiredForAll reports whether c alarms at least one own aircraft and
// every one of them has expired it.
func (a *Agent) expiredForAll(obs core.Observation, c core.ThreatContact) bool {
	alarmed := 0
	for _, id := range c.AlarmIDs {
		if _, ok := obs.Own[id]; !ok {
			continue
		}
		if !a.expired.Contains(pairKey{id, c.ID}) {
			return false
		}
		alarmed++
	}
	return alarmed > 0
}

func (a *Agent) forgetThreat(id string) {
	a.threatTracks.Drop(id)
	for k := range a.separation {
		if k.threat == id {
			delete(a.separation, k)
		}
	}
}

// alarms returns the threats alarming own within alarm range, nearest
// first. Threats found to be opening are expired on the way.
func (a *Agent) alarms(obs core.Observation, own core.AircraftState) []alarm {
	var out []alarm
	for _, c := range obs.Threats {
		if !c.Alarms(own.ID) || a.expired.Contains(pairKey{own.ID, c.ID}) {
			continue
		}
		if _, ok := a.threatTracks.Get(c.ID); !ok {
			continue
		}

		pos := c.Position()
		d := geometry.Distance(own.Position(), pos)
		if a.opening(own.ID, c.ID, d) {
			a.expire(obs, own, c, d)
			continue
		}

		h := geometry.HorizontalDistance(own.Position(), pos)
		if h < a.cfg.AlarmRange {
			out = append(out, alarm{id: c.ID, pos: pos, distance: d, horizontal: h})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].horizontal != out[j].horizontal {
			return out[i].horizontal < out[j].horizontal
		}
		return out[i].id < out[j].id
	})
	return out
}

// opening records the separation and reports whether it has grown
// without a single decrease by more than the margin over the window.
func (a *Agent) opening(aircraftID, threatID string, d float64) bool {
	key := pairKey{aircraftID, threatID}
	h, ok := a.separation[key]
	if !ok {
		h = track.NewHistory[float64](a.cfg.Expiry.Window)
		a.separation[key] = h
	}
	h.Append(d)

	if h.Len() < a.cfg.Expiry.Window {
		return false
	}
	for i := 1; i < h.Len(); i++ {
		if h.At(i) < h.At(i-1) {
			return false
		}
	}
	return h.At(h.Len()-1)-h.At(0) > a.cfg.Expiry.Margin
}

// expire marks c as no longer a threat to own. The threat track is kept
// while another aircraft it alarms still has it unexpired.
func (a *Agent) expire(obs core.Observation, own core.AircraftState, c core.ThreatContact, d float64) {
	threatID := c.ID
	key := pairKey{own.ID, threatID}
	a.expired.Add(key, obs.SimTime)
	delete(a.separation, key)
	if a.expiredForAll(obs, c) {
		a.forgetThreat(threatID)
	}
	a.metrics.expired.Add(a.ctx, 1)

	a.log.Info("Threat expired", "aircraft", own.ID, "threat", threatID, "distance", d)
	a.sink.RecordThreat(core.ThreatRecord{
		Tick:       a.tick,
		SimTime:    obs.SimTime,
		AircraftID: own.ID,
		ThreatID:   threatID,
		Distance:   d,
		Expired:    true,
	})
}

// decideEvasion evaluates the nearest alarm. It returns nil when evasion
// is not called for this tick. An aircraft already evading keeps evading
// while any alarm remains: it steers from the nearest alarm's assessment,
// or breaks away from it when that alarm cannot be evaluated.
func (a *Agent) decideEvasion(obs core.Observation, own core.AircraftState, st *aircraft, alarms []alarm) *evasion {
	if len(alarms) == 0 {
		return nil
	}
	c := alarms[0]
	evading := st.phase == Evade
	breakAway := &evasion{threatID: c.id, threatPos: c.pos, breakTurn: true}

	assess, err := a.evaluator.Evaluate(
		a.threatTracks.Tail(c.id, a.cfg.TrackCapacity),
		a.ownTracks.Tail(own.ID, a.cfg.TrackCapacity),
	)
	switch {
	case err == nil:
		a.recordAssessment(obs, own, c, assess)
		if !assess.AheadOfThreatNose && !evading {
			return nil
		}
		if !assess.OwnStationary && assess.Alignment >= a.cfg.EvadeMaxAlignment {
			// threat is on our tail; no aim point across its path helps
			return breakAway
		}
		return &evasion{
			threatID:  c.id,
			threatPos: c.pos,
			target: maneuver.EvadeTarget{
				ThreatID: c.id,
				Pos:      mgl64.Vec3{assess.EvadePoint.X(), assess.EvadePoint.Y(), own.Z},
			},
		}

	case evading:
		return breakAway
	case errors.Is(err, threat.ErrInsufficientSamples) && c.distance < a.cfg.BreakTurnRange:
		return breakAway
	}

	a.log.Debug("Threat not evaluated", "aircraft", own.ID, "threat", c.id, "error", err)
	return nil
}

func (a *Agent) recordAssessment(obs core.Observation, own core.AircraftState, c alarm, as threat.Assessment) {
	a.sink.RecordThreat(core.ThreatRecord{
		Tick:              a.tick,
		SimTime:           obs.SimTime,
		AircraftID:        own.ID,
		ThreatID:          c.id,
		Distance:          c.distance,
		Facing:            as.Facing,
		AheadOfThreatNose: as.AheadOfThreatNose,
		Alignment:         as.Alignment,
		Trend:             as.Trend.String(),
		EvadePoint:        [3]float64{as.EvadePoint.X(), as.EvadePoint.Y(), as.EvadePoint.Z()},
	})
}
