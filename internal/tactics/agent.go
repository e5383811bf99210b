// Package tactics is the per-tick decision layer: it tracks every
// aircraft's phase, picks what each one steers toward, and attaches
// weapon launches.
package tactics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/internal/maneuver"
	"github.com/hddf2/pilot/internal/threat"
	"github.com/hddf2/pilot/internal/track"
	"github.com/hddf2/pilot/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// aircraft is the state the agent keeps for one own aircraft.
type aircraft struct {
	pilot *maneuver.Pilot

	phase  Phase
	resume Phase // phase to return to when evasion ends

	approached    bool
	objectiveName string
	objective     mgl64.Vec3
	waypoint      int

	evasion    *evasion
	lastLaunch map[core.WeaponType]float64

	aimTarget string // hostile to keep the nose on after a mid-range launch
	aimUntil  float64
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.log = l
		}
	}
}

// WithSink sets where records go.
func WithSink(s Sink) Option {
	return func(a *Agent) {
		if s != nil {
			a.sink = s
		}
	}
}

// WithMeter sets the meter the agent's counters are created on. Defaults
// to the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(a *Agent) {
		if m != nil {
			a.meter = m
		}
	}
}

// Agent controls every own aircraft of one side. Step must be called
// from a single goroutine.
type Agent struct {
	cfg       Config
	initial   Phase
	log       *slog.Logger
	sink      Sink
	meter     metric.Meter
	metrics   *metrics
	ctx       context.Context
	mapper    maneuver.Mapper
	evaluator threat.Evaluator

	aircraft      map[string]*aircraft
	claimed       map[int]string // objective index to aircraft id
	ownTracks     *track.Registry
	threatTracks  *track.Registry
	hostileTracks *track.Registry
	separation    map[pairKey]*track.History[float64]
	expired       *lru.Cache[pairKey, float64]

	tick uint
}

// New validates cfg and returns an agent.
func New(cfg Config, opts ...Option) (*Agent, error) {
	initial, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if cfg.TrackCapacity < cfg.Threat.Window {
		cfg.TrackCapacity = track.DefaultCapacity
	}
	if cfg.Expiry.CacheSize <= 0 {
		cfg.Expiry.CacheSize = 256
	}

	expired, err := lru.New[pairKey, float64](cfg.Expiry.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating expired threat cache: %w", err)
	}
	a := &Agent{
		cfg:           cfg,
		initial:       initial,
		log:           slog.Default(),
		sink:          nopSink{},
		meter:         otel.Meter(instrumentationName),
		ctx:           context.Background(),
		mapper:        maneuver.NewMapper(cfg.Mapper),
		evaluator:     threat.New(cfg.Threat),
		aircraft:      make(map[string]*aircraft),
		claimed:       make(map[int]string),
		ownTracks:     track.NewRegistry(cfg.TrackCapacity),
		threatTracks:  track.NewRegistry(cfg.TrackCapacity),
		hostileTracks: track.NewRegistry(cfg.TrackCapacity),
		separation:    make(map[pairKey]*track.History[float64]),
		expired:       expired,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics, err = newMetrics(a.meter); err != nil {
		return nil, err
	}
	return a, nil
}

// Tick returns the number of completed Step calls.
func (a *Agent) Tick() uint {
	return a.tick
}

// Phase returns the phase of an aircraft and whether it is known.
func (a *Agent) Phase(id string) (Phase, bool) {
	st, ok := a.aircraft[id]
	if !ok {
		return 0, false
	}
	return st.phase, true
}

// Objective returns the objective assigned to an aircraft.
func (a *Agent) Objective(id string) (string, mgl64.Vec3, bool) {
	st, ok := a.aircraft[id]
	if !ok {
		return "", mgl64.Vec3{}, false
	}
	return st.objectiveName, st.objective, true
}

// Expired reports whether a threat has been marked as no longer closing
// on an aircraft.
func (a *Agent) Expired(aircraftID, threatID string) bool {
	return a.expired.Contains(pairKey{aircraftID, threatID})
}

// Step computes the commands for every own aircraft from one
// observation. An error means the agent is misconfigured.
func (a *Agent) Step(obs core.Observation) (core.CommandMap, error) {
	start := time.Now()
	a.tick++

	ids := make([]string, 0, len(obs.Own))
	for id, own := range obs.Own {
		ids = append(ids, id)
		a.ownTracks.Append(id, a.tick, own.Position())
	}
	sort.Strings(ids)
	for _, id := range a.ownTracks.DropStale(a.tick) {
		a.log.Info("Aircraft lost", "aircraft", id)
		a.releaseObjective(id)
		delete(a.aircraft, id)
	}

	for id, h := range obs.Hostile {
		a.hostileTracks.Append(id, a.tick, h.Position())
	}
	for _, c := range obs.EarlyWarning {
		if _, ok := obs.Hostile[c.ID]; !ok {
			a.hostileTracks.Append(c.ID, a.tick, c.Position())
		}
	}
	a.hostileTracks.DropStale(a.tick)
	a.updateThreatTracks(obs)

	out := make(core.CommandMap, len(ids))
	evading := 0
	for _, id := range ids {
		own := obs.Own[id]
		own.ID = id
		cmd, err := a.stepAircraft(obs, own)
		if err != nil {
			return nil, fmt.Errorf("aircraft %s: %w", id, err)
		}
		if a.aircraft[id].phase == Evade {
			evading++
		}
		out[id] = cmd
	}

	a.metrics.step(start, evading)
	return out, nil
}

func (a *Agent) ensure(own core.AircraftState) *aircraft {
	if st, ok := a.aircraft[own.ID]; ok {
		return st
	}
	name, pos := a.assignObjective(own)
	st := &aircraft{
		pilot:         maneuver.NewPilot(a.mapper, a.cfg.Attitude, a.cfg.CruiseThrottle),
		phase:         a.initial,
		resume:        a.initial,
		approached:    a.initial != Approach,
		objectiveName: name,
		objective:     pos,
		lastLaunch:    make(map[core.WeaponType]float64),
	}
	a.aircraft[own.ID] = st
	a.log.Info("Aircraft assigned", "aircraft", own.ID, "uav", own.IsUAV, "objective", name,
		"x", pos.X(), "y", pos.Y(), "z", pos.Z())
	return st
}

func (a *Agent) stepAircraft(obs core.Observation, own core.AircraftState) (core.Command, error) {
	st := a.ensure(own)
	if !st.phase.Valid() {
		return core.Command{}, fmt.Errorf("%w: %d", ErrUnknownPhase, st.phase)
	}

	alarms := a.alarms(obs, own)
	ev := a.decideEvasion(obs, own, st, alarms)
	st.evasion = ev

	next, reason := a.nextPhase(obs, own, st, ev != nil)
	if next != st.phase {
		a.transition(obs, own.ID, st, next, reason)
	}

	var (
		cmd    core.Command
		action maneuver.Action
		err    error
	)
	switch {
	case a.mustPullUp(own):
		a.log.Debug("Pulling up", "aircraft", own.ID, "altitude", -own.Z, "pitch", own.Pitch)
		cmd = maneuver.PullUp(own)
	case ev != nil && ev.breakTurn:
		cmd = maneuver.BreakTurn(own, ev.threatPos)
	default:
		target, terr := a.targetFor(obs, own, st)
		if terr != nil {
			return core.Command{}, terr
		}
		cmd, action, err = st.pilot.Fly(own, target)
		if err != nil {
			return core.Command{}, err
		}
	}

	cmd.Weapon = a.selectLaunch(obs, own, st)

	a.sink.RecordControl(core.ControlRecord{
		Tick:       a.tick,
		SimTime:    obs.SimTime,
		AircraftID: own.ID,
		Phase:      st.phase.String(),
		Position:   [3]float64{own.X, own.Y, own.Z},
		Roll:       own.Roll,
		Pitch:      own.Pitch,
		Yaw:        own.Yaw,
		Action:     action.Bins(),
		Control:    cmd.Control,
	})
	return cmd, nil
}

// nextPhase applies the transitions in priority order.
func (a *Agent) nextPhase(obs core.Observation, own core.AircraftState, st *aircraft, evade bool) (Phase, string) {
	if evade {
		return Evade, "threat ahead"
	}
	if st.phase == Evade {
		return st.resume, "threats clear"
	}

	if !st.approached {
		if geometry.HorizontalDistance(own.Position(), st.objective) >= a.cfg.ApproachRadius {
			return Approach, "objective distant"
		}
		st.approached = true
	}

	if _, _, _, ok := a.nearestHostile(obs, own); ok {
		return Engage, "hostile known"
	}
	return Patrol, "no hostile"
}

func (a *Agent) transition(obs core.Observation, id string, st *aircraft, next Phase, reason string) {
	prev := st.phase
	if next == Evade {
		st.resume = prev
	}
	st.phase = next

	a.metrics.transition(prev, next)
	a.log.Info("Phase change", "aircraft", id, "from", prev, "to", next, "reason", reason)
	a.sink.RecordPhase(core.PhaseRecord{
		Tick:       a.tick,
		SimTime:    obs.SimTime,
		AircraftID: id,
		From:       prev.String(),
		To:         next.String(),
		Reason:     reason,
	})
}

// targetFor returns what the current phase steers toward.
func (a *Agent) targetFor(obs core.Observation, own core.AircraftState, st *aircraft) (maneuver.Target, error) {
	if st.phase == Evade {
		return st.evasion.target, nil
	}
	if p, out := a.altitudeRecovery(own); out {
		return maneuver.PointTarget{Pos: p}, nil
	}
	if p, out := a.boundaryReturn(own); out {
		return maneuver.PointTarget{Pos: p}, nil
	}
	if t, ok := a.aimTarget(obs, st); ok {
		return t, nil
	}

	switch st.phase {
	case Approach:
		return maneuver.PointTarget{Pos: st.objective}, nil
	case Patrol:
		return maneuver.PointTarget{Pos: a.patrolWaypoint(own, st)}, nil
	case Engage:
		id, pos, tas, ok := a.nearestHostile(obs, own)
		if !ok {
			return maneuver.PointTarget{Pos: st.objective}, nil
		}
		return maneuver.AircraftTarget{ID: id, Pos: pos, TAS: tas}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, st.phase)
	}
}
