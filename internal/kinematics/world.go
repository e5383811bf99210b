package kinematics

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/pkg/core"
)

// ErrInvalidSim is returned for a run configuration that cannot be flown.
var ErrInvalidSim = errors.New("invalid sim config")

// Rules are the fixed parameters of the world beyond the run config.
type Rules struct {
	Airframe Airframe

	CruiseThrottle float64

	HostileSpeed     float64 // m/s
	HostileTurnRate  float64 // rad/s
	HostileFireRange float64 // m
	HostileCooldown  float64 // s between hostile shots
	HostileMissiles  int

	MidLockRange   float64
	ShortLockRange float64
	SensorRange    float64 // hostiles inside this range of any own aircraft are observed directly

	MissileSpeed    float64
	MissileLifetime float64

	Loadout map[core.WeaponType]int
}

// DefaultRules returns rules matching the agent's default weapon envelope.
func DefaultRules() Rules {
	return Rules{
		Airframe:         DefaultAirframe(),
		CruiseThrottle:   0.395,
		HostileSpeed:     260,
		HostileTurnRate:  mgl64.DegToRad(6),
		HostileFireRange: 25000,
		HostileCooldown:  30,
		HostileMissiles:  2,
		MidLockRange:     30000,
		ShortLockRange:   8000,
		SensorRange:      40000,
		MissileSpeed:     900,
		MissileLifetime:  60,
		Loadout: map[core.WeaponType]int{
			core.WeaponMidRange:   4,
			core.WeaponShortRange: 2,
		},
	}
}

// Event kinds.
const (
	EventLaunch  = "launch"
	EventHit     = "hit"
	EventExpired = "expired"
)

// Event is something that happened during one Apply.
type Event struct {
	Kind    string
	Tick    int
	SimTime float64
	Missile string
	Shooter string
	Target  string
	Weapon  core.WeaponType
}

type hostile struct {
	state    core.AircraftState
	lastShot float64
	shots    int
}

// World holds every aircraft and missile of one headless engagement.
type World struct {
	cfg   config.SimConfig
	rules Rules
	rng   *rand.Rand

	tick    int
	simTime float64

	own      map[string]*core.AircraftState
	hostiles map[string]*hostile
	missiles []*Missile
	fired    int
}

// NewWorld spawns the own flight at the origin heading north and the
// hostiles cfg.Range to the north heading south, with seeded jitter.
func NewWorld(cfg config.SimConfig, rules Rules) (*World, error) {
	switch {
	case cfg.Ticks <= 0:
		return nil, fmt.Errorf("%w: ticks must be positive", ErrInvalidSim)
	case cfg.TimeStep <= 0:
		return nil, fmt.Errorf("%w: timeStep must be positive", ErrInvalidSim)
	case cfg.Aircraft <= 0:
		return nil, fmt.Errorf("%w: at least one aircraft is required", ErrInvalidSim)
	case cfg.Hostiles < 0:
		return nil, fmt.Errorf("%w: negative hostile count", ErrInvalidSim)
	}

	w := &World{
		cfg:      cfg,
		rules:    rules,
		rng:      rand.New(rand.NewPCG(uint64(cfg.Seed), 0)),
		own:      make(map[string]*core.AircraftState, cfg.Aircraft),
		hostiles: make(map[string]*hostile, cfg.Hostiles),
	}

	cruise := rules.Airframe.CommandedSpeed(rules.CruiseThrottle)
	for i := range cfg.Aircraft {
		s := &core.AircraftState{
			ID:      fmt.Sprintf("blue-%d", i+1),
			Y:       lineAbreast(i, cfg.Aircraft, cfg.Spacing),
			Z:       -cfg.Altitude,
			TAS:     cruise,
			Loadout: maps.Clone(rules.Loadout),
		}
		setVelocity(s)
		w.own[s.ID] = s
	}

	for i := range cfg.Hostiles {
		s := core.AircraftState{
			ID:  fmt.Sprintf("red-%d", i+1),
			X:   cfg.Range + w.jitter(cfg.Spacing),
			Y:   lineAbreast(i, cfg.Hostiles, cfg.Spacing) + w.jitter(cfg.Spacing/2),
			Z:   -(cfg.Altitude + w.jitter(500)),
			Yaw: math.Pi,
			TAS: rules.HostileSpeed,
		}
		setVelocity(&s)
		w.hostiles[s.ID] = &hostile{state: s, lastShot: math.Inf(-1)}
	}
	return w, nil
}

func lineAbreast(i, n int, spacing float64) float64 {
	return (float64(i) - float64(n-1)/2) * spacing
}

// jitter returns a uniform value in [-span, span).
func (w *World) jitter(span float64) float64 {
	return (w.rng.Float64()*2 - 1) * span
}

// Tick is the number of steps applied so far.
func (w *World) Tick() int { return w.tick }

// SimTime is the simulated time in seconds.
func (w *World) SimTime() float64 { return w.simTime }

// TimeStep is the step length in seconds.
func (w *World) TimeStep() float64 { return w.cfg.TimeStep }

// Own returns a copy of an own aircraft that is still flying.
func (w *World) Own(id string) (core.AircraftState, bool) {
	s, ok := w.own[id]
	if !ok {
		return core.AircraftState{}, false
	}
	return *s, true
}

// OwnIDs returns the surviving own aircraft, sorted.
func (w *World) OwnIDs() []string {
	return slices.Sorted(maps.Keys(w.own))
}

// HostileIDs returns the surviving hostiles, sorted.
func (w *World) HostileIDs() []string {
	return slices.Sorted(maps.Keys(w.hostiles))
}

// Missiles returns the number of missiles in flight.
func (w *World) Missiles() int { return len(w.missiles) }

// Done reports whether the run is over: ticks exhausted or no own
// aircraft left.
func (w *World) Done() bool {
	return w.tick >= w.cfg.Ticks || len(w.own) == 0
}

// Observation builds what the agent sees this tick.
func (w *World) Observation() core.Observation {
	obs := core.Observation{
		SimTime: w.simTime,
		Own:     make(map[string]core.AircraftState, len(w.own)),
		Hostile: make(map[string]core.AircraftState),
	}

	for _, id := range w.OwnIDs() {
		s := *w.own[id]
		s.Loadout = maps.Clone(s.Loadout)
		s.MidLockList, s.ShortLockList = w.locks(s.Position())
		obs.Own[id] = s
	}

	for _, id := range w.HostileIDs() {
		h := w.hostiles[id].state
		obs.EarlyWarning = append(obs.EarlyWarning, core.EarlyWarningContact{ID: id, X: h.X, Y: h.Y, Z: h.Z})
		if w.nearestOwnDistance(h.Position()) <= w.rules.SensorRange {
			obs.Hostile[id] = h
		}
	}

	for _, m := range w.missiles {
		if _, ok := w.own[m.Target]; ok {
			obs.Threats = append(obs.Threats, m.Contact())
		}
	}
	return obs
}

// locks returns the hostiles inside the mid and short lock ranges of pos,
// nearest first.
func (w *World) locks(pos mgl64.Vec3) (mid, short []string) {
	type ranged struct {
		id   string
		dist float64
	}
	var in []ranged
	for id, h := range w.hostiles {
		if d := geometry.Distance(pos, h.state.Position()); d <= w.rules.MidLockRange {
			in = append(in, ranged{id, d})
		}
	}
	slices.SortFunc(in, func(a, b ranged) int {
		return cmp.Or(cmp.Compare(a.dist, b.dist), cmp.Compare(a.id, b.id))
	})
	for _, r := range in {
		mid = append(mid, r.id)
		if r.dist <= w.rules.ShortLockRange {
			short = append(short, r.id)
		}
	}
	return mid, short
}

func (w *World) nearestOwn(pos mgl64.Vec3) (*core.AircraftState, float64) {
	var (
		best *core.AircraftState
		dist = math.Inf(1)
	)
	for _, id := range w.OwnIDs() {
		s := w.own[id]
		if d := geometry.Distance(pos, s.Position()); d < dist {
			best, dist = s, d
		}
	}
	return best, dist
}

func (w *World) nearestOwnDistance(pos mgl64.Vec3) float64 {
	_, d := w.nearestOwn(pos)
	return d
}

// Apply flies one step: own aircraft under cmds, hostiles in pursuit,
// then every missile. Aircraft without a command get a zero command.
func (w *World) Apply(cmds core.CommandMap) []Event {
	dt := w.cfg.TimeStep
	var events []Event

	for _, id := range w.OwnIDs() {
		s := w.own[id]
		cmd := cmds[id]
		w.rules.Airframe.Step(s, cmd.Control, dt)
		if cmd.Weapon == nil {
			continue
		}
		if ev, ok := w.launchOwn(s, *cmd.Weapon); ok {
			events = append(events, ev)
		}
	}

	for _, id := range w.HostileIDs() {
		h := w.hostiles[id]
		target, dist := w.nearestOwn(h.state.Position())
		if target == nil {
			integrate(&h.state, dt)
			continue
		}
		steer(&h.state, target.Position(), w.rules.HostileTurnRate, dt)
		if dist <= w.rules.HostileFireRange && h.shots < w.rules.HostileMissiles &&
			w.simTime-h.lastShot >= w.rules.HostileCooldown {
			h.shots++
			h.lastShot = w.simTime
			events = append(events, w.launch(id, target.ID, "", h.state.Position()))
		}
	}

	events = append(events, w.stepMissiles(dt)...)

	w.tick++
	w.simTime += dt
	return events
}

func (w *World) launchOwn(s *core.AircraftState, l core.WeaponLaunch) (Event, bool) {
	if s.Loadout[l.Type] <= 0 {
		return Event{}, false
	}
	if _, ok := w.hostiles[l.Target]; !ok {
		return Event{}, false
	}
	s.Loadout[l.Type]--
	return w.launch(s.ID, l.Target, l.Type, s.Position()), true
}

func (w *World) launch(shooter, target string, weapon core.WeaponType, pos mgl64.Vec3) Event {
	w.fired++
	m := &Missile{
		ID:       fmt.Sprintf("msl-%d", w.fired),
		Shooter:  shooter,
		Target:   target,
		Weapon:   weapon,
		Pos:      pos,
		Speed:    w.rules.MissileSpeed,
		Lifetime: w.rules.MissileLifetime,
	}
	w.missiles = append(w.missiles, m)
	return w.event(EventLaunch, m)
}

func (w *World) event(kind string, m *Missile) Event {
	return Event{
		Kind:    kind,
		Tick:    w.tick,
		SimTime: w.simTime,
		Missile: m.ID,
		Shooter: m.Shooter,
		Target:  m.Target,
		Weapon:  m.Weapon,
	}
}

func (w *World) targetPosition(id string) (mgl64.Vec3, bool) {
	if s, ok := w.own[id]; ok {
		return s.Position(), true
	}
	if h, ok := w.hostiles[id]; ok {
		return h.state.Position(), true
	}
	return mgl64.Vec3{}, false
}

func (w *World) stepMissiles(dt float64) []Event {
	var events []Event
	live := w.missiles[:0]
	for _, m := range w.missiles {
		pos, ok := w.targetPosition(m.Target)
		if !ok {
			events = append(events, w.event(EventExpired, m))
			continue
		}
		if m.Step(pos, w.cfg.HitRadius, dt) {
			delete(w.own, m.Target)
			delete(w.hostiles, m.Target)
			events = append(events, w.event(EventHit, m))
			continue
		}
		if m.Expired() {
			events = append(events, w.event(EventExpired, m))
			continue
		}
		live = append(live, m)
	}
	clear(w.missiles[len(live):])
	w.missiles = live
	return events
}
