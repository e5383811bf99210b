package tactics

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/maneuver"
	"github.com/hddf2/pilot/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	controls []core.ControlRecord
	threats  []core.ThreatRecord
	phases   []core.PhaseRecord
	launches []core.LaunchRecord
}

func (s *recordingSink) RecordControl(r core.ControlRecord) { s.controls = append(s.controls, r) }
func (s *recordingSink) RecordThreat(r core.ThreatRecord)   { s.threats = append(s.threats, r) }
func (s *recordingSink) RecordPhase(r core.PhaseRecord)     { s.phases = append(s.phases, r) }
func (s *recordingSink) RecordLaunch(r core.LaunchRecord)   { s.launches = append(s.launches, r) }

func (s *recordingSink) lastControl(id string) core.ControlRecord {
	for i := len(s.controls) - 1; i >= 0; i-- {
		if s.controls[i].AircraftID == id {
			return s.controls[i]
		}
	}
	return core.ControlRecord{}
}

// assertEncodable checks that every threat and launch record survives
// JSON encoding, as the exporters and the stream need.
func (s *recordingSink) assertEncodable(t *testing.T) {
	t.Helper()
	for _, r := range s.threats {
		_, err := json.Marshal(r)
		assert.NoError(t, err, "threat record %+v", r)
	}
	for _, r := range s.launches {
		_, err := json.Marshal(r)
		assert.NoError(t, err, "launch record %+v", r)
	}
}

func newTestAgent(t *testing.T, cfg Config) (*Agent, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	a, err := New(cfg, WithSink(sink))
	require.NoError(t, err)
	return a, sink
}

func single(own core.AircraftState, simTime float64) core.Observation {
	return core.Observation{
		SimTime: simTime,
		Own:     map[string]core.AircraftState{own.ID: own},
	}
}

func TestStep_ApproachScenario(t *testing.T) {
	tests := []struct {
		name      string
		objective mgl64.Vec3
		heading   maneuver.HeadingBin
	}{
		{"objective dead ahead", mgl64.Vec3{20000, 0, -2000}, maneuver.Straight},
		{"objective to the right", mgl64.Vec3{0, 20000, -2000}, maneuver.HardRight},
		{"objective slightly left", mgl64.Vec3{20000, -20000 * 0.17, -2000}, maneuver.SlightLeft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DefaultObjective = tt.objective
			a, sink := newTestAgent(t, cfg)

			own := core.AircraftState{ID: "a1", Z: -2000, Yaw: 0, TAS: 250}
			cmds, err := a.Step(single(own, 0))
			require.NoError(t, err)
			require.Contains(t, cmds, "a1")

			phase, ok := a.Phase("a1")
			require.True(t, ok)
			assert.Equal(t, Approach, phase)

			rec := sink.lastControl("a1")
			assert.Equal(t, "approach", rec.Phase)
			assert.Equal(t, int(tt.heading), rec.Action[1])
			assert.Equal(t, int(maneuver.HoldAltitude), rec.Action[0])
			assert.NoError(t, cmds["a1"].Validate())
		})
	}
}

func TestStep_ApproachToPatrolAndEngage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultObjective = mgl64.Vec3{10000, 0, -3000}
	a, sink := newTestAgent(t, cfg)

	own := core.AircraftState{ID: "a1", Z: -3000, TAS: 250}
	_, err := a.Step(single(own, 0))
	require.NoError(t, err)
	phase, _ := a.Phase("a1")
	assert.Equal(t, Patrol, phase, "already inside the approach radius")

	obs := single(own, 1)
	obs.Hostile = map[string]core.AircraftState{"h1": {ID: "h1", X: 30000, Z: -4000, TAS: 240}}
	_, err = a.Step(obs)
	require.NoError(t, err)
	phase, _ = a.Phase("a1")
	assert.Equal(t, Engage, phase)

	// hostile gone: back to patrol, never back to approach
	own.X = -50000
	_, err = a.Step(single(own, 2))
	require.NoError(t, err)
	phase, _ = a.Phase("a1")
	assert.Equal(t, Patrol, phase)

	require.Len(t, sink.phases, 3)
	assert.Equal(t, "approach", sink.phases[0].From)
	assert.Equal(t, "patrol", sink.phases[0].To)
	assert.Equal(t, "engage", sink.phases[1].To)
	assert.Equal(t, "patrol", sink.phases[2].To)
}

func TestStep_EngageTargetsNearestHostile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialPhase = "engage"
	a, sink := newTestAgent(t, cfg)

	own := core.AircraftState{ID: "a1", Z: -3000, TAS: 250}
	obs := single(own, 0)
	obs.Hostile = map[string]core.AircraftState{
		"far":  {ID: "far", X: 40000, Z: -3000, TAS: 250},
		"near": {ID: "near", Y: 10000, Z: -3000, TAS: 300},
	}
	_, err := a.Step(obs)
	require.NoError(t, err)

	rec := sink.lastControl("a1")
	assert.Equal(t, "engage", rec.Phase)
	assert.Equal(t, int(maneuver.HardRight), rec.Action[1])
	assert.Equal(t, int(maneuver.Accelerate), rec.Action[2], "nearest hostile is faster")
}

func TestStep_EarlyWarningHostile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialPhase = "patrol"
	a, _ := newTestAgent(t, cfg)

	obs := single(core.AircraftState{ID: "a1", Z: -3000}, 0)
	obs.EarlyWarning = []core.EarlyWarningContact{{ID: "h9", X: 50000, Z: -3000}}
	_, err := a.Step(obs)
	require.NoError(t, err)

	phase, _ := a.Phase("a1")
	assert.Equal(t, Engage, phase)
}

func TestStep_ObjectiveAssignment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Objectives = []Objective{
		{Name: "av1", Class: Manned, Pos: mgl64.Vec3{55000, 0, -4000}},
		{Name: "av2", Class: Manned, Pos: mgl64.Vec3{-55000, 0, -5000}},
		{Name: "uav1", Class: UAV, Pos: mgl64.Vec3{40000, 0, -3000}},
		{Name: "uav2", Class: UAV, Pos: mgl64.Vec3{-40000, 0, -4000}},
	}
	a, _ := newTestAgent(t, cfg)

	obs := core.Observation{Own: map[string]core.AircraftState{
		"a1": {ID: "a1", X: 50000},
		"a2": {ID: "a2", X: 51000},
		"u1": {ID: "u1", X: -30000, IsUAV: true},
		"u2": {ID: "u2", X: -31000, IsUAV: true},
		"u3": {ID: "u3", IsUAV: true},
	}}
	_, err := a.Step(obs)
	require.NoError(t, err)

	name := func(id string) string {
		n, _, ok := a.Objective(id)
		require.True(t, ok)
		return n
	}
	// ids are processed in sorted order, each taking the nearest free one
	assert.Equal(t, "av1", name("a1"))
	assert.Equal(t, "av2", name("a2"))
	assert.Equal(t, "uav2", name("u1"))
	assert.Equal(t, "uav1", name("u2"))
	assert.Equal(t, "default", name("u3"))
}

func TestStep_LazyStateAndLoss(t *testing.T) {
	a, _ := newTestAgent(t, DefaultConfig())

	_, err := a.Step(single(core.AircraftState{ID: "a1"}, 0))
	require.NoError(t, err)
	_, ok := a.Phase("a2")
	assert.False(t, ok)

	obs := core.Observation{SimTime: 1, Own: map[string]core.AircraftState{
		"a1": {ID: "a1"},
		"a2": {ID: "a2", X: 100},
	}}
	cmds, err := a.Step(obs)
	require.NoError(t, err)
	assert.Len(t, cmds, 2)
	_, ok = a.Phase("a2")
	assert.True(t, ok)

	_, err = a.Step(single(core.AircraftState{ID: "a2", X: 200}, 2))
	require.NoError(t, err)
	_, ok = a.Phase("a1")
	assert.False(t, ok, "lost aircraft state is discarded")
	assert.Equal(t, uint(3), a.Tick())
}

func TestStep_BoundaryReturn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Boundary = BoundaryConfig{HalfX: 10000, HalfY: 45000}
	cfg.DefaultObjective = mgl64.Vec3{60000, 0, -3000}
	a, sink := newTestAgent(t, cfg)

	_, err := a.Step(single(core.AircraftState{ID: "a1", X: 15000, Z: -3000}, 0))
	require.NoError(t, err)

	rec := sink.lastControl("a1")
	assert.Equal(t, "approach", rec.Phase)
	assert.Equal(t, int(maneuver.HardRight), rec.Action[1], "turns back toward the area")
}

func TestStep_AltitudeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		own      core.AircraftState
		altitude maneuver.AltitudeBin
		pullUp   bool
	}{
		{"inside the envelope", core.AircraftState{Z: -3000}, maneuver.HoldAltitude, false},
		{"below the floor", core.AircraftState{Z: -700}, maneuver.Climb, false},
		{"above the ceiling", core.AircraftState{Z: -13000}, maneuver.Descend, false},
		{"diving below the floor", core.AircraftState{Z: -800, Pitch: -1}, 0, true},
		{"below the emergency altitude", core.AircraftState{Z: -200}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DefaultObjective = mgl64.Vec3{60000, 0, -3000}
			cfg.Altitude.Floor = 1000
			cfg.Altitude.Ceiling = 12000
			a, sink := newTestAgent(t, cfg)

			own := tt.own
			own.ID, own.TAS = "a1", 250
			cmds, err := a.Step(single(own, 0))
			require.NoError(t, err)
			require.NoError(t, cmds["a1"].Validate())

			if tt.pullUp {
				assert.Equal(t, maneuver.PullUp(own).Control, cmds["a1"].Control)
				assert.Equal(t, -1.0, cmds["a1"].Control[core.Elevator])
				return
			}
			rec := sink.lastControl("a1")
			assert.Equal(t, int(tt.altitude), rec.Action[0])
			assert.Equal(t, int(maneuver.Straight), rec.Action[1], "recovery keeps the heading")
		})
	}
}

func TestStep_PatrolCyclesWaypoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialPhase = "patrol"
	cfg.DefaultObjective = mgl64.Vec3{0, 0, -3000}
	a, _ := newTestAgent(t, cfg)

	// sitting on waypoint 0 advances to waypoint 1
	wp0 := a.waypoint(cfg.DefaultObjective, 0)
	_, err := a.Step(single(core.AircraftState{ID: "a1", X: wp0.X(), Y: wp0.Y(), Z: -3000}, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, a.aircraft["a1"].waypoint)

	for i := 0; i < cfg.Patrol.Waypoints; i++ {
		wp := a.waypoint(cfg.DefaultObjective, a.aircraft["a1"].waypoint)
		_, err := a.Step(single(core.AircraftState{ID: "a1", X: wp.X(), Y: wp.Y(), Z: -3000}, float64(i+1)))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, a.aircraft["a1"].waypoint, "wraps after a full circle")
}

func TestStep_CommandsAlwaysInRange(t *testing.T) {
	a, _ := newTestAgent(t, DefaultConfig())
	states := []core.AircraftState{
		{ID: "a1", Roll: 3, Pitch: -1.2, P: 4, Q: -3, R: 2, TAS: 100},
		{ID: "a1", Roll: -2, Pitch: 1.4, P: -4, Q: 3, R: -2, TAS: 400, X: 1e5, Y: -1e5, Z: -12000},
		{ID: "a1", Roll: 0.1, Z: 500},
	}
	for i := 0; i < 30; i++ {
		s := states[i%len(states)]
		cmds, err := a.Step(single(s, float64(i)))
		require.NoError(t, err)
		assert.NoError(t, cmds["a1"].Validate())
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown initial phase", func(c *Config) { c.InitialPhase = "loiter" }, ErrUnknownPhase},
		{"evade as initial phase", func(c *Config) { c.InitialPhase = "evade" }, ErrInvalidConfig},
		{"unknown objective class", func(c *Config) {
			c.Objectives = []Objective{{Name: "x", Class: "bomber"}}
		}, ErrInvalidConfig},
		{"zero approach radius", func(c *Config) { c.ApproachRadius = 0 }, ErrInvalidConfig},
		{"short expiry window", func(c *Config) { c.Expiry.Window = 1 }, ErrInvalidConfig},
		{"no waypoints", func(c *Config) { c.Patrol.Waypoints = 0 }, ErrInvalidConfig},
		{"altitude floor above ceiling", func(c *Config) { c.Altitude.Floor, c.Altitude.Ceiling = 5000, 4000 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range []Phase{Approach, Patrol, Evade, Engage} {
		got, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePhase("Engage ")
	assert.NoError(t, err)
	_, err = ParsePhase("dogfight")
	assert.ErrorIs(t, err, ErrUnknownPhase)
	assert.False(t, Phase(9).Valid())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
