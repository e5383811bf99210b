package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hddf2/pilot/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreToEngagement(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := CoreToEngagement(core.Engagement{
		ID:        "c0ffee00-0000-0000-0000-000000000001",
		Side:      "blue",
		StartTime: start,
		Config:    map[string]any{"expiryWindow": 40},
	})

	assert.Equal(t, "c0ffee00-0000-0000-0000-000000000001", e.UUID)
	assert.Equal(t, "blue", e.Side)
	assert.Equal(t, start, e.StartTime)
	assert.Nil(t, e.EndTime)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal(e.Config, &cfg))
	assert.Equal(t, 40.0, cfg["expiryWindow"])
}

func TestCoreToEngagement_EmptyConfig(t *testing.T) {
	e := CoreToEngagement(core.Engagement{ID: "x"})
	assert.Equal(t, "{}", string(e.Config))
}

func TestCloseEngagement(t *testing.T) {
	e := CoreToEngagement(core.Engagement{ID: "x"})
	end := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	CloseEngagement(&e, end, 600)

	require.NotNil(t, e.EndTime)
	assert.Equal(t, end, *e.EndTime)
	assert.Equal(t, uint(600), e.EndTick)
}

func TestControlStateRoundTrip(t *testing.T) {
	orig := core.ControlRecord{
		Tick:       12,
		SimTime:    12.5,
		AircraftID: "blue-1",
		Phase:      "engage",
		Position:   [3]float64{1000, -250, -3000},
		Roll:       0.3,
		Pitch:      -0.1,
		Yaw:        1.2,
		Action:     [3]int{1, 4, 2},
		Control:    [4]float64{0.25, -0.5, 0, 0.9},
	}

	s := CoreToControlState(7, orig)
	assert.Equal(t, uint(7), s.EngagementID)
	assert.Equal(t, 1, s.AltitudeBin)
	assert.Equal(t, 4, s.HeadingBin)
	assert.Equal(t, 2, s.SpeedBin)
	assert.Equal(t, 0.9, s.Throttle)

	coord, ok := s.Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 3000.0, coord.Z, "altitude is stored positive up")

	assert.Equal(t, orig, ControlStateToCore(s))
}

func TestThreatAssessmentRoundTrip(t *testing.T) {
	orig := core.ThreatRecord{
		Tick:              3,
		SimTime:           3,
		AircraftID:        "blue-1",
		ThreatID:          "m-9",
		Distance:          4200,
		Facing:            true,
		AheadOfThreatNose: true,
		Alignment:         0.98,
		Trend:             "closing",
		EvadePoint:        [3]float64{-500, 800, -2500},
	}

	a := CoreToThreatAssessment(2, orig)
	assert.Equal(t, uint(2), a.EngagementID)
	assert.Equal(t, "m-9", a.ThreatID)
	assert.Equal(t, orig, ThreatAssessmentToCore(a))
}

func TestPhaseChangeRoundTrip(t *testing.T) {
	orig := core.PhaseRecord{Tick: 40, SimTime: 40, AircraftID: "blue-2", From: "patrol", To: "evade", Reason: "threat"}

	p := CoreToPhaseChange(1, orig)
	assert.Equal(t, "patrol", p.FromPhase)
	assert.Equal(t, "evade", p.ToPhase)
	assert.Equal(t, orig, PhaseChangeToCore(p))
}

func TestWeaponLaunchRoundTrip(t *testing.T) {
	orig := core.LaunchRecord{Tick: 11, SimTime: 11, AircraftID: "blue-1", Weapon: core.WeaponMidRange, TargetID: "red-1", Range: 19990}

	w := CoreToWeaponLaunch(1, orig)
	assert.Equal(t, "mid_range", w.Weapon)
	assert.Equal(t, orig, WeaponLaunchToCore(w))
}

func TestTrackToAircraftTrack(t *testing.T) {
	records := []core.ControlRecord{
		{Tick: 1, Position: [3]float64{0, 0, -3000}},
		{Tick: 2, Position: [3]float64{240, 0, -3000}},
		{Tick: 3, Position: [3]float64{480, 10, -3050}},
	}

	tr, err := TrackToAircraftTrack(5, "blue-1", records)
	require.NoError(t, err)
	assert.Equal(t, uint(5), tr.EngagementID)
	assert.Equal(t, "blue-1", tr.AircraftID)
	assert.Equal(t, uint(1), tr.FirstTick)
	assert.Equal(t, uint(3), tr.LastTick)

	seq := tr.Path.Coordinates()
	require.Equal(t, 3, seq.Length())
	assert.Equal(t, 480.0, seq.Get(2).X)
	assert.Equal(t, 3050.0, seq.Get(2).Z)
}

func TestTrackToAircraftTrack_TooShort(t *testing.T) {
	_, err := TrackToAircraftTrack(5, "blue-1", []core.ControlRecord{{Tick: 1}})
	assert.Error(t, err)
}
