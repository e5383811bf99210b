package convert

import (
	"encoding/json"

	"github.com/hddf2/pilot/internal/geo"
	"github.com/hddf2/pilot/internal/model"
	"github.com/hddf2/pilot/pkg/core"
)

// ControlStateToCore converts a GORM ControlState back to a core.ControlRecord.
func ControlStateToCore(s model.ControlState) core.ControlRecord {
	r := core.ControlRecord{
		Tick:       s.Tick,
		SimTime:    s.SimTime,
		AircraftID: s.AircraftID,
		Phase:      s.Phase,
		Roll:       s.Roll,
		Pitch:      s.Pitch,
		Yaw:        s.Yaw,
		Action:     [3]int{s.AltitudeBin, s.HeadingBin, s.SpeedBin},
		Control:    [4]float64{s.Aileron, s.Elevator, s.Rudder, s.Throttle},
	}
	if pos, ok := geo.PositionFromPoint(s.Position); ok {
		r.Position = [3]float64(pos)
	}
	return r
}

// ThreatAssessmentToCore converts a GORM ThreatAssessment back to a core.ThreatRecord.
func ThreatAssessmentToCore(a model.ThreatAssessment) core.ThreatRecord {
	r := core.ThreatRecord{
		Tick:              a.Tick,
		SimTime:           a.SimTime,
		AircraftID:        a.AircraftID,
		ThreatID:          a.ThreatID,
		Distance:          a.Distance,
		Facing:            a.Facing,
		AheadOfThreatNose: a.AheadOfThreatNose,
		Alignment:         a.Alignment,
		Trend:             a.Trend,
		Expired:           a.Expired,
	}
	if pos, ok := geo.PositionFromPoint(a.EvadePoint); ok {
		r.EvadePoint = [3]float64(pos)
	}
	return r
}

// PhaseChangeToCore converts a GORM PhaseChange back to a core.PhaseRecord.
func PhaseChangeToCore(p model.PhaseChange) core.PhaseRecord {
	return core.PhaseRecord{
		Tick:       p.Tick,
		SimTime:    p.SimTime,
		AircraftID: p.AircraftID,
		From:       p.FromPhase,
		To:         p.ToPhase,
		Reason:     p.Reason,
	}
}

// WeaponLaunchToCore converts a GORM WeaponLaunch back to a core.LaunchRecord.
func WeaponLaunchToCore(w model.WeaponLaunch) core.LaunchRecord {
	return core.LaunchRecord{
		Tick:       w.Tick,
		SimTime:    w.SimTime,
		AircraftID: w.AircraftID,
		Weapon:     core.WeaponType(w.Weapon),
		TargetID:   w.TargetID,
		Range:      w.Range,
	}
}

// EngagementToCore converts a GORM Engagement back to a core.Engagement.
// A config snapshot that is not a JSON object is left out.
func EngagementToCore(e model.Engagement) core.Engagement {
	out := core.Engagement{
		ID:        e.UUID,
		Side:      e.Side,
		StartTime: e.StartTime,
	}
	var cfg map[string]any
	if err := json.Unmarshal(e.Config, &cfg); err == nil && len(cfg) > 0 {
		out.Config = cfg
	}
	return out
}

// AircraftTrackToCore returns the flown path of a track row.
func AircraftTrackToCore(t model.AircraftTrack) [][3]float64 {
	path := geo.TrackFromLineString(t.Path)
	out := make([][3]float64, len(path))
	for i, p := range path {
		out[i] = [3]float64(p)
	}
	return out
}
