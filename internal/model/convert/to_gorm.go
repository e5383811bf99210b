// Package convert provides functions to convert between GORM models and core records
package convert

import (
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geo"
	"github.com/hddf2/pilot/internal/model"
	"github.com/hddf2/pilot/pkg/core"
	"gorm.io/datatypes"
)

func vec(p [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{p[0], p[1], p[2]}
}

// configToJSON converts the agent settings snapshot for DB storage.
func configToJSON(cfg map[string]any) datatypes.JSON {
	if len(cfg) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToEngagement converts a core.Engagement to a GORM model.Engagement.
// core.Engagement.ID maps to GORM Engagement.UUID.
func CoreToEngagement(e core.Engagement) model.Engagement {
	return model.Engagement{
		UUID:      e.ID,
		Side:      e.Side,
		StartTime: e.StartTime,
		Config:    configToJSON(e.Config),
	}
}

// CloseEngagement stamps the end of an engagement.
func CloseEngagement(e *model.Engagement, end time.Time, lastTick uint) {
	e.EndTime = &end
	e.EndTick = lastTick
}

// CoreToControlState converts a core.ControlRecord to a GORM model.ControlState.
func CoreToControlState(engagementID uint, r core.ControlRecord) model.ControlState {
	return model.ControlState{
		EngagementID: engagementID,
		Tick:         r.Tick,
		SimTime:      r.SimTime,
		AircraftID:   r.AircraftID,
		Phase:        r.Phase,
		Position:     geo.Point(vec(r.Position)),
		Roll:         r.Roll,
		Pitch:        r.Pitch,
		Yaw:          r.Yaw,
		AltitudeBin:  r.Action[0],
		HeadingBin:   r.Action[1],
		SpeedBin:     r.Action[2],
		Aileron:      r.Control[0],
		Elevator:     r.Control[1],
		Rudder:       r.Control[2],
		Throttle:     r.Control[3],
	}
}

// CoreToThreatAssessment converts a core.ThreatRecord to a GORM model.ThreatAssessment.
func CoreToThreatAssessment(engagementID uint, r core.ThreatRecord) model.ThreatAssessment {
	return model.ThreatAssessment{
		EngagementID:      engagementID,
		Tick:              r.Tick,
		SimTime:           r.SimTime,
		AircraftID:        r.AircraftID,
		ThreatID:          r.ThreatID,
		Distance:          r.Distance,
		Facing:            r.Facing,
		AheadOfThreatNose: r.AheadOfThreatNose,
		Alignment:         r.Alignment,
		Trend:             r.Trend,
		EvadePoint:        geo.Point(vec(r.EvadePoint)),
		Expired:           r.Expired,
	}
}

// CoreToPhaseChange converts a core.PhaseRecord to a GORM model.PhaseChange.
func CoreToPhaseChange(engagementID uint, r core.PhaseRecord) model.PhaseChange {
	return model.PhaseChange{
		EngagementID: engagementID,
		Tick:         r.Tick,
		SimTime:      r.SimTime,
		AircraftID:   r.AircraftID,
		FromPhase:    r.From,
		ToPhase:      r.To,
		Reason:       r.Reason,
	}
}

// CoreToWeaponLaunch converts a core.LaunchRecord to a GORM model.WeaponLaunch.
func CoreToWeaponLaunch(engagementID uint, r core.LaunchRecord) model.WeaponLaunch {
	return model.WeaponLaunch{
		EngagementID: engagementID,
		Tick:         r.Tick,
		SimTime:      r.SimTime,
		AircraftID:   r.AircraftID,
		Weapon:       string(r.Weapon),
		TargetID:     r.TargetID,
		Range:        r.Range,
	}
}

// TrackToAircraftTrack builds a track row from the positions of the
// control records of one aircraft. Fewer than two records is an error.
func TrackToAircraftTrack(engagementID uint, aircraftID string, records []core.ControlRecord) (model.AircraftTrack, error) {
	path := make([]mgl64.Vec3, len(records))
	for i, r := range records {
		path[i] = vec(r.Position)
	}
	ls, err := geo.TrackLineString(path)
	if err != nil {
		return model.AircraftTrack{}, err
	}
	return model.AircraftTrack{
		EngagementID: engagementID,
		AircraftID:   aircraftID,
		FirstTick:    records[0].Tick,
		LastTick:     records[len(records)-1].Tick,
		Path:         ls,
	}, nil
}
