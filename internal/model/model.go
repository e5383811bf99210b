package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&PilotInfo{},
	&Engagement{},
	&ControlState{},
	&ThreatAssessment{},
	&PhaseChange{},
	&WeaponLaunch{},
	&AircraftTrack{},
}

// PilotInfo holds a single row describing the recorder install
type PilotInfo struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
	Version     string `json:"version" gorm:"size:64"`
}

func (*PilotInfo) TableName() string {
	return "pilot_infos"
}

// Engagement is one recorded run of the agent
type Engagement struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	UUID      string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	Side      string         `json:"side" gorm:"size:16"`
	StartTime time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_engagement_start"`
	EndTime   *time.Time     `json:"endTime" gorm:"type:timestamptz"`
	EndTick   uint           `json:"endTick"`
	Config    datatypes.JSON `json:"config"` // agent settings snapshot
}

func (*Engagement) TableName() string {
	return "engagements"
}

// ControlState is one aircraft's command for one tick
type ControlState struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	EngagementID uint       `json:"engagementId" gorm:"index:idx_control_engagement_tick,priority:1"`
	Engagement   Engagement `gorm:"foreignkey:EngagementID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick         uint       `json:"tick" gorm:"index:idx_control_engagement_tick,priority:2"`
	SimTime      float64    `json:"simTime"`
	AircraftID   string     `json:"aircraftId" gorm:"size:64;index:idx_control_aircraft"`
	Phase        string     `json:"phase" gorm:"size:16"`
	Position     geom.Point `json:"position" gorm:"type:geometry"` // altitude in Z
	Roll         float64    `json:"roll"`
	Pitch        float64    `json:"pitch"`
	Yaw          float64    `json:"yaw"`
	AltitudeBin  int        `json:"altitudeBin"`
	HeadingBin   int        `json:"headingBin"`
	SpeedBin     int        `json:"speedBin"`
	Aileron      float64    `json:"aileron"`
	Elevator     float64    `json:"elevator"`
	Rudder       float64    `json:"rudder"`
	Throttle     float64    `json:"throttle"`
}

func (*ControlState) TableName() string {
	return "control_states"
}

// ThreatAssessment is one threat evaluated against one aircraft
type ThreatAssessment struct {
	ID                uint       `json:"id" gorm:"primarykey"`
	EngagementID      uint       `json:"engagementId" gorm:"index:idx_threat_engagement_tick,priority:1"`
	Engagement        Engagement `gorm:"foreignkey:EngagementID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick              uint       `json:"tick" gorm:"index:idx_threat_engagement_tick,priority:2"`
	SimTime           float64    `json:"simTime"`
	AircraftID        string     `json:"aircraftId" gorm:"size:64"`
	ThreatID          string     `json:"threatId" gorm:"size:64;index:idx_threat_id"`
	Distance          float64    `json:"distance"`
	Facing            bool       `json:"facing"`
	AheadOfThreatNose bool       `json:"aheadOfThreatNose"`
	Alignment         float64    `json:"alignment"`
	Trend             string     `json:"trend" gorm:"size:16"`
	EvadePoint        geom.Point `json:"evadePoint" gorm:"type:geometry"`
	Expired           bool       `json:"expired" gorm:"default:false"`
}

func (*ThreatAssessment) TableName() string {
	return "threat_assessments"
}

// PhaseChange marks a tactical phase transition of one aircraft
type PhaseChange struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	EngagementID uint       `json:"engagementId" gorm:"index:idx_phase_engagement"`
	Engagement   Engagement `gorm:"foreignkey:EngagementID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick         uint       `json:"tick"`
	SimTime      float64    `json:"simTime"`
	AircraftID   string     `json:"aircraftId" gorm:"size:64"`
	FromPhase    string     `json:"from" gorm:"size:16"`
	ToPhase      string     `json:"to" gorm:"size:16"`
	Reason       string     `json:"reason" gorm:"size:64"`
}

func (*PhaseChange) TableName() string {
	return "phase_changes"
}

// WeaponLaunch is one launch request
type WeaponLaunch struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	EngagementID uint       `json:"engagementId" gorm:"index:idx_launch_engagement"`
	Engagement   Engagement `gorm:"foreignkey:EngagementID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick         uint       `json:"tick"`
	SimTime      float64    `json:"simTime"`
	AircraftID   string     `json:"aircraftId" gorm:"size:64"`
	Weapon       string     `json:"weapon" gorm:"size:32"`
	TargetID     string     `json:"targetId" gorm:"size:64"`
	Range        float64    `json:"range"`
}

func (*WeaponLaunch) TableName() string {
	return "weapon_launches"
}

// AircraftTrack is the flown path of one aircraft, written when the
// engagement ends
type AircraftTrack struct {
	ID           uint            `json:"id" gorm:"primarykey"`
	EngagementID uint            `json:"engagementId" gorm:"uniqueIndex:idx_track_engagement_aircraft,priority:1"`
	Engagement   Engagement      `gorm:"foreignkey:EngagementID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	AircraftID   string          `json:"aircraftId" gorm:"size:64;uniqueIndex:idx_track_engagement_aircraft,priority:2"`
	FirstTick    uint            `json:"firstTick"`
	LastTick     uint            `json:"lastTick"`
	Path         geom.LineString `json:"path" gorm:"type:geometry"`
}

func (*AircraftTrack) TableName() string {
	return "aircraft_tracks"
}
