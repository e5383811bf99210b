package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/hddf2/pilot/internal/model"
	"github.com/hddf2/pilot/internal/model/convert"
	"github.com/hddf2/pilot/pkg/core"
	"gorm.io/gorm"
)

// ErrEngagementNotFound is returned when no engagement has the given id.
var ErrEngagementNotFound = errors.New("engagement not found")

// Replay is a stored engagement read back as core records, each list in
// tick order.
type Replay struct {
	Engagement core.Engagement         `json:"engagement"`
	EndTime    *time.Time              `json:"endTime,omitempty"`
	EndTick    uint                    `json:"endTick"`
	Controls   []core.ControlRecord    `json:"controls"`
	Threats    []core.ThreatRecord     `json:"threats"`
	Phases     []core.PhaseRecord      `json:"phases"`
	Launches   []core.LaunchRecord     `json:"launches"`
	Tracks     map[string][][3]float64 `json:"tracks"`
}

// ListEngagements returns every stored engagement, newest first.
func ListEngagements(db *gorm.DB) ([]model.Engagement, error) {
	var out []model.Engagement
	if err := db.Order("start_time desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("error listing engagements: %w", err)
	}
	return out, nil
}

// LoadEngagement reads the engagement with the given id and all of its rows.
func LoadEngagement(db *gorm.DB, id string) (*Replay, error) {
	var e model.Engagement
	if err := db.Where("uuid = ?", id).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEngagementNotFound, id)
		}
		return nil, err
	}

	r := &Replay{
		Engagement: convert.EngagementToCore(e),
		EndTime:    e.EndTime,
		EndTick:    e.EndTick,
		Tracks:     make(map[string][][3]float64),
	}

	var err error
	if r.Controls, err = loadRows(db, e.ID, convert.ControlStateToCore); err != nil {
		return nil, fmt.Errorf("control_states: %w", err)
	}
	if r.Threats, err = loadRows(db, e.ID, convert.ThreatAssessmentToCore); err != nil {
		return nil, fmt.Errorf("threat_assessments: %w", err)
	}
	if r.Phases, err = loadRows(db, e.ID, convert.PhaseChangeToCore); err != nil {
		return nil, fmt.Errorf("phase_changes: %w", err)
	}
	if r.Launches, err = loadRows(db, e.ID, convert.WeaponLaunchToCore); err != nil {
		return nil, fmt.Errorf("weapon_launches: %w", err)
	}

	var tracks []model.AircraftTrack
	if err := db.Omit("Engagement").Where("engagement_id = ?", e.ID).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("aircraft_tracks: %w", err)
	}
	for _, t := range tracks {
		r.Tracks[t.AircraftID] = convert.AircraftTrackToCore(t)
	}
	return r, nil
}

func loadRows[M, R any](db *gorm.DB, engagementID uint, toCore func(M) R) ([]R, error) {
	var rows []M
	if err := db.Omit("Engagement").Where("engagement_id = ?", engagementID).Order("tick, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]R, len(rows))
	for i, row := range rows {
		out[i] = toCore(row)
	}
	return out, nil
}
