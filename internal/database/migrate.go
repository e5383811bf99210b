package database

import (
	"errors"
	"fmt"

	"github.com/hddf2/pilot/internal/model"
	"gorm.io/gorm"
)

// CopyEngagements copies every engagement in src that dst does not
// already hold, with its child rows. Each engagement is copied in its own
// transaction on dst. It returns the number of engagements copied.
func CopyEngagements(src, dst *gorm.DB) (int, error) {
	var engagements []model.Engagement
	if err := src.Order("id").Find(&engagements).Error; err != nil {
		return 0, fmt.Errorf("error reading engagements: %w", err)
	}

	copied := 0
	for _, e := range engagements {
		var existing model.Engagement
		err := dst.Where("uuid = ?", e.UUID).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return copied, err
		}

		err = dst.Transaction(func(tx *gorm.DB) error {
			oldID := e.ID
			e.ID = 0
			if err := tx.Create(&e).Error; err != nil {
				return err
			}
			if err := copyRows(src, tx, oldID, func(r *model.ControlState) { r.ID, r.EngagementID = 0, e.ID }); err != nil {
				return fmt.Errorf("control_states: %w", err)
			}
			if err := copyRows(src, tx, oldID, func(r *model.ThreatAssessment) { r.ID, r.EngagementID = 0, e.ID }); err != nil {
				return fmt.Errorf("threat_assessments: %w", err)
			}
			if err := copyRows(src, tx, oldID, func(r *model.PhaseChange) { r.ID, r.EngagementID = 0, e.ID }); err != nil {
				return fmt.Errorf("phase_changes: %w", err)
			}
			if err := copyRows(src, tx, oldID, func(r *model.WeaponLaunch) { r.ID, r.EngagementID = 0, e.ID }); err != nil {
				return fmt.Errorf("weapon_launches: %w", err)
			}
			if err := copyRows(src, tx, oldID, func(r *model.AircraftTrack) { r.ID, r.EngagementID = 0, e.ID }); err != nil {
				return fmt.Errorf("aircraft_tracks: %w", err)
			}
			return nil
		})
		if err != nil {
			return copied, fmt.Errorf("error copying engagement %s: %w", e.UUID, err)
		}
		copied++
	}
	return copied, nil
}

func copyRows[M any](src, dst *gorm.DB, oldID uint, rekey func(*M)) error {
	var rows []M
	if err := src.Omit("Engagement").Where("engagement_id = ?", oldID).Order("id").Find(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rekey(&rows[i])
	}
	return dst.Omit("Engagement").CreateInBatches(rows, 1000).Error
}
