package recorder

import (
	"errors"
	"fmt"

	"github.com/hddf2/pilot/internal/dispatcher"
	"github.com/hddf2/pilot/internal/influx"
	"github.com/hddf2/pilot/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

func payload[T any](r dispatcher.Record) (*T, error) {
	p, ok := r.Payload.(*T)
	if !ok || p == nil {
		var zero T
		return nil, fmt.Errorf("%s: expected *%T, got %T", r.Kind, zero, r.Payload)
	}
	return p, nil
}

func (m *Manager) handleStart(e dispatcher.Record) error {
	eng, err := payload[core.Engagement](e)
	if err != nil {
		return err
	}
	if err := m.backend.StartEngagement(eng); err != nil {
		return fmt.Errorf("failed to start engagement: %w", err)
	}
	m.engagement.Store(eng)
	m.deps.LogManager.WriteLog("recorder:start", fmt.Sprintf("Engagement %s started", eng.ID), "INFO")
	return nil
}

// point writes to Influx when configured and an engagement is running.
func (m *Manager) point(build func(*core.Engagement) *influxdb2_write.Point) error {
	if m.deps.Influx == nil {
		return nil
	}
	eng := m.engagement.Load()
	if eng == nil {
		return nil
	}
	return m.deps.Influx.WritePoint(build(eng))
}

func (m *Manager) handleControl(e dispatcher.Record) error {
	r, err := payload[core.ControlRecord](e)
	if err != nil {
		return err
	}
	return errors.Join(
		m.backend.RecordControl(r),
		m.point(func(eng *core.Engagement) *influxdb2_write.Point { return influx.ControlPoint(eng, r) }),
	)
}

func (m *Manager) handleThreat(e dispatcher.Record) error {
	r, err := payload[core.ThreatRecord](e)
	if err != nil {
		return err
	}
	return errors.Join(
		m.backend.RecordThreat(r),
		m.point(func(eng *core.Engagement) *influxdb2_write.Point { return influx.ThreatPoint(eng, r) }),
	)
}

func (m *Manager) handlePhase(e dispatcher.Record) error {
	r, err := payload[core.PhaseRecord](e)
	if err != nil {
		return err
	}
	return m.backend.RecordPhase(r)
}

func (m *Manager) handleLaunch(e dispatcher.Record) error {
	r, err := payload[core.LaunchRecord](e)
	if err != nil {
		return err
	}
	return errors.Join(
		m.backend.RecordLaunch(r),
		m.point(func(eng *core.Engagement) *influxdb2_write.Point { return influx.LaunchPoint(eng, r) }),
	)
}
