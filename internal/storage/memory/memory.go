// internal/storage/memory/memory.go
package memory

import (
	"sort"
	"sync"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/storage"
	"github.com/hddf2/pilot/pkg/core"
)

// AircraftRecord groups everything recorded for one aircraft
type AircraftRecord struct {
	AircraftID string
	Controls   []core.ControlRecord
	Threats    []core.ThreatRecord
	Phases     []core.PhaseRecord
	Launches   []core.LaunchRecord
}

// Backend keeps an engagement in memory and exports it to JSON when it ends
type Backend struct {
	cfg        config.MemoryConfig
	engagement *core.Engagement
	aircraft   map[string]*AircraftRecord
	lastTick   uint

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		aircraft: make(map[string]*AircraftRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartEngagement begins recording and drops anything from a previous run
func (b *Backend) StartEngagement(e *core.Engagement) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.engagement = e
	b.aircraft = make(map[string]*AircraftRecord)
	b.lastTick = 0
	b.lastExportPath = ""
	return nil
}

// EndEngagement exports the engagement. The records stay readable until
// the next StartEngagement.
func (b *Backend) EndEngagement() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.engagement == nil {
		return storage.ErrNoEngagement
	}
	err := b.exportJSON()
	b.engagement = nil
	return err
}

// ExportedFilePath returns the path of the last export
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) record(id string, tick uint) (*AircraftRecord, error) {
	if b.engagement == nil {
		return nil, storage.ErrNoEngagement
	}
	rec, ok := b.aircraft[id]
	if !ok {
		rec = &AircraftRecord{AircraftID: id}
		b.aircraft[id] = rec
	}
	if tick > b.lastTick {
		b.lastTick = tick
	}
	return rec, nil
}

// RecordControl records one tick's command
func (b *Backend) RecordControl(r *core.ControlRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.record(r.AircraftID, r.Tick)
	if err != nil {
		return err
	}
	rec.Controls = append(rec.Controls, *r)
	return nil
}

// RecordThreat records a threat assessment
func (b *Backend) RecordThreat(r *core.ThreatRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.record(r.AircraftID, r.Tick)
	if err != nil {
		return err
	}
	rec.Threats = append(rec.Threats, *r)
	return nil
}

// RecordPhase records a phase change
func (b *Backend) RecordPhase(r *core.PhaseRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.record(r.AircraftID, r.Tick)
	if err != nil {
		return err
	}
	rec.Phases = append(rec.Phases, *r)
	return nil
}

// RecordLaunch records a weapon launch
func (b *Backend) RecordLaunch(r *core.LaunchRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.record(r.AircraftID, r.Tick)
	if err != nil {
		return err
	}
	rec.Launches = append(rec.Launches, *r)
	return nil
}

// Aircraft returns a copy of the records of one aircraft
func (b *Backend) Aircraft(id string) (AircraftRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.aircraft[id]
	if !ok {
		return AircraftRecord{}, false
	}
	return AircraftRecord{
		AircraftID: rec.AircraftID,
		Controls:   append([]core.ControlRecord(nil), rec.Controls...),
		Threats:    append([]core.ThreatRecord(nil), rec.Threats...),
		Phases:     append([]core.PhaseRecord(nil), rec.Phases...),
		Launches:   append([]core.LaunchRecord(nil), rec.Launches...),
	}, true
}

// AircraftIDs returns the recorded aircraft ids in order
func (b *Backend) AircraftIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sortedIDs()
}

func (b *Backend) sortedIDs() []string {
	ids := make([]string, 0, len(b.aircraft))
	for id := range b.aircraft {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
