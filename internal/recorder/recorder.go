// Package recorder forwards what the agent decides each tick to the
// storage backend and Influx through the dispatcher, so the tick never
// waits on I/O.
package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hddf2/pilot/internal/dispatcher"
	"github.com/hddf2/pilot/internal/influx"
	"github.com/hddf2/pilot/internal/logging"
	"github.com/hddf2/pilot/internal/storage"
	"github.com/hddf2/pilot/pkg/core"
	"github.com/rs/zerolog"
)

// Record kinds routed through the dispatcher.
const (
	KindStart   = "engagement.start"
	KindControl = "control"
	KindThreat  = "threat"
	KindPhase   = "phase"
	KindLaunch  = "launch"
)

var (
	ErrNoEngagement      = errors.New("no engagement running")
	ErrEngagementRunning = errors.New("engagement already running")
)

// Dependencies holds all dependencies for the recorder.
type Dependencies struct {
	LogManager *logging.SlogManager
	Influx     *influx.Manager // nil disables Influx points
	// DispatchLogger is what each engagement's dispatcher logs through.
	// Nil discards dispatcher logs.
	DispatchLogger dispatcher.Logger
}

// Manager implements tactics.Sink. Every engagement gets its own
// dispatcher, built at StartEngagement and drained at EndEngagement.
// Methods other than the handlers must be called from one goroutine.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	d       *dispatcher.Dispatcher

	engagement atomic.Pointer[core.Engagement]
	tick       atomic.Uint64
	simTime    atomic.Uint64 // float64 bits
	dropped    atomic.Uint64
}

// NewManager creates a recorder writing to backend.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.DispatchLogger == nil {
		deps.DispatchLogger = logging.NewDispatcherLogger(zerolog.Nop())
	}
	return &Manager{deps: deps, backend: backend}
}

// RegisterHandlers routes every record kind on d to the manager.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) error {
	// the start runs inline since every later record belongs to it
	return errors.Join(
		d.Register(KindStart, m.handleStart, dispatcher.Traced()),
		d.Register(KindControl, m.handleControl, dispatcher.Queue(10000)),
		d.Register(KindThreat, m.handleThreat, dispatcher.Queue(10000)),
		d.Register(KindPhase, m.handlePhase, dispatcher.Queue(1000), dispatcher.Lossless(), dispatcher.Traced()),
		d.Register(KindLaunch, m.handleLaunch, dispatcher.Queue(1000), dispatcher.Lossless(), dispatcher.Traced()),
	)
}

// StartEngagement assigns a new engagement id, builds the engagement's
// dispatcher and opens the engagement on the backend.
func (m *Manager) StartEngagement(side string, settings any, start time.Time) (*core.Engagement, error) {
	if m.d != nil {
		return nil, ErrEngagementRunning
	}
	d, err := dispatcher.New(m.deps.DispatchLogger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	if err := m.RegisterHandlers(d); err != nil {
		d.Close()
		return nil, fmt.Errorf("registering handlers: %w", err)
	}

	e := &core.Engagement{
		ID:        uuid.NewString(),
		Side:      side,
		StartTime: start.UTC(),
		Config:    Snapshot(settings),
	}
	if err := d.Dispatch(dispatcher.Record{Kind: KindStart, Payload: e}); err != nil {
		d.Close()
		return nil, err
	}
	m.dropped.Store(0)
	m.d = d
	return e, nil
}

// EndEngagement drains the engagement's dispatcher and closes the
// engagement on the backend. Records arriving afterwards are dropped
// until the next StartEngagement.
func (m *Manager) EndEngagement() error {
	if m.d == nil {
		return ErrNoEngagement
	}
	m.d.Close()
	m.d = nil
	m.engagement.Store(nil)

	if n := m.dropped.Load(); n > 0 {
		m.deps.LogManager.WriteLog("recorder:EndEngagement", fmt.Sprintf("%d records were not recorded", n), "WARN")
	}
	return m.backend.EndEngagement()
}

// EngagementID returns the running engagement id, or "".
func (m *Manager) EngagementID() string {
	if e := m.engagement.Load(); e != nil {
		return e.ID
	}
	return ""
}

// Tick returns the tick of the latest control record.
func (m *Manager) Tick() uint {
	return uint(m.tick.Load())
}

// SimTime returns the sim time of the latest control record.
func (m *Manager) SimTime() float64 {
	return math.Float64frombits(m.simTime.Load())
}

// Dropped returns the number of records of the current or last engagement
// that were not recorded, on a full queue or outside an engagement.
func (m *Manager) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *Manager) dispatch(kind string, tick uint, payload any) {
	if m.d == nil {
		m.dropped.Add(1)
		return
	}
	if err := m.d.Dispatch(dispatcher.Record{Kind: kind, Tick: tick, Payload: payload}); err != nil {
		// the dispatcher already warns on its first full-queue drop
		if m.dropped.Add(1) == 1 && !errors.Is(err, dispatcher.ErrQueueFull) {
			m.deps.LogManager.WriteLog("recorder:dispatch", fmt.Sprintf("dropping %s: %v", kind, err), "WARN")
		}
	}
}

// RecordControl queues a control record.
func (m *Manager) RecordControl(r core.ControlRecord) {
	m.tick.Store(uint64(r.Tick))
	m.simTime.Store(math.Float64bits(r.SimTime))
	m.dispatch(KindControl, r.Tick, &r)
}

// RecordThreat queues a threat record.
func (m *Manager) RecordThreat(r core.ThreatRecord) {
	m.dispatch(KindThreat, r.Tick, &r)
}

// RecordPhase queues a phase change.
func (m *Manager) RecordPhase(r core.PhaseRecord) {
	m.dispatch(KindPhase, r.Tick, &r)
}

// RecordLaunch queues a launch.
func (m *Manager) RecordLaunch(r core.LaunchRecord) {
	m.dispatch(KindLaunch, r.Tick, &r)
}

// Snapshot converts settings to a generic map through their JSON form.
// Values that do not encode to a JSON object give nil.
func Snapshot(settings any) map[string]any {
	if settings == nil {
		return nil
	}
	if m, ok := settings.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
