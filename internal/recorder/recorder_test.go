package recorder

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/dispatcher"
	"github.com/hddf2/pilot/internal/influx"
	"github.com/hddf2/pilot/internal/storage"
	"github.com/hddf2/pilot/internal/tactics"
	"github.com/hddf2/pilot/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check.
var _ tactics.Sink = (*Manager)(nil)

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *mockLogger) Debug(string, ...any) {}
func (l *mockLogger) Warn(string, ...any)  {}
func (l *mockLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// mockBackend implements storage.Backend for testing
type mockBackend struct {
	mu sync.Mutex

	started  *core.Engagement
	ended    bool
	controls []core.ControlRecord
	threats  []core.ThreatRecord
	phases   []core.PhaseRecord
	launches []core.LaunchRecord
	startErr error
}

func (b *mockBackend) Init() error  { return nil }
func (b *mockBackend) Close() error { return nil }

func (b *mockBackend) StartEngagement(e *core.Engagement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	b.started = e
	return nil
}

func (b *mockBackend) EndEngagement() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started == nil {
		return storage.ErrNoEngagement
	}
	b.ended = true
	return nil
}

func (b *mockBackend) check() error {
	if b.started == nil || b.ended {
		return storage.ErrNoEngagement
	}
	return nil
}

func (b *mockBackend) RecordControl(r *core.ControlRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	b.controls = append(b.controls, *r)
	return nil
}

func (b *mockBackend) RecordThreat(r *core.ThreatRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	b.threats = append(b.threats, *r)
	return nil
}

func (b *mockBackend) RecordPhase(r *core.PhaseRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	b.phases = append(b.phases, *r)
	return nil
}

func (b *mockBackend) RecordLaunch(r *core.LaunchRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	b.launches = append(b.launches, *r)
	return nil
}

func setup(t *testing.T, deps Dependencies) (*Manager, *mockBackend, *mockLogger) {
	t.Helper()
	log := &mockLogger{}
	deps.DispatchLogger = log
	backend := &mockBackend{}
	m := NewManager(deps, backend)
	t.Cleanup(func() { _ = m.EndEngagement() })
	return m, backend, log
}

func TestRegisterHandlers(t *testing.T) {
	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	m := NewManager(Dependencies{}, &mockBackend{})
	require.NoError(t, m.RegisterHandlers(d))
	for _, kind := range []string{KindStart, KindControl, KindThreat, KindPhase, KindLaunch} {
		assert.True(t, d.Handles(kind), kind)
	}

	// a second manager cannot take the same routes
	other := NewManager(Dependencies{}, &mockBackend{})
	assert.ErrorIs(t, other.RegisterHandlers(d), dispatcher.ErrDuplicateKind)
}

func TestNoEngagement(t *testing.T) {
	m := NewManager(Dependencies{}, &mockBackend{})
	assert.ErrorIs(t, m.EndEngagement(), ErrNoEngagement)

	// sink calls outside an engagement are dropped
	m.RecordControl(core.ControlRecord{Tick: 1})
	assert.Equal(t, uint(1), m.Tick())
	assert.Equal(t, uint64(1), m.Dropped())
}

func TestStartWhileRunning(t *testing.T) {
	m, _, _ := setup(t, Dependencies{})
	_, err := m.StartEngagement("blue", nil, time.Now())
	require.NoError(t, err)

	_, err = m.StartEngagement("blue", nil, time.Now())
	assert.ErrorIs(t, err, ErrEngagementRunning)
}

func TestConsecutiveEngagements(t *testing.T) {
	m, backend, log := setup(t, Dependencies{})

	var ids []string
	for round := 1; round <= 2; round++ {
		backend.mu.Lock()
		backend.started, backend.ended = nil, false
		backend.mu.Unlock()

		eng, err := m.StartEngagement("blue", nil, time.Now())
		require.NoError(t, err, "round %d", round)
		ids = append(ids, eng.ID)

		m.RecordControl(core.ControlRecord{Tick: uint(round), AircraftID: "blue-1"})
		m.RecordLaunch(core.LaunchRecord{Tick: uint(round), AircraftID: "blue-1", Weapon: core.WeaponMidRange})
		require.NoError(t, m.EndEngagement(), "round %d", round)
		assert.Zero(t, m.Dropped(), "round %d", round)
	}

	assert.NotEqual(t, ids[0], ids[1])
	assert.Len(t, backend.controls, 2)
	assert.Len(t, backend.launches, 2)
	assert.Zero(t, log.errorCount())
}

func TestEngagementFlow(t *testing.T) {
	m, backend, log := setup(t, Dependencies{})
	start := time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("x", 3600))

	eng, err := m.StartEngagement("blue", tactics.DefaultConfig(), start)
	require.NoError(t, err)
	assert.Len(t, eng.ID, 36)
	assert.Equal(t, start.UTC(), eng.StartTime)
	assert.NotEmpty(t, eng.Config)
	assert.Equal(t, eng.ID, m.EngagementID())
	assert.Same(t, eng, backend.started)

	for tick := uint(1); tick <= 50; tick++ {
		m.RecordControl(core.ControlRecord{Tick: tick, SimTime: float64(tick) * 0.5, AircraftID: "blue-1"})
		m.RecordThreat(core.ThreatRecord{Tick: tick, AircraftID: "blue-1", ThreatID: "m-1"})
	}
	m.RecordPhase(core.PhaseRecord{Tick: 10, AircraftID: "blue-1", From: "patrol", To: "evade"})
	m.RecordLaunch(core.LaunchRecord{Tick: 20, AircraftID: "blue-1", Weapon: core.WeaponMidRange, TargetID: "red-1"})

	assert.Equal(t, uint(50), m.Tick())
	assert.Equal(t, 25.0, m.SimTime())

	require.NoError(t, m.EndEngagement())
	assert.True(t, backend.ended)
	assert.Empty(t, m.EngagementID())

	assert.Len(t, backend.controls, 50)
	assert.Len(t, backend.threats, 50)
	assert.Len(t, backend.phases, 1)
	assert.Len(t, backend.launches, 1)
	assert.Equal(t, uint(50), backend.controls[49].Tick, "per-command order is kept")
	assert.Zero(t, log.errorCount())
	assert.Zero(t, m.Dropped())

	// the engagement is over
	m.RecordControl(core.ControlRecord{Tick: 51})
	assert.Equal(t, uint64(1), m.Dropped())
	assert.Len(t, backend.controls, 50)
}

func TestStartEngagementBackendError(t *testing.T) {
	m, backend, _ := setup(t, Dependencies{})
	backend.startErr = errors.New("db down")

	_, err := m.StartEngagement("blue", nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, m.EngagementID())
	assert.ErrorIs(t, m.EndEngagement(), ErrNoEngagement)

	// a later start gets a fresh dispatcher
	backend.startErr = nil
	_, err = m.StartEngagement("blue", nil, time.Now())
	assert.NoError(t, err)
}

func TestRecordsWithoutEngagementAreLogged(t *testing.T) {
	log := &mockLogger{}
	d, err := dispatcher.New(log)
	require.NoError(t, err)
	m := NewManager(Dependencies{}, &mockBackend{})
	require.NoError(t, m.RegisterHandlers(d))

	require.NoError(t, d.Dispatch(dispatcher.Record{Kind: KindControl, Tick: 1, Payload: &core.ControlRecord{Tick: 1}}))
	d.Close()

	assert.Equal(t, 1, log.errorCount())
}

func TestWrongPayloadType(t *testing.T) {
	m, _, _ := setup(t, Dependencies{})

	err := m.handleControl(dispatcher.Record{Kind: KindControl, Payload: core.ControlRecord{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected *core.ControlRecord")

	assert.Error(t, m.handleStart(dispatcher.Record{Kind: KindStart, Payload: (*core.Engagement)(nil)}))
}

func TestInfluxPoints(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "points.lp.gz")
	ix := influx.NewManager(zerolog.Nop(), config.InfluxConfig{Enabled: true, Protocol: "http", Host: "127.0.0.1", Port: "1"}, backup)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ix.Connect(ctx))

	m, _, _ := setup(t, Dependencies{Influx: ix})
	_, err := m.StartEngagement("blue", nil, time.Now())
	require.NoError(t, err)

	m.RecordControl(core.ControlRecord{Tick: 1, AircraftID: "blue-1"})
	m.RecordThreat(core.ThreatRecord{Tick: 1, AircraftID: "blue-1", ThreatID: "m-1"})
	m.RecordPhase(core.PhaseRecord{Tick: 1, AircraftID: "blue-1"})
	m.RecordLaunch(core.LaunchRecord{Tick: 1, AircraftID: "blue-1", Weapon: core.WeaponShortRange})
	require.NoError(t, m.EndEngagement())
	require.NoError(t, ix.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3, "phase changes are not sent to Influx")
}

func TestSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		input any
		isNil bool
		key   string
	}{
		{"nil", nil, true, ""},
		{"map passthrough", map[string]any{"a": 1}, false, "a"},
		{"struct", struct {
			Window int `json:"window"`
		}{40}, false, "window"},
		{"not an object", []int{1, 2}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Snapshot(tt.input)
			if tt.isNil {
				assert.Nil(t, got)
				return
			}
			assert.Contains(t, got, tt.key)
		})
	}
}
