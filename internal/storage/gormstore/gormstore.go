// Package gormstore implements storage.Backend on GORM with internal
// queues and a background writer goroutine. It runs on Postgres/PostGIS
// or on an in-memory SQLite database that is dumped to disk.
package gormstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hddf2/pilot/internal/database"
	"github.com/hddf2/pilot/internal/logging"
	"github.com/hddf2/pilot/internal/model"
	"github.com/hddf2/pilot/internal/model/convert"
	"github.com/hddf2/pilot/internal/queue"
	"github.com/hddf2/pilot/internal/storage"
	"github.com/hddf2/pilot/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = time.Second
	defaultBatchSize     = 2000
	// pending rows kept per table while the DB is failing
	queueLimit = 500000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB // nil connects to Postgres on Init
	Postgres      database.PostgresConfig
	LogManager    *logging.SlogManager
	Version       string
	FlushInterval time.Duration
	BatchSize     int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Controls *queue.Queue[model.ControlState]
	Threats  *queue.Queue[model.ThreatAssessment]
	Phases   *queue.Queue[model.PhaseChange]
	Launches *queue.Queue[model.WeaponLaunch]
}

func newQueues() *queues {
	return &queues{
		Controls: queue.NewBounded[model.ControlState](queueLimit),
		Threats:  queue.NewBounded[model.ThreatAssessment](queueLimit),
		Phases:   queue.NewBounded[model.PhaseChange](queueLimit),
		Launches: queue.NewBounded[model.WeaponLaunch](queueLimit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	engagementID atomic.Uint64

	mu         sync.Mutex // engagement, tracks
	engagement *model.Engagement
	tracks     map[string][]core.ControlRecord
	lastTick   uint

	writeMu  sync.Mutex // serializes flushes
	stopChan chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
		tracks: make(map[string][]core.ControlRecord),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init connects if needed, migrates the schema, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.deps.LogManager.WriteLog("gormstore:Init", "Migrating schema", "INFO")
	if err := database.Migrate(b.deps.DB, b.deps.Version); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.wg.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the writer and flushes what is still queued.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
	}
	if b.deps.DB == nil {
		return nil
	}
	return b.flush()
}

// StartEngagement inserts the engagement row synchronously so records can
// reference it.
func (b *Backend) StartEngagement(e *core.Engagement) error {
	if b.deps.DB == nil {
		return errors.New("gormstore: not initialized")
	}
	row := convert.CoreToEngagement(*e)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert engagement: %w", err)
	}

	b.mu.Lock()
	b.engagement = &row
	b.tracks = make(map[string][]core.ControlRecord)
	b.lastTick = 0
	b.mu.Unlock()

	b.engagementID.Store(uint64(row.ID))
	b.deps.LogManager.WriteLog("gormstore:StartEngagement", fmt.Sprintf("Engagement %s stored with id %d", e.ID, row.ID), "INFO")
	return nil
}

// EndEngagement flushes the queues, writes one track per aircraft and
// stamps the engagement end.
func (b *Backend) EndEngagement() error {
	b.mu.Lock()
	eng := b.engagement
	tracks := b.tracks
	lastTick := b.lastTick
	b.engagement = nil
	b.tracks = make(map[string][]core.ControlRecord)
	b.mu.Unlock()

	if eng == nil {
		return storage.ErrNoEngagement
	}
	b.engagementID.Store(0)

	var errs []error
	if err := b.flush(); err != nil {
		errs = append(errs, err)
	}

	rows := make([]model.AircraftTrack, 0, len(tracks))
	for id, recs := range tracks {
		tr, err := convert.TrackToAircraftTrack(eng.ID, id, recs)
		if err != nil {
			continue
		}
		rows = append(rows, tr)
	}
	if len(rows) > 0 {
		if err := b.deps.DB.Omit("Engagement").Create(&rows).Error; err != nil {
			errs = append(errs, fmt.Errorf("failed to insert tracks: %w", err))
		}
	}

	convert.CloseEngagement(eng, time.Now().UTC(), lastTick)
	err := b.deps.DB.Model(eng).Updates(map[string]any{"end_time": eng.EndTime, "end_tick": eng.EndTick}).Error
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to close engagement: %w", err))
	}
	return errors.Join(errs...)
}

func (b *Backend) current(tick uint) (uint, error) {
	id := uint(b.engagementID.Load())
	if id == 0 {
		return 0, storage.ErrNoEngagement
	}
	b.mu.Lock()
	if tick > b.lastTick {
		b.lastTick = tick
	}
	b.mu.Unlock()
	return id, nil
}

// RecordControl queues a control state and extends the aircraft track.
func (b *Backend) RecordControl(r *core.ControlRecord) error {
	id, err := b.current(r.Tick)
	if err != nil {
		return err
	}
	b.queues.Controls.Push(convert.CoreToControlState(id, *r))

	b.mu.Lock()
	b.tracks[r.AircraftID] = append(b.tracks[r.AircraftID], core.ControlRecord{Tick: r.Tick, Position: r.Position})
	b.mu.Unlock()
	return nil
}

// RecordThreat queues a threat assessment.
func (b *Backend) RecordThreat(r *core.ThreatRecord) error {
	id, err := b.current(r.Tick)
	if err != nil {
		return err
	}
	b.queues.Threats.Push(convert.CoreToThreatAssessment(id, *r))
	return nil
}

// RecordPhase queues a phase change.
func (b *Backend) RecordPhase(r *core.PhaseRecord) error {
	id, err := b.current(r.Tick)
	if err != nil {
		return err
	}
	b.queues.Phases.Push(convert.CoreToPhaseChange(id, *r))
	return nil
}

// RecordLaunch queues a weapon launch.
func (b *Backend) RecordLaunch(r *core.LaunchRecord) error {
	id, err := b.current(r.Tick)
	if err != nil {
		return err
	}
	b.queues.Launches.Push(convert.CoreToWeaponLaunch(id, *r))
	return nil
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	return b.queues.Controls.Len() + b.queues.Threats.Len() + b.queues.Phases.Len() + b.queues.Launches.Len()
}

// writeQueue inserts everything queued in one transaction. Failed rows go
// back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, batchSize int) error {
	items := q.Drain(0)
	if len(items) == 0 {
		return nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Engagement").CreateInBatches(&items, batchSize).Error
	})
	if err != nil {
		q.Requeue(items)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	return nil
}

func (b *Backend) flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	db, n := b.deps.DB, b.deps.BatchSize
	return errors.Join(
		writeQueue(db, b.queues.Controls, "control_states", n),
		writeQueue(db, b.queues.Threats, "threat_assessments", n),
		writeQueue(db, b.queues.Phases, "phase_changes", n),
		writeQueue(db, b.queues.Launches, "weapon_launches", n),
	)
}

func (b *Backend) writeLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.flush(); err != nil {
				b.deps.LogManager.WriteLog(":DB:WRITER:", err.Error(), "ERROR")
			}
		}
	}
}
