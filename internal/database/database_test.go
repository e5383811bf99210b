package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hddf2/pilot/internal/model"
	"github.com/hddf2/pilot/internal/model/convert"
	"github.com/hddf2/pilot/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTemp(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := GetSqliteDB(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	require.NoError(t, Migrate(db, "test"))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedEngagement(t *testing.T, db *gorm.DB, id string) model.Engagement {
	t.Helper()
	e := convert.CoreToEngagement(core.Engagement{ID: id, Side: "blue", StartTime: time.Now().UTC()})
	require.NoError(t, db.Create(&e).Error)

	for tick := uint(1); tick <= 3; tick++ {
		cs := convert.CoreToControlState(e.ID, core.ControlRecord{
			Tick:       tick,
			AircraftID: "blue-1",
			Phase:      "patrol",
			Position:   [3]float64{float64(tick) * 240, 0, -3000},
		})
		require.NoError(t, db.Omit("Engagement").Create(&cs).Error)
	}
	ph := convert.CoreToPhaseChange(e.ID, core.PhaseRecord{Tick: 2, AircraftID: "blue-1", From: "approach", To: "patrol"})
	require.NoError(t, db.Omit("Engagement").Create(&ph).Error)
	return e
}

func TestPostgresConfigDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", Username: "u", Password: "p", Database: "pilot"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=pilot sslmode=disable", cfg.DSN())
}

func TestMigrate_CreatesInfoOnce(t *testing.T) {
	db := openTemp(t, "info.db")
	require.NoError(t, Migrate(db, "test"))

	var infos []model.PilotInfo
	require.NoError(t, db.Find(&infos).Error)
	require.Len(t, infos, 1)
	assert.Equal(t, "test", infos[0].Version)

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	db := openTemp(t, "geom.db")
	e := seedEngagement(t, db, "geom")

	var states []model.ControlState
	require.NoError(t, db.Where("engagement_id = ?", e.ID).Order("tick").Find(&states).Error)
	require.Len(t, states, 3)

	rec := convert.ControlStateToCore(states[2])
	assert.Equal(t, [3]float64{720, 0, -3000}, rec.Position)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db := openTemp(t, "live.db")
	seedEngagement(t, db, "dump")

	t.Run("no path", func(t *testing.T) {
		assert.ErrorIs(t, DumpMemoryDBToDisk(db, ""), ErrNoPath)
	})

	t.Run("replaces existing file", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "dump.db")
		require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))

		require.NoError(t, DumpMemoryDBToDisk(db, target))

		dumped, err := GetSqliteDB(target)
		require.NoError(t, err)
		var count int64
		require.NoError(t, dumped.Model(&model.ControlState{}).Count(&count).Error)
		assert.Equal(t, int64(3), count)
	})
}

func TestManager_DumpMemoryToDisk(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.DB = openTemp(t, "m.db")
	m.SqliteFilePath = filepath.Join(t.TempDir(), "out.db")

	require.NoError(t, m.DumpMemoryToDisk())
	_, err := os.Stat(m.SqliteFilePath)
	assert.NoError(t, err)
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt", "db"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = GetBackupDBPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCopyEngagements(t *testing.T) {
	src := openTemp(t, "src.db")
	dst := openTemp(t, "dst.db")

	// occupy id 1 in dst so the copy has to re-key
	seedEngagement(t, dst, "already-there")
	seedEngagement(t, src, "backup-1")

	n, err := CopyEngagements(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var copied model.Engagement
	require.NoError(t, dst.Where("uuid = ?", "backup-1").First(&copied).Error)
	assert.NotEqual(t, uint(1), copied.ID)

	var states int64
	require.NoError(t, dst.Model(&model.ControlState{}).Where("engagement_id = ?", copied.ID).Count(&states).Error)
	assert.Equal(t, int64(3), states)

	var phases []model.PhaseChange
	require.NoError(t, dst.Where("engagement_id = ?", copied.ID).Find(&phases).Error)
	require.Len(t, phases, 1)
	assert.Equal(t, "patrol", phases[0].ToPhase)

	// second run finds nothing new
	n, err = CopyEngagements(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
