package gormstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/database"
	"github.com/hddf2/pilot/internal/logging"
	"gorm.io/gorm"
)

// SQLite wraps the GORM backend with an in-memory database that is
// periodically snapshotted to DumpPath with VACUUM INTO.
type SQLite struct {
	*Backend
	cfg      config.SQLiteConfig
	stopDump chan struct{}
	dumpDone chan struct{}
}

// NewSQLite creates the SQLite backend. An empty path keeps the database
// in memory.
func NewSQLite(path string, cfg config.SQLiteConfig, logManager *logging.SlogManager, version string) (*SQLite, error) {
	db, err := database.GetSqliteDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}
	return WrapSQLite(db, cfg, logManager, version), nil
}

// WrapSQLite builds the backend on an already open SQLite connection,
// such as the fallback opened by database.Manager.
func WrapSQLite(db *gorm.DB, cfg config.SQLiteConfig, logManager *logging.SlogManager, version string) *SQLite {
	return &SQLite{
		Backend: New(Dependencies{DB: db, LogManager: logManager, Version: version}),
		cfg:     cfg,
	}
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (s *SQLite) Init() error {
	if err := s.Backend.Init(); err != nil {
		return err
	}
	if s.cfg.DumpPath != "" && s.cfg.DumpInterval > 0 {
		s.stopDump = make(chan struct{})
		s.dumpDone = make(chan struct{})
		go s.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, flushes and writes a final dump.
func (s *SQLite) Close() error {
	if s.stopDump != nil {
		close(s.stopDump)
		<-s.dumpDone
		s.stopDump = nil
	}
	err := s.Backend.Close()
	if s.cfg.DumpPath != "" {
		err = errors.Join(err, s.Dump())
	}
	return err
}

// Dump snapshots the database to DumpPath.
func (s *SQLite) Dump() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return database.DumpMemoryDBToDisk(s.deps.DB, s.cfg.DumpPath)
}

func (s *SQLite) dumpLoop() {
	defer close(s.dumpDone)
	ticker := time.NewTicker(s.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopDump:
			return
		case <-ticker.C:
			start := time.Now()
			if err := s.Dump(); err != nil {
				s.deps.LogManager.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				s.deps.LogManager.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
