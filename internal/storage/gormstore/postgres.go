package gormstore

import (
	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/database"
	"github.com/hddf2/pilot/internal/logging"
	"github.com/hddf2/pilot/internal/storage"
)

// NewPostgres creates a backend that connects to Postgres on Init.
func NewPostgres(cfg database.PostgresConfig, logManager *logging.SlogManager, version string) *Backend {
	return New(Dependencies{Postgres: cfg, LogManager: logManager, Version: version})
}

// FromManager builds the backend on the connection a database.Manager
// settled on. When the manager fell back to local SQLite the backend
// dumps to the manager's SqliteFilePath with the given settings.
func FromManager(m *database.Manager, sqliteCfg config.SQLiteConfig, logManager *logging.SlogManager, version string) storage.Backend {
	if m.ShouldSaveLocal {
		sqliteCfg.DumpPath = m.SqliteFilePath
		return WrapSQLite(m.DB, sqliteCfg, logManager, version)
	}
	return New(Dependencies{DB: m.DB, LogManager: logManager, Version: version})
}
