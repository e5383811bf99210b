package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/database"
	"github.com/hddf2/pilot/internal/storage"
	"github.com/hddf2/pilot/internal/storage/gormstore"
	"github.com/hddf2/pilot/internal/storage/memory"
	wsstorage "github.com/hddf2/pilot/internal/storage/websocket"
)

func initStorage(storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("init %s backend: %w", storageCfg.Type, err)
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		m := database.NewManager(componentLogger("database"))
		m.SqliteFilePath = sqliteDumpPath(storageCfg)
		if err := m.Connect(database.PostgresConfigFromViper()); err != nil {
			return nil, err
		}
		if m.ShouldSaveLocal {
			Logger.Warn("Postgres unavailable, recording to local SQLite", "dumpPath", m.SqliteFilePath)
		}
		return gormstore.FromManager(m, storageCfg.SQLite, SlogManager, CurrentVersion), nil

	case "sqlite":
		sqliteCfg := storageCfg.SQLite
		sqliteCfg.DumpPath = sqliteDumpPath(storageCfg)
		backend, err := gormstore.NewSQLite("", sqliteCfg, SlogManager, CurrentVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "websocket":
		wsURL := httpToWS(storageCfg.WebSocket.URL)
		Logger.Info("WebSocket storage backend", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: storageCfg.WebSocket.Secret,
		}, Logger), nil

	case "memory", "":
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// sqliteDumpPath is the configured dump path, or a session file in the
// recordings directory.
func sqliteDumpPath(storageCfg config.StorageConfig) string {
	if storageCfg.SQLite.DumpPath != "" {
		return storageCfg.SQLite.DumpPath
	}
	dir := storageCfg.Memory.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		Logger.Warn("Failed to create recordings directory", "error", err, "path", dir)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
