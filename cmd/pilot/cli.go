package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/database"
	"gorm.io/gorm"
)

// setupDB creates the schema on the configured Postgres database. When
// Postgres cannot be reached the schema is written to a local SQLite file
// instead.
func setupDB() error {
	m := database.NewManager(componentLogger("database"))
	m.SqliteFilePath = sqliteDumpPath(config.GetStorageConfig())
	if err := m.Connect(database.PostgresConfigFromViper()); err != nil {
		return err
	}
	if err := m.Setup(CurrentVersion); err != nil {
		return err
	}
	if m.ShouldSaveLocal {
		Logger.Warn("Postgres unavailable, schema written to local SQLite", "path", m.SqliteFilePath)
		return m.DumpMemoryToDisk()
	}
	return nil
}

// migrateBackups copies every engagement from the SQLite files in dir into
// Postgres. Migrated files are renamed with a .migrated suffix so they are
// not picked up again.
func migrateBackups(dir string) error {
	sqlitePaths, err := database.GetBackupDBPaths(dir)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %w", err)
	}
	if len(sqlitePaths) == 0 {
		Logger.Info("No backups to migrate", "dir", dir)
		return nil
	}

	postgresDB, err := database.GetPostgresDB(database.PostgresConfigFromViper())
	if err != nil {
		return fmt.Errorf("error getting postgres database: %w", err)
	}
	if err := database.Migrate(postgresDB, CurrentVersion); err != nil {
		return err
	}

	successfulMigrations := make([]string, 0, len(sqlitePaths))
	var errs []error
	for _, sqlitePath := range sqlitePaths {
		n, err := migrateBackup(sqlitePath, postgresDB)
		if err != nil {
			Logger.Error("Error migrating backup", "path", sqlitePath, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sqlitePath, err))
			continue
		}
		Logger.Info("Migrated backup", "path", sqlitePath, "engagements", n)
		successfulMigrations = append(successfulMigrations, sqlitePath)
	}

	Logger.Info("Successfully migrated backups, it's recommended to delete these to avoid future data duplication",
		"count", len(successfulMigrations),
		"paths", successfulMigrations)
	return errors.Join(errs...)
}

func migrateBackup(sqlitePath string, dst *gorm.DB) (int, error) {
	sqliteDB, err := database.GetSqliteDB(sqlitePath)
	if err != nil {
		return 0, fmt.Errorf("error getting sqlite database: %w", err)
	}

	n, err := database.CopyEngagements(sqliteDB, dst)

	// remove connections to the database before renaming it
	if sqlConnection, dbErr := sqliteDB.DB(); dbErr == nil {
		if closeErr := sqlConnection.Close(); closeErr != nil {
			Logger.Error("Error closing sqlite connection", "error", closeErr)
		}
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(sqlitePath, sqlitePath+".migrated"); err != nil {
		Logger.Error("Error renaming sqlite file", "error", err)
	}
	return n, nil
}

// openStore opens a SQLite recording when path is set, otherwise the
// configured Postgres database.
func openStore(path string) (*gorm.DB, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return database.GetSqliteDB(path)
	}
	return database.GetPostgresDB(database.PostgresConfigFromViper())
}

// listEngagements prints one line per stored engagement.
func listEngagements(db *gorm.DB, w io.Writer) error {
	engagements, err := database.ListEngagements(db)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIDE\tSTART\tEND TICK")
	for _, e := range engagements {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.UUID, e.Side, e.StartTime.UTC().Format(time.RFC3339), e.EndTick)
	}
	return tw.Flush()
}

// exportEngagement writes one stored engagement as indented JSON.
func exportEngagement(db *gorm.DB, id string, w io.Writer) error {
	r, err := database.LoadEngagement(db, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
