// Package db is the y12d job store: an in-memory SQLite database persisted
// to disk on shutdown and on demand.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/common/paths"
	"github.com/bitswalk/y12/src/y12d/db/migrations"
	_ "github.com/mattn/go-sqlite3"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the db package and its migrations
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
		migrations.SetLogger(l)
	}
}

// Database wraps the SQLite connection with persistence capabilities
type Database struct {
	db           *sql.DB
	persistPath  string
	schema       *migrations.Runner
	mu           sync.Mutex
	shutdownOnce sync.Once
}

// Config holds the database configuration
type Config struct {
	// PersistPath is where the database is saved; empty keeps it memory only
	PersistPath string
	// LoadOnStart loads PersistPath into memory when it exists
	LoadOnStart bool
}

// DefaultConfig returns a default database configuration
func DefaultConfig() Config {
	return Config{
		PersistPath: "~/.y12d/y12d.db",
		LoadOnStart: true,
	}
}

// New creates a new in-memory database with persistence support
func New(cfg Config) (*Database, error) {
	persistPath := paths.Expand(cfg.PersistPath)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &Database{
		db:          db,
		persistPath: persistPath,
		schema:      migrations.NewRunner(db),
	}

	if _, err := database.schema.Run(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.LoadOnStart && persistPath != "" && paths.Exists(persistPath) {
		if err := database.LoadFromDisk(); err != nil {
			log.Warn("Failed to load database from disk, starting empty", "path", persistPath, "error", err)
		}
	}

	return database, nil
}

// DB returns the underlying sql.DB for direct queries
func (d *Database) DB() *sql.DB {
	return d.db
}

// Ping checks the connection
func (d *Database) Ping() error {
	return d.db.Ping()
}

// Shutdown persists the database to disk and closes the connection
func (d *Database) Shutdown() error {
	var shutdownErr error

	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.persistPath != "" {
			if err := d.persistToDisk(); err != nil {
				shutdownErr = fmt.Errorf("failed to persist database: %w", err)
			}
		}

		if err := d.db.Close(); err != nil {
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%v; also failed to close database: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("failed to close database: %w", err)
			}
		}
	})

	return shutdownErr
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// persistToDisk writes a temp file with VACUUM INTO and renames it over the target
func (d *Database) persistToDisk() error {
	if d.persistPath == "" {
		return nil
	}

	if err := paths.EnsureDir(d.persistPath); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	tempPath := d.persistPath + ".tmp"
	os.Remove(tempPath)

	if _, err := d.db.Exec("VACUUM INTO " + quoteLiteral(tempPath)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to vacuum database to disk: %w", err)
	}

	if err := os.Rename(tempPath, d.persistPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename database file: %w", err)
	}

	return nil
}

func (d *Database) tableExistsInDiskDB(tableName string) bool {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM disk_db.sqlite_master
		WHERE type='table' AND name=?
	`, tableName).Scan(&count)
	return err == nil && count > 0
}

// LoadFromDisk copies jobs and their logs from the persisted file into
// memory. A snapshot at another schema version is refused.
func (d *Database) LoadFromDisk() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.persistPath == "" {
		return nil
	}

	if _, err := d.db.Exec("ATTACH DATABASE " + quoteLiteral(d.persistPath) + " AS disk_db"); err != nil {
		return fmt.Errorf("failed to attach disk database: %w", err)
	}
	defer d.db.Exec("DETACH DATABASE disk_db")

	if err := d.schema.CheckSnapshot(context.Background(), "disk_db"); err != nil {
		return err
	}

	// jobs before job_logs, the logs reference them
	for _, table := range []string{"jobs", "job_logs"} {
		if !d.tableExistsInDiskDB(table) {
			continue
		}
		if _, err := d.db.Exec(fmt.Sprintf("INSERT OR REPLACE INTO %s SELECT * FROM disk_db.%s", table, table)); err != nil {
			return fmt.Errorf("failed to load %s: %w", table, err)
		}
	}

	return nil
}

// SaveToDisk triggers a save to disk, used for periodic snapshots
func (d *Database) SaveToDisk() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persistToDisk()
}
