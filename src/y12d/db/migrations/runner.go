// Package migrations versions the job store schema.
//
// The in-memory store is rebuilt on every start, so migrations always run
// from zero on a fresh database. Persisted snapshots carry their own
// schema_migrations table, which VersionOf reads to decide whether a
// snapshot can be copied back in.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bitswalk/y12/src/common/logs"
)

var log *logs.Logger

// SetLogger sets the logger for the migrations package
func SetLogger(l *logs.Logger) {
	log = l
}

// ErrSchemaMismatch is returned for a snapshot written by a different schema
var ErrSchemaMismatch = errors.New("job store schema mismatch")

// Migration is one schema step
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// Result reports what Run did
type Result struct {
	From     int
	To       int
	Applied  int
	Duration time.Duration
}

// Runner applies the registered migrations to one database
type Runner struct {
	db         *sql.DB
	migrations []Migration
}

// NewRunner creates a runner with every known migration
func NewRunner(db *sql.DB) *Runner {
	m := []Migration{
		migration001Jobs(),
		migration002JobLogs(),
	}
	sort.Slice(m, func(i, j int) bool { return m[i].Version < m[j].Version })
	return &Runner{db: db, migrations: m}
}

// Latest is the schema version after every migration has run
func (r *Runner) Latest() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

func (r *Runner) ensureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	return err
}

// Version returns the highest applied version of the main database
func (r *Runner) Version(ctx context.Context) (int, error) {
	return r.VersionOf(ctx, "main")
}

// VersionOf returns the highest applied version in an attached schema.
// A schema without a schema_migrations table is at version 0.
func (r *Runner) VersionOf(ctx context.Context, schema string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s.sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`, schema),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect schema %s: %w", schema, err)
	}
	if n == 0 {
		return 0, nil
	}

	var version int
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(MAX(version), 0) FROM %s.schema_migrations`, schema),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version of %s: %w", schema, err)
	}
	return version, nil
}

// CheckSnapshot reports ErrSchemaMismatch unless the attached schema is at
// the version this runner migrates to
func (r *Runner) CheckSnapshot(ctx context.Context, schema string) error {
	v, err := r.VersionOf(ctx, schema)
	if err != nil {
		return err
	}
	if v != r.Latest() {
		return fmt.Errorf("%w: snapshot at version %d, job store at %d", ErrSchemaMismatch, v, r.Latest())
	}
	return nil
}

// Run applies every migration newer than the current version, each in its
// own transaction
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	if err := r.ensureTable(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	from, err := r.Version(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{From: from, To: from}
	if from > r.Latest() {
		return res, fmt.Errorf("%w: database at version %d, job store at %d", ErrSchemaMismatch, from, r.Latest())
	}

	for _, m := range r.migrations {
		if m.Version <= from {
			continue
		}
		stepStart := time.Now()
		if err := r.apply(ctx, m); err != nil {
			if log != nil {
				log.Error("Migration failed", "version", m.Version, "description", m.Description, "error", err)
			}
			return res, fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if log != nil {
			log.Debug("Applied migration", "version", m.Version, "description", m.Description,
				"duration", time.Since(stepStart))
		}
		res.To = m.Version
		res.Applied++
	}

	res.Duration = time.Since(start)
	if log != nil && res.Applied > 0 {
		log.Info("Job store schema ready", "from", res.From, "to", res.To, "applied", res.Applied, "duration", res.Duration)
	}
	return res, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := m.Up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
