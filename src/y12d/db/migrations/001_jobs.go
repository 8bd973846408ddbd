package migrations

import (
	"context"
	"database/sql"
)

func migration001Jobs() Migration {
	return Migration{
		Version:     1,
		Description: "Add jobs table",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			// Timestamps are unix milliseconds so TTL comparisons stay numeric
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE jobs (
					id TEXT PRIMARY KEY,
					distro TEXT NOT NULL,
					mode TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'building',
					progress INTEGER NOT NULL DEFAULT 0,
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL,
					completed_at INTEGER,
					expires_at INTEGER NOT NULL,
					packages TEXT NOT NULL DEFAULT '[]',
					custom_software TEXT NOT NULL DEFAULT '[]',
					overlays TEXT NOT NULL DEFAULT '[]',
					ai_model TEXT NOT NULL DEFAULT '',
					kernel_config_lines INTEGER NOT NULL DEFAULT 0,
					r2_prefix TEXT NOT NULL DEFAULT '',
					build_script_hash TEXT NOT NULL DEFAULT '',
					iso_uploaded BOOLEAN NOT NULL DEFAULT 0,
					iso_size INTEGER NOT NULL DEFAULT 0,
					iso_sha256 TEXT NOT NULL DEFAULT '',
					iso_r2_key TEXT NOT NULL DEFAULT '',
					test_results TEXT NOT NULL DEFAULT '',
					checksums TEXT NOT NULL DEFAULT '',
					artifacts TEXT NOT NULL DEFAULT '',
					build_runner TEXT NOT NULL DEFAULT '',
					error TEXT NOT NULL DEFAULT '',
					version INTEGER NOT NULL DEFAULT 1
				)
			`)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `CREATE INDEX idx_jobs_expires_at ON jobs(expires_at)`)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `CREATE INDEX idx_jobs_status ON jobs(status)`)
			return err
		},
	}
}
