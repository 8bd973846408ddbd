package migrations

import (
	"context"
	"database/sql"
)

func migration002JobLogs() Migration {
	return Migration{
		Version:     2,
		Description: "Add job_logs table",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE job_logs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					job_id TEXT NOT NULL,
					message TEXT NOT NULL,
					created_at INTEGER NOT NULL,
					FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
				)
			`)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `CREATE INDEX idx_job_logs_job_id ON job_logs(job_id, id)`)
			return err
		},
	}
}
