package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultJobTTL is how long a job record stays readable after its last write
const DefaultJobTTL = 7 * 24 * time.Hour

// maxUpdateAttempts bounds the optimistic concurrency retry loop
const maxUpdateAttempts = 5

// JobRepository handles job and job log database operations
type JobRepository struct {
	db  *Database
	ttl time.Duration
	now func() time.Time
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *Database) *JobRepository {
	return &JobRepository{
		db:  db,
		ttl: DefaultJobTTL,
		now: time.Now,
	}
}

// SetTTL overrides the job retention; non-positive values are ignored
func (r *JobRepository) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		r.ttl = ttl
	}
}

// TTL returns the job retention
func (r *JobRepository) TTL() time.Duration {
	return r.ttl
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// Create inserts a new job together with its initial log lines.
// ID, timestamps, expiry and version are assigned here.
func (r *JobRepository) Create(ctx context.Context, job *Job, initialLogs ...string) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := r.now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.ExpiresAt = now.Add(r.ttl)
	job.Version = 1
	if job.Status == "" {
		job.Status = StatusBuilding
	}
	if job.Packages == nil {
		job.Packages = []string{}
	}
	if job.CustomSoftware == nil {
		job.CustomSoftware = []string{}
	}
	if job.Overlays == nil {
		job.Overlays = []string{}
	}

	cols, err := jobColumns(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	args := append([]any{job.ID}, cols...)
	args = append(args, job.Version)
	if _, err := tx.ExecContext(ctx, insertJobQuery, args...); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	for _, msg := range initialLogs {
		if _, err := tx.ExecContext(ctx, appendLogQuery, job.ID, msg, toMillis(now), job.ID); err != nil {
			return fmt.Errorf("failed to append job log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}

	job.Logs = make([]string, 0, len(initialLogs))
	for _, msg := range initialLogs {
		job.Logs = append(job.Logs, JobLog{Message: msg, CreatedAt: now}.String())
	}
	return nil
}

const insertJobQuery = `
	INSERT INTO jobs (id, distro, mode, status, progress, created_at, updated_at,
		completed_at, expires_at, packages, custom_software, overlays, ai_model,
		kernel_config_lines, r2_prefix, build_script_hash, iso_uploaded, iso_size,
		iso_sha256, iso_r2_key, test_results, checksums, artifacts, build_runner,
		error, version)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateJobQuery = `
	UPDATE jobs SET distro = ?, mode = ?, status = ?, progress = ?, created_at = ?,
		updated_at = ?, completed_at = ?, expires_at = ?, packages = ?,
		custom_software = ?, overlays = ?, ai_model = ?, kernel_config_lines = ?,
		r2_prefix = ?, build_script_hash = ?, iso_uploaded = ?, iso_size = ?,
		iso_sha256 = ?, iso_r2_key = ?, test_results = ?, checksums = ?,
		artifacts = ?, build_runner = ?, error = ?, version = ?
	WHERE id = ? AND version = ?
`

const selectJobQuery = `
	SELECT id, distro, mode, status, progress, created_at, updated_at,
		completed_at, expires_at, packages, custom_software, overlays, ai_model,
		kernel_config_lines, r2_prefix, build_script_hash, iso_uploaded, iso_size,
		iso_sha256, iso_r2_key, test_results, checksums, artifacts, build_runner,
		error, version
	FROM jobs
	WHERE id = ? AND expires_at > ?
`

const touchJobQuery = `UPDATE jobs SET expires_at = MAX(expires_at, ?) WHERE id = ?`

// appendLogQuery clamps the timestamp to the job's latest entry so the log
// never goes back in time
const appendLogQuery = `
	INSERT INTO job_logs (job_id, message, created_at)
	SELECT ?, ?, MAX(?, COALESCE((SELECT MAX(created_at) FROM job_logs WHERE job_id = ?), 0))
`

// jobColumns returns every column after id and before version
func jobColumns(job *Job) ([]any, error) {
	packages, err := encodeJSON(job.Packages)
	if err != nil {
		return nil, err
	}
	custom, err := encodeJSON(job.CustomSoftware)
	if err != nil {
		return nil, err
	}
	overlays, err := encodeJSON(job.Overlays)
	if err != nil {
		return nil, err
	}
	var testResults, checksums, artifacts string
	if job.TestResults != nil {
		if testResults, err = encodeJSON(job.TestResults); err != nil {
			return nil, err
		}
	}
	if job.Checksums != nil {
		if checksums, err = encodeJSON(job.Checksums); err != nil {
			return nil, err
		}
	}
	if job.Artifacts != nil {
		if artifacts, err = encodeJSON(job.Artifacts); err != nil {
			return nil, err
		}
	}

	var completedAt sql.NullInt64
	if job.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toMillis(*job.CompletedAt), Valid: true}
	}

	return []any{
		job.Distro, job.Mode, string(job.Status), job.Progress,
		toMillis(job.CreatedAt), toMillis(job.UpdatedAt), completedAt, toMillis(job.ExpiresAt),
		packages, custom, overlays, job.AIModel,
		job.KernelConfigLines, job.R2Prefix, job.BuildScriptHash,
		job.ISOUploaded, job.ISOSize, job.ISOSHA256, job.ISOR2Key,
		testResults, checksums, artifacts, job.BuildRunner, job.Error,
	}, nil
}

func (r *JobRepository) scanJob(row *sql.Row) (*Job, error) {
	var job Job
	var status string
	var createdAt, updatedAt, expiresAt int64
	var completedAt sql.NullInt64
	var packages, custom, overlays, testResults, checksums, artifacts string

	err := row.Scan(
		&job.ID, &job.Distro, &job.Mode, &status, &job.Progress,
		&createdAt, &updatedAt, &completedAt, &expiresAt,
		&packages, &custom, &overlays, &job.AIModel,
		&job.KernelConfigLines, &job.R2Prefix, &job.BuildScriptHash,
		&job.ISOUploaded, &job.ISOSize, &job.ISOSHA256, &job.ISOR2Key,
		&testResults, &checksums, &artifacts, &job.BuildRunner, &job.Error,
		&job.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Status = JobStatus(status)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	job.ExpiresAt = fromMillis(expiresAt)
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		job.CompletedAt = &t
	}

	job.Packages, job.CustomSoftware, job.Overlays = []string{}, []string{}, []string{}
	if err := decodeJSON(packages, &job.Packages); err != nil {
		return nil, fmt.Errorf("failed to decode packages: %w", err)
	}
	if err := decodeJSON(custom, &job.CustomSoftware); err != nil {
		return nil, fmt.Errorf("failed to decode custom software: %w", err)
	}
	if err := decodeJSON(overlays, &job.Overlays); err != nil {
		return nil, fmt.Errorf("failed to decode overlays: %w", err)
	}
	if testResults != "" {
		job.TestResults = &TestSummary{}
		if err := decodeJSON(testResults, job.TestResults); err != nil {
			return nil, fmt.Errorf("failed to decode test results: %w", err)
		}
	}
	if err := decodeJSON(checksums, &job.Checksums); err != nil {
		return nil, fmt.Errorf("failed to decode checksums: %w", err)
	}
	if err := decodeJSON(artifacts, &job.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to decode artifacts: %w", err)
	}

	return &job, nil
}

func (r *JobRepository) get(ctx context.Context, id string) (*Job, error) {
	row := r.db.DB().QueryRowContext(ctx, selectJobQuery, id, toMillis(r.now()))
	return r.scanJob(row)
}

// Get retrieves a job with its rendered log. Expired jobs are not found.
func (r *JobRepository) Get(ctx context.Context, id string) (*Job, error) {
	job, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	logs, err := r.GetLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Logs = make([]string, 0, len(logs))
	for _, l := range logs {
		job.Logs = append(job.Logs, l.String())
	}
	return job, nil
}

// Update applies fn to the current record and writes it back if nobody else
// wrote in between, retrying on a stale version. Terminal jobs are refused
// with ErrJobTerminal. Progress never decreases and status changes must pass
// JobStatus.CanTransition. The returned job has no logs.
func (r *JobRepository) Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	return r.update(ctx, id, false, fn)
}

// UpdateImage is Update for the image fields, which may still be recorded
// once the job is terminal. fn must not change the status.
func (r *JobRepository) UpdateImage(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	return r.update(ctx, id, true, fn)
}

func (r *JobRepository) update(ctx context.Context, id string, allowTerminal bool, fn func(*Job) error) (*Job, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		job, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() && !allowTerminal {
			return job, ErrJobTerminal
		}

		prevStatus, prevProgress, prevVersion := job.Status, job.Progress, job.Version
		if err := fn(job); err != nil {
			return nil, err
		}

		if job.Status != prevStatus {
			if !prevStatus.CanTransition(job.Status) {
				return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prevStatus, job.Status)
			}
			if job.Status.IsTerminal() && job.CompletedAt == nil {
				t := r.now().UTC()
				job.CompletedAt = &t
			}
		}
		if job.Progress < prevProgress {
			job.Progress = prevProgress
		}
		if job.Progress > 100 {
			job.Progress = 100
		}

		job.ID = id
		job.UpdatedAt = r.now().UTC()
		if exp := job.UpdatedAt.Add(r.ttl); exp.After(job.ExpiresAt) {
			job.ExpiresAt = exp
		}
		job.Version = prevVersion + 1

		cols, err := jobColumns(job)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job: %w", err)
		}
		args := append(cols, job.Version, id, prevVersion)

		result, err := r.db.DB().ExecContext(ctx, updateJobQuery, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update job: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 1 {
			return job, nil
		}

		log.Debug("Job version conflict, retrying", "job_id", id, "attempt", attempt+1)
	}

	return nil, ErrVersionConflict
}

// AppendLog appends one line to the job log. Like every write it pushes
// the expiry out to a full TTL from now.
func (r *JobRepository) AppendLog(ctx context.Context, id, message string) error {
	now := r.now()
	_, err := r.db.DB().ExecContext(ctx, appendLogQuery, id, message, toMillis(now), id)
	if err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}
	if _, err := r.db.DB().ExecContext(ctx, touchJobQuery, toMillis(now.Add(r.ttl)), id); err != nil {
		return fmt.Errorf("failed to refresh job expiry: %w", err)
	}
	return nil
}

// GetLogs retrieves every log line of a job in append order
func (r *JobRepository) GetLogs(ctx context.Context, id string) ([]JobLog, error) {
	return r.GetLogsSince(ctx, id, 0)
}

// GetLogsSince retrieves log lines after the given log ID (for streaming)
func (r *JobRepository) GetLogsSince(ctx context.Context, id string, afterID int64) ([]JobLog, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT id, job_id, message, created_at
		FROM job_logs
		WHERE job_id = ? AND id > ?
		ORDER BY id ASC
	`, id, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job logs: %w", err)
	}
	defer rows.Close()

	logs := []JobLog{}
	for rows.Next() {
		var l JobLog
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.JobID, &l.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job log: %w", err)
		}
		l.CreatedAt = fromMillis(createdAt)
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

// CountActive returns the number of unexpired jobs per status
func (r *JobRepository) CountActive(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT status, COUNT(*) FROM jobs WHERE expires_at > ? GROUP BY status`, toMillis(r.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// PurgeExpired deletes jobs past their expiry together with their logs
func (r *JobRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.db.DB().ExecContext(ctx, `DELETE FROM jobs WHERE expires_at <= ?`, toMillis(r.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		log.Info("Purged expired jobs", "count", n)
	}
	return n, nil
}
