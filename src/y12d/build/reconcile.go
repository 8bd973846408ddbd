package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/storage"
)

// ApplyProgress applies a runner callback. Progress is clamped by the store,
// a status must be reachable from the current one, and a log line is
// appended as given. Repeating the current terminal status is accepted so
// runner retries stay harmless. A complete status reconciles the image.
func (m *Manager) ApplyProgress(ctx context.Context, jobID string, p Progress) (*db.Job, error) {
	var next db.JobStatus
	if p.Status != "" {
		st, ok := db.ParseStatus(p.Status)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, p.Status)
		}
		next = st
	}

	current, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if p.Progress != nil || (next != "" && next != current.Status) {
		_, err := m.jobs.Update(ctx, jobID, func(j *db.Job) error {
			if p.Progress != nil {
				j.Progress = *p.Progress
			}
			if next != "" {
				j.Status = next
			}
			return nil
		})
		switch {
		case errors.Is(err, db.ErrJobTerminal) && (next == "" || next == current.Status):
			log.Debug("Ignoring progress for finished job", "job_id", jobID)
		case err != nil:
			return nil, err
		case next != "" && next != current.Status:
			m.metrics.IncJobStatus(string(next))
			log.Info("Job status reported by runner", "job_id", jobID, "status", next)
		}
	}

	if p.Log != "" {
		if err := m.jobs.AppendLog(ctx, jobID, p.Log); err != nil {
			return nil, err
		}
	}

	if next.IsComplete() {
		return m.ReconcileImage(ctx, jobID)
	}
	return m.jobs.Get(ctx, jobID)
}

// ReconcileImage brings the image fields of the job in line with the
// artifact store, which is the authority: an image found in storage is
// recorded and a recorded image that storage no longer has is cleared.
func (m *Manager) ReconcileImage(ctx context.Context, jobID string) (*db.Job, error) {
	job, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	info, err := m.artifacts.ImageInfo(ctx, jobID)
	switch {
	case storage.IsNotFound(err) && job.ISOUploaded:
		return m.forgetImage(ctx, jobID)
	case storage.IsNotFound(err):
		return job, nil
	case err != nil:
		return job, fmt.Errorf("failed to stat image: %w", err)
	case job.ISOUploaded:
		return job, nil
	}

	if _, err := m.jobs.UpdateImage(ctx, jobID, func(j *db.Job) error {
		j.ISOUploaded = true
		j.ISOSize = info.Size
		j.ISOSHA256 = info.SHA256
		j.ISOR2Key = info.Key
		return nil
	}); err != nil {
		return nil, err
	}
	if err := m.jobs.AppendLog(ctx, jobID, fmt.Sprintf("ISO confirmed in storage: %d bytes", info.Size)); err != nil {
		return nil, err
	}

	log.Info("Image reconciled from storage", "job_id", jobID, "size", info.Size)
	return m.jobs.Get(ctx, jobID)
}

func (m *Manager) forgetImage(ctx context.Context, jobID string) (*db.Job, error) {
	if _, err := m.jobs.UpdateImage(ctx, jobID, func(j *db.Job) error {
		j.ISOUploaded = false
		j.ISOSize = 0
		j.ISOSHA256 = ""
		j.ISOR2Key = ""
		return nil
	}); err != nil {
		return nil, err
	}
	if err := m.jobs.AppendLog(ctx, jobID, "ISO no longer in storage"); err != nil {
		return nil, err
	}

	log.Warn("Recorded image missing from storage, cleared", "job_id", jobID)
	return m.jobs.Get(ctx, jobID)
}

// RecordUpload streams an image into a staging object, checks it against
// the announced checksum and size, then promotes it to the final image key
// and records it on the job. A rejected upload never touches an image that
// is already stored. size < 0 means unknown.
func (m *Manager) RecordUpload(ctx context.Context, jobID string, r io.Reader, size int64, announcedSHA string) (*storage.ImageInfo, error) {
	if _, err := m.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	announcedSHA = strings.ToLower(strings.TrimSpace(announcedSHA))

	hasher := sha256.New()
	staged, err := m.artifacts.StageImage(ctx, jobID, io.TeeReader(r, hasher), size)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := m.artifacts.DiscardImage(context.WithoutCancel(ctx), staged); err != nil {
			log.Warn("Failed to remove staged image", "job_id", jobID, "key", staged, "error", err)
		}
	}()

	received := hex.EncodeToString(hasher.Sum(nil))
	if announcedSHA != "" && announcedSHA != received {
		return nil, fmt.Errorf("%w: announced %s, received %s", ErrChecksumMismatch, announcedSHA, received)
	}

	obj, err := m.artifacts.StagedInfo(ctx, staged)
	switch {
	case storage.IsNotFound(err):
		return nil, fmt.Errorf("%w: object not found after put", ErrUploadNotVerified)
	case err != nil:
		return nil, fmt.Errorf("failed to verify upload: %w", err)
	case size >= 0 && obj.Size != size:
		return nil, fmt.Errorf("%w: stored %d bytes, expected %d", ErrUploadNotVerified, obj.Size, size)
	}

	if err := m.artifacts.CommitImage(ctx, jobID, staged, received, obj.Size); err != nil {
		return nil, err
	}
	committed = true

	info, err := m.artifacts.ImageInfo(ctx, jobID)
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%w: object not found after put", ErrUploadNotVerified)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify upload: %w", err)
	}
	info.SHA256 = received

	if _, err := m.jobs.UpdateImage(ctx, jobID, func(j *db.Job) error {
		j.ISOUploaded = true
		j.ISOSize = info.Size
		j.ISOSHA256 = received
		j.ISOR2Key = info.Key
		return nil
	}); err != nil {
		return nil, err
	}
	if err := m.jobs.AppendLog(ctx, jobID,
		fmt.Sprintf("ISO uploaded to storage: %d bytes, SHA256: %s", info.Size, received)); err != nil {
		return nil, err
	}

	m.metrics.ObserveImageUpload(info.Size)
	log.Info("Image uploaded", "job_id", jobID, "size", info.Size, "sha256", received)
	return info, nil
}
