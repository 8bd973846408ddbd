package build

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/dispatch"
	"github.com/bitswalk/y12/src/y12d/generate"
	"github.com/bitswalk/y12/src/y12d/metrics"
	"github.com/bitswalk/y12/src/y12d/storage"
)

// ============================================================================
// Helpers
// ============================================================================

type fakeDispatcher struct {
	mu        sync.Mutex
	triggered bool
	err       error
	panicMsg  string
	jobs      []string
}

func (f *fakeDispatcher) Enabled() bool { return true }

func (f *fakeDispatcher) Trigger(ctx context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.jobs = append(f.jobs, jobID)
	return f.triggered, f.err
}

func newTestManager(t *testing.T, d dispatch.Dispatcher) *Manager {
	t.Helper()

	database, err := db.New(db.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { database.Shutdown() })

	backend, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	m := NewManager(Deps{
		Database:   database,
		Jobs:       db.NewJobRepository(database),
		Artifacts:  storage.NewArtifactStore(backend),
		Dispatcher: d,
		Metrics:    metrics.New(),
	}, Config{})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Stop() })
	return m
}

func e2eRequest() Request {
	return Request{
		Distro:          "debian",
		Mode:            "server",
		HardwareRaw:     "00:02.0 VGA compatible controller: Intel Corporation Device 9a49",
		AIMode:          true,
		Overlays:        []string{"docker", "tailscale"},
		CustomSoftware:  []string{},
		DetectedModules: []string{"i915", "nvme"},
	}
}

func submitAndWait(t *testing.T, m *Manager, req Request) *db.Job {
	t.Helper()
	ctx := context.Background()
	res, err := m.Submit(ctx, req)
	require.NoError(t, err)
	m.Wait()
	job, err := m.Jobs().Get(ctx, res.ID)
	require.NoError(t, err)
	return job
}

func logMessages(t *testing.T, m *Manager, id string) []string {
	t.Helper()
	entries, err := m.Jobs().GetLogs(context.Background(), id)
	require.NoError(t, err)
	msgs := make([]string, len(entries))
	for i, e := range entries {
		msgs[i] = e.Message
	}
	return msgs
}

// seedJob creates a job whose pipeline the test drives by hand
func seedJob(t *testing.T, m *Manager, files map[string]string) string {
	t.Helper()
	ctx := context.Background()
	job := &db.Job{Distro: "debian", Mode: "server"}
	require.NoError(t, m.Jobs().Create(ctx, job, "seeded"))
	for name, content := range files {
		require.NoError(t, m.Artifacts().PutString(ctx, job.ID, name, content))
	}
	return job.ID
}

// ============================================================================
// Request
// ============================================================================

func TestRequestNormalizeAndValidate(t *testing.T) {
	req := Request{Distro: " debian ", Mode: "server", Overlays: []string{" docker", "", "docker"}}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "debian", req.Distro)
	assert.Equal(t, []string{"docker", "docker"}, req.Overlays)
	assert.NotNil(t, req.CustomSoftware)
	assert.NotNil(t, req.DetectedModules)

	err := (&Request{Mode: "server"}).Validate()
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "distro")
}

// ============================================================================
// Submit and pipeline
// ============================================================================

func TestSubmitRequiresRunningManager(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.Stop())

	_, err := m.Submit(context.Background(), e2eRequest())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Submit(context.Background(), Request{Distro: "debian"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSubmitResult(t *testing.T) {
	m := newTestManager(t, nil)
	res, err := m.Submit(context.Background(), e2eRequest())
	require.NoError(t, err)
	m.Wait()

	assert.Equal(t, "building", res.Status)
	assert.Equal(t, "fallback", res.AIModel)
	assert.Equal(t, 15, res.KernelConfigLines)
	assert.Equal(t, 2, res.Packages)
	assert.Equal(t, "builds/"+res.ID, res.R2Prefix)
}

func TestLocalBuildCompletesWithWarnings(t *testing.T) {
	m := newTestManager(t, nil)
	job := submitAndWait(t, m, e2eRequest())

	assert.Equal(t, db.StatusCompleteWithWarnings, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, db.RunnerLocal, job.BuildRunner)
	require.NotNil(t, job.TestResults)
	assert.Equal(t, db.TestSummary{Passed: 28, Total: 29}, *job.TestResults)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, generate.ArtifactFiles, job.Artifacts)
	assert.Len(t, job.Checksums, len(generate.ChecksummedFiles))
	assert.Equal(t, []string{"docker.io", "containerd"}, job.Packages)
	assert.Empty(t, job.Error)

	msgs := logMessages(t, m, job.ID)
	assert.Equal(t, "Build job "+job.ID+" created", msgs[0])
	assert.Equal(t, "AI model: fallback", msgs[1])
	assert.Equal(t, "Kernel config: 15 lines generated", msgs[2])
	assert.Equal(t, "Packages: 2 overlay + 0 custom", msgs[3])
	assert.Contains(t, msgs, "Retrieving build artifacts...")
	assert.Contains(t, msgs, "Kernel config validated: 10 enabled, 4 disabled, 15 total config lines")
	assert.Contains(t, msgs, "Build script validated: all phases present")
	assert.Contains(t, msgs, "Resolved 2 packages for apt: ✓ docker.io, ✓ containerd")
	assert.Contains(t, msgs, "Triggering external ISO build...")
	assert.Equal(t,
		"Build complete_with_warnings. 28/29 validations passed. Download artifacts and run: docker compose up --build",
		msgs[len(msgs)-1])
	for _, msg := range msgs {
		assert.NotContains(t, msg, "BUILD FAILED")
	}
}

func TestLocalBuildStoresEveryArtifact(t *testing.T) {
	m := newTestManager(t, nil)
	job := submitAndWait(t, m, e2eRequest())
	ctx := context.Background()

	objects, err := m.Artifacts().List(ctx, job.ID)
	require.NoError(t, err)
	var names []string
	for _, o := range objects {
		names = append(names, strings.TrimPrefix(o.Key, job.R2Prefix+"/"))
	}
	assert.ElementsMatch(t, generate.ArtifactFiles, names)

	script, err := m.Artifacts().GetString(ctx, job.ID, generate.FileBuildScript)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(script, "debian:12-slim"))
	assert.Equal(t, generate.SHA256Hex([]byte(script)), job.BuildScriptHash)

	for _, name := range generate.ChecksummedFiles {
		data, err := m.Artifacts().Get(ctx, job.ID, name)
		require.NoError(t, err)
		assert.Equal(t, generate.SHA256Hex(data), job.Checksums[name], name)
	}

	sums, err := m.Artifacts().GetString(ctx, job.ID, generate.FileChecksums)
	require.NoError(t, err)
	assert.Contains(t, sums, job.Checksums[generate.FileKernelConfig]+"  kernel.config")

	manifestJSON, err := m.Artifacts().Get(ctx, job.ID, generate.FileManifest)
	require.NoError(t, err)
	manifest, err := generate.ParseManifest(manifestJSON)
	require.NoError(t, err)
	assert.Equal(t, job.ID, manifest.JobID)
	assert.Equal(t, "apt", manifest.PackageManager)
	assert.True(t, manifest.AIMode)
}

func TestProgressNeverDecreasesInLog(t *testing.T) {
	m := newTestManager(t, nil)
	job := submitAndWait(t, m, e2eRequest())

	entries, err := m.Jobs().GetLogs(context.Background(), job.ID)
	require.NoError(t, err)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}
}

func TestTriggeredBuildHandsOff(t *testing.T) {
	d := &fakeDispatcher{triggered: true}
	m := newTestManager(t, d)
	job := submitAndWait(t, m, e2eRequest())

	assert.Equal(t, db.StatusBuildingISO, job.Status)
	assert.Equal(t, 90, job.Progress)
	assert.Equal(t, db.RunnerGitHubActions, job.BuildRunner)
	assert.Nil(t, job.CompletedAt)
	require.NotNil(t, job.TestResults)
	assert.Equal(t, 29, job.TestResults.Total)
	assert.Equal(t, []string{job.ID}, d.jobs)

	msgs := logMessages(t, m, job.ID)
	assert.Equal(t, "Validation: 28/29 passed. GitHub Actions building ISO on cloud runner...", msgs[len(msgs)-1])
}

func TestTriggerFailureFallsBackToLocal(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("github returned 422")}
	m := newTestManager(t, d)
	job := submitAndWait(t, m, e2eRequest())

	assert.Equal(t, db.StatusCompleteWithWarnings, job.Status)
	assert.Equal(t, db.RunnerLocal, job.BuildRunner)
	assert.Contains(t, logMessages(t, m, job.ID), "WARNING: ISO build trigger failed: github returned 422")
}

func TestPanicMarksJobFailed(t *testing.T) {
	d := &fakeDispatcher{panicMsg: "boom"}
	m := newTestManager(t, d)
	job := submitAndWait(t, m, e2eRequest())

	assert.Equal(t, db.StatusFailed, job.Status)
	assert.Equal(t, "internal error (panic): boom", job.Error)
	msgs := logMessages(t, m, job.ID)
	assert.Equal(t, "BUILD FAILED: internal error (panic): boom", msgs[len(msgs)-1])
}

func TestPipelineFailures(t *testing.T) {
	script := "#!/bin/bash\nset -e\n"
	manifest := `{"jobId":"x","distro":"debian","mode":"server","baseImage":"debian:12-slim","pkgManager":"apt","packages":[]}`

	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing manifest",
			files:   map[string]string{},
			wantErr: "Manifest not found in storage",
		},
		{
			name:    "missing kernel config",
			files:   map[string]string{generate.FileManifest: manifest},
			wantErr: "Kernel config not found in storage",
		},
		{
			name: "missing script",
			files: map[string]string{
				generate.FileManifest:     manifest,
				generate.FileKernelConfig: "CONFIG_NET=y",
			},
			wantErr: "Build script not found in storage",
		},
		{
			name: "kernel config too small",
			files: map[string]string{
				generate.FileManifest:     manifest,
				generate.FileKernelConfig: "CONFIG_NET=y\n# CONFIG_DRM is not set\n",
				generate.FileBuildScript:  script,
			},
			wantErr: "Kernel config too small: 2 lines. Expected 50+.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, nil)
			id := seedJob(t, m, tt.files)

			m.run(context.Background(), id)

			job, err := m.Jobs().Get(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, db.StatusFailed, job.Status)
			assert.Equal(t, tt.wantErr, job.Error)
			msgs := logMessages(t, m, id)
			assert.Equal(t, "BUILD FAILED: "+tt.wantErr, msgs[len(msgs)-1])
		})
	}
}

func TestPipelineDoesNotOverwriteTerminalJob(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	id := seedJob(t, m, nil)

	_, err := m.Jobs().Update(ctx, id, func(j *db.Job) error {
		j.Status = db.StatusComplete
		j.Progress = 100
		return nil
	})
	require.NoError(t, err)

	m.run(ctx, id)

	job, err := m.Jobs().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, db.StatusComplete, job.Status)
	assert.Empty(t, job.Error)
	assert.Equal(t, []string{"seeded"}, logMessages(t, m, id))
}

func TestScriptCheckWarnings(t *testing.T) {
	m := newTestManager(t, nil)
	s := &pipelineState{jobID: seedJob(t, m, nil), script: "#!/bin/sh\necho hi\n"}

	require.NoError(t, m.checkBuildScript(context.Background(), s))

	msgs := logMessages(t, m, s.jobID)
	assert.Equal(t,
		"WARNING: Build script missing: shebang, set -e, docker pull, kernel clone, kernel make, ISO creation",
		msgs[len(msgs)-1])
}

// ============================================================================
// Progress callback and reconciliation
// ============================================================================

func handedOffJob(t *testing.T) (*Manager, string) {
	t.Helper()
	m := newTestManager(t, &fakeDispatcher{triggered: true})
	job := submitAndWait(t, m, e2eRequest())
	require.Equal(t, db.StatusBuildingISO, job.Status)
	return m, job.ID
}

func intPtr(v int) *int { return &v }

func TestApplyProgress(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()

	job, err := m.ApplyProgress(ctx, id, Progress{Progress: intPtr(95), Log: "Kernel compiled"})
	require.NoError(t, err)
	assert.Equal(t, 95, job.Progress)
	assert.Equal(t, db.StatusBuildingISO, job.Status)

	// lower progress is ignored
	job, err = m.ApplyProgress(ctx, id, Progress{Progress: intPtr(40)})
	require.NoError(t, err)
	assert.Equal(t, 95, job.Progress)

	msgs := logMessages(t, m, id)
	assert.Equal(t, "Kernel compiled", msgs[len(msgs)-1])
}

func TestApplyProgressStatusErrors(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()

	_, err := m.ApplyProgress(ctx, id, Progress{Status: "exploded"})
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = m.ApplyProgress(ctx, id, Progress{Status: "building"})
	assert.ErrorIs(t, err, db.ErrInvalidTransition)

	_, err = m.ApplyProgress(ctx, "missing", Progress{Log: "x"})
	assert.ErrorIs(t, err, db.ErrJobNotFound)
}

func TestApplyProgressOnFinishedJob(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()

	job, err := m.ApplyProgress(ctx, id, Progress{Status: "complete", Progress: intPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, db.StatusComplete, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.False(t, job.ISOUploaded)

	// a runner retry of the same status is harmless
	_, err = m.ApplyProgress(ctx, id, Progress{Status: "complete", Log: "retry"})
	require.NoError(t, err)

	_, err = m.ApplyProgress(ctx, id, Progress{Status: "failed"})
	assert.ErrorIs(t, err, db.ErrJobTerminal)
}

func TestCompleteCallbackReconcilesImage(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()

	// the image lands in storage without the job learning about it
	payload := []byte("iso-bytes")
	require.NoError(t, m.Artifacts().PutImage(ctx, id, bytes.NewReader(payload), int64(len(payload)), "abc123"))

	job, err := m.ApplyProgress(ctx, id, Progress{Status: "complete", Progress: intPtr(100)})
	require.NoError(t, err)
	assert.True(t, job.ISOUploaded)
	assert.Equal(t, int64(len(payload)), job.ISOSize)
	assert.Equal(t, "abc123", job.ISOSHA256)
	assert.Equal(t, storage.ImageKey(id), job.ISOR2Key)
	assert.Contains(t, logMessages(t, m, id), "ISO confirmed in storage: 9 bytes")
}

func TestReconcileWithoutImage(t *testing.T) {
	m, id := handedOffJob(t)

	job, err := m.ReconcileImage(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, job.ISOUploaded)
}

// ============================================================================
// Upload
// ============================================================================

func TestRecordUpload(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()
	payload := []byte("bootable image")
	sum := generate.SHA256Hex(payload)

	info, err := m.RecordUpload(ctx, id, bytes.NewReader(payload), int64(len(payload)), strings.ToUpper(sum))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)
	assert.Equal(t, sum, info.SHA256)

	job, err := m.Jobs().Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, job.ISOUploaded)
	assert.Equal(t, sum, job.ISOSHA256)
	assert.Equal(t, db.StatusBuildingISO, job.Status)

	msgs := logMessages(t, m, id)
	assert.Equal(t, "ISO uploaded to storage: 14 bytes, SHA256: "+sum, msgs[len(msgs)-1])
}

func TestRecordUploadWithoutAnnouncedChecksum(t *testing.T) {
	m, id := handedOffJob(t)
	payload := []byte("bootable image")

	info, err := m.RecordUpload(context.Background(), id, bytes.NewReader(payload), -1, "")
	require.NoError(t, err)
	assert.Equal(t, generate.SHA256Hex(payload), info.SHA256)
}

func TestRecordUploadChecksumMismatch(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()
	payload := []byte("bootable image")

	_, err := m.RecordUpload(ctx, id, bytes.NewReader(payload), int64(len(payload)), strings.Repeat("0", 64))
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = m.Artifacts().ImageInfo(ctx, id)
	assert.True(t, storage.IsNotFound(err))
}

func TestRecordUploadRejectedRetryKeepsImage(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()
	payload := []byte("bootable image")
	sum := generate.SHA256Hex(payload)

	_, err := m.RecordUpload(ctx, id, bytes.NewReader(payload), int64(len(payload)), sum)
	require.NoError(t, err)

	retry := []byte("truncated")
	_, err = m.RecordUpload(ctx, id, bytes.NewReader(retry), int64(len(retry)), strings.Repeat("0", 64))
	require.ErrorIs(t, err, ErrChecksumMismatch)

	job, err := m.ReconcileImage(ctx, id)
	require.NoError(t, err)
	assert.True(t, job.ISOUploaded)
	assert.Equal(t, sum, job.ISOSHA256)
	assert.Equal(t, int64(len(payload)), job.ISOSize)

	rc, info, err := m.Artifacts().OpenImage(ctx, id)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, sum, info.SHA256)
}

func TestRecordUploadShortBody(t *testing.T) {
	m, id := handedOffJob(t)

	_, err := m.RecordUpload(context.Background(), id, strings.NewReader("abc"), 10, "")
	require.Error(t, err)

	_, err = m.Artifacts().ImageInfo(context.Background(), id)
	assert.True(t, storage.IsNotFound(err))
}

func TestReconcileClearsMissingImage(t *testing.T) {
	m, id := handedOffJob(t)
	ctx := context.Background()
	payload := []byte("bootable image")

	_, err := m.RecordUpload(ctx, id, bytes.NewReader(payload), int64(len(payload)), "")
	require.NoError(t, err)
	require.NoError(t, m.Artifacts().Backend().Delete(ctx, storage.ImageKey(id)))

	job, err := m.ReconcileImage(ctx, id)
	require.NoError(t, err)
	assert.False(t, job.ISOUploaded)
	assert.Empty(t, job.ISOSHA256)
	assert.Empty(t, job.ISOR2Key)
	assert.Zero(t, job.ISOSize)
	assert.Contains(t, logMessages(t, m, id), "ISO no longer in storage")
}

func TestRecordUploadUnknownJob(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.RecordUpload(context.Background(), "missing", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, db.ErrJobNotFound)
}

func TestUploadAfterCompletion(t *testing.T) {
	m := newTestManager(t, nil)
	job := submitAndWait(t, m, e2eRequest())
	require.True(t, job.Status.IsTerminal())

	_, err := m.RecordUpload(context.Background(), job.ID, strings.NewReader("late"), 4, "")
	require.NoError(t, err)

	got, err := m.Jobs().Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, got.ISOUploaded)
	assert.Equal(t, job.Status, got.Status)
}

// ============================================================================
// Self-test
// ============================================================================

func TestSelfTestWithoutCompleter(t *testing.T) {
	m := newTestManager(t, nil)
	report := m.SelfTest(context.Background())

	for _, r := range report.Tests {
		assert.True(t, r.Pass, "%s: %s", r.Name, r.Message)
		assert.NotEqual(t, "ai_completer", r.Name)
	}
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, report.Total, report.Passed)

	// the round trip object is gone again
	objects, err := m.Artifacts().Backend().List(context.Background(), "_selftest/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}
