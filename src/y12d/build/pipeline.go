package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/generate"
	"github.com/bitswalk/y12/src/y12d/kconfig"
	"github.com/bitswalk/y12/src/y12d/storage"
	"github.com/bitswalk/y12/src/y12d/validate"
)

// minKernelConfigLines is the size below which a fragment is rejected outright
const minKernelConfigLines = 10

// pipelineState is passed through the phases of one job
type pipelineState struct {
	jobID        string
	manifest     generate.Manifest
	manifestJSON []byte
	kernelConfig string
	script       string
	dockerfile   string
	compose      string
	readme       string
	results      []validate.TestResult
	summary      validate.Summary
	checksums    map[string]string
	triggered    bool
}

// phase is one named step of the pipeline
type phase struct {
	name string
	run  func(m *Manager, ctx context.Context, s *pipelineState) error
}

// pipeline lists the phases in execution order
var pipeline = []phase{
	{"retrieve", (*Manager).retrieve},
	{"kernel_config", (*Manager).checkKernelConfig},
	{"build_script", (*Manager).checkBuildScript},
	{"packages", (*Manager).reportPackages},
	{"dockerfile", (*Manager).writeDockerfile},
	{"compose", (*Manager).writeCompose},
	{"readme", (*Manager).writeReadme},
	{"validate", (*Manager).runValidation},
	{"checksums", (*Manager).writeChecksums},
	{"trigger", (*Manager).trigger},
	{"finalize", (*Manager).finalize},
}

// run executes every phase of a job in order
func (m *Manager) run(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Build pipeline recovered from panic",
				"job_id", jobID,
				"panic", fmt.Sprintf("%v", r),
			)
			m.handleFailure(jobID, fmt.Sprintf("internal error (panic): %v", r))
		}
	}()

	s := &pipelineState{jobID: jobID}
	for _, p := range pipeline {
		start := time.Now()
		err := p.run(m, ctx, s)
		m.metrics.ObservePhase(p.name, time.Since(start))

		if errors.Is(err, db.ErrJobTerminal) {
			log.Info("Job already finished, stopping pipeline", "job_id", jobID, "phase", p.name)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("build interrupted by shutdown during %s", p.name)
			}
			m.handleFailure(jobID, err.Error())
			return
		}
	}
}

// handleFailure marks a job as failed. It uses its own context so a
// shutdown still records the failure.
func (m *Manager) handleFailure(jobID, errorMsg string) {
	log.Error("Build job failed", "job_id", jobID, "error", errorMsg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := m.jobs.Update(ctx, jobID, func(j *db.Job) error {
		j.Status = db.StatusFailed
		j.Error = errorMsg
		return nil
	})
	if errors.Is(err, db.ErrJobTerminal) {
		log.Debug("Job already terminal, failure not recorded", "job_id", jobID)
		return
	}
	if err != nil {
		log.Error("Failed to mark job as failed", "job_id", jobID, "error", err)
		return
	}
	m.metrics.IncJobStatus(string(db.StatusFailed))

	if err := m.jobs.AppendLog(ctx, jobID, "BUILD FAILED: "+errorMsg); err != nil {
		log.Warn("Failed to append job log", "job_id", jobID, "error", err)
	}
}

// checkpoint raises the progress and appends msg. A terminal job yields
// db.ErrJobTerminal.
func (m *Manager) checkpoint(ctx context.Context, jobID string, progress int, msg string) error {
	_, err := m.jobs.Update(ctx, jobID, func(j *db.Job) error {
		j.Progress = progress
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.jobs.AppendLog(ctx, jobID, msg); err != nil {
		return err
	}
	log.Debug("Build checkpoint", "job_id", jobID, "progress", progress, "message", msg)
	return nil
}

func (m *Manager) retrieve(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 5, "Retrieving build artifacts..."); err != nil {
		return err
	}

	fetch := func(name, what string) ([]byte, error) {
		data, err := m.artifacts.Get(ctx, s.jobID, name)
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%s not found in storage", what)
		}
		return data, err
	}

	manifestJSON, err := fetch(generate.FileManifest, "Manifest")
	if err != nil {
		return err
	}
	if s.manifest, err = generate.ParseManifest(manifestJSON); err != nil {
		return err
	}
	s.manifestJSON = manifestJSON

	kernelConfig, err := fetch(generate.FileKernelConfig, "Kernel config")
	if err != nil {
		return err
	}
	s.kernelConfig = string(kernelConfig)

	script, err := fetch(generate.FileBuildScript, "Build script")
	if err != nil {
		return err
	}
	s.script = string(script)
	return nil
}

func (m *Manager) checkKernelConfig(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 10, "Validating kernel configuration..."); err != nil {
		return err
	}

	stats := kconfig.Analyze(s.kernelConfig)
	if stats.Total < minKernelConfigLines {
		return fmt.Errorf("Kernel config too small: %d lines. Expected 50+.", stats.Total)
	}

	return m.checkpoint(ctx, s.jobID, 15, fmt.Sprintf(
		"Kernel config validated: %d enabled, %d disabled, %d total config lines",
		stats.Enabled, stats.Disabled, stats.Total))
}

// scriptPhases are the markers a runnable build script must contain
var scriptPhases = []struct {
	name  string
	check func(script string) bool
}{
	{"shebang", func(s string) bool { return strings.SplitN(s, "\n", 2)[0] == "#!/bin/bash" }},
	{"set -e", func(s string) bool { return strings.Contains(s, "set -e") }},
	{"docker pull", func(s string) bool { return strings.Contains(s, "docker pull") }},
	{"kernel clone", func(s string) bool { return strings.Contains(s, "git clone") && strings.Contains(s, "linux") }},
	{"kernel make", func(s string) bool {
		return strings.Contains(s, "make") && (strings.Contains(s, "bzImage") || strings.Contains(s, "defconfig"))
	}},
	{"ISO creation", func(s string) bool {
		return strings.Contains(s, "grub-mkrescue") || strings.Contains(s, "xorriso")
	}},
}

func (m *Manager) checkBuildScript(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 20, "Validating build script..."); err != nil {
		return err
	}

	var missing []string
	for _, p := range scriptPhases {
		if !p.check(s.script) {
			missing = append(missing, p.name)
		}
	}

	msg := "Build script validated: all phases present"
	if len(missing) > 0 {
		msg = "WARNING: Build script missing: " + strings.Join(missing, ", ")
	}
	return m.checkpoint(ctx, s.jobID, 25, msg)
}

func (m *Manager) reportPackages(ctx context.Context, s *pipelineState) error {
	pkgs := s.manifest.Packages
	msg := fmt.Sprintf("Resolved %d packages for %s", len(pkgs), s.manifest.PackageManager)
	if len(pkgs) > 0 {
		marked := make([]string, len(pkgs))
		for i, p := range pkgs {
			marked[i] = "✓ " + p
		}
		msg += ": " + strings.Join(marked, ", ")
	}
	return m.checkpoint(ctx, s.jobID, 30, msg)
}

func (m *Manager) writeDockerfile(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 40, "Generating Dockerfile..."); err != nil {
		return err
	}

	s.dockerfile = generate.Dockerfile(s.manifest)
	if err := m.artifacts.PutString(ctx, s.jobID, generate.FileDockerfile, s.dockerfile); err != nil {
		return err
	}
	return m.checkpoint(ctx, s.jobID, 45,
		fmt.Sprintf("Dockerfile stored (%d lines)", kconfig.LineCount(s.dockerfile)))
}

func (m *Manager) writeCompose(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 50, "Generating docker-compose.yml..."); err != nil {
		return err
	}

	compose, err := generate.Compose(s.manifest)
	if err != nil {
		return err
	}
	s.compose = compose
	return m.artifacts.PutString(ctx, s.jobID, generate.FileCompose, compose)
}

func (m *Manager) writeReadme(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 60, "Creating build archive..."); err != nil {
		return err
	}

	s.readme = generate.Readme(s.manifest)
	return m.artifacts.PutString(ctx, s.jobID, generate.FileReadme, s.readme)
}

// testResultsFile is the layout of test-results.json
type testResultsFile struct {
	Passed  int                   `json:"passed"`
	Total   int                   `json:"total"`
	Results []validate.TestResult `json:"results"`
}

func (m *Manager) runValidation(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 70, "Running validation suite..."); err != nil {
		return err
	}

	s.results = m.validator.Run(s.manifest, s.kernelConfig, s.script, s.dockerfile)
	s.summary = validate.Summarize(s.results)

	data, err := json.MarshalIndent(testResultsFile{
		Passed:  s.summary.Passed,
		Total:   s.summary.Total,
		Results: s.results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode test results: %w", err)
	}
	if err := m.artifacts.Put(ctx, s.jobID, generate.FileTestResults, data); err != nil {
		return err
	}

	marks := make([]string, len(s.results))
	for i, r := range s.results {
		mark := "✓"
		if !r.Pass {
			mark = "✗"
		}
		marks[i] = mark + " " + r.Name
	}
	return m.checkpoint(ctx, s.jobID, 85,
		fmt.Sprintf("Validation: %s passed [%s]", s.summary, strings.Join(marks, ", ")))
}

// writeChecksums stores checksums.sha256 and records the validation
// outcome on the job before anything is handed to the external runner.
func (m *Manager) writeChecksums(ctx context.Context, s *pipelineState) error {
	contents := map[string]string{
		generate.FileKernelConfig: s.kernelConfig,
		generate.FileBuildScript:  s.script,
		generate.FileDockerfile:   s.dockerfile,
		generate.FileCompose:      s.compose,
		generate.FileManifest:     string(s.manifestJSON),
		generate.FileReadme:       s.readme,
	}
	files := make([]generate.NamedContent, 0, len(generate.ChecksummedFiles))
	for _, name := range generate.ChecksummedFiles {
		files = append(files, generate.NamedContent{Name: name, Content: []byte(contents[name])})
	}

	sums, text := generate.Checksums(files)
	s.checksums = sums
	if err := m.artifacts.PutString(ctx, s.jobID, generate.FileChecksums, text); err != nil {
		return err
	}

	_, err := m.jobs.Update(ctx, s.jobID, func(j *db.Job) error {
		j.TestResults = &db.TestSummary{Passed: s.summary.Passed, Total: s.summary.Total}
		j.Checksums = sums
		j.Artifacts = append([]string(nil), generate.ArtifactFiles...)
		return nil
	})
	return err
}

func (m *Manager) trigger(ctx context.Context, s *pipelineState) error {
	if err := m.checkpoint(ctx, s.jobID, 88, "Triggering external ISO build..."); err != nil {
		return err
	}

	if m.dispatcher == nil || !m.dispatcher.Enabled() {
		m.metrics.IncDispatch("disabled")
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, m.config.DispatchTimeout)
	defer cancel()

	triggered, err := m.dispatcher.Trigger(dctx, s.jobID)
	switch {
	case err != nil:
		m.metrics.IncDispatch("failed")
		if ctx.Err() != nil {
			return err
		}
		if logErr := m.jobs.AppendLog(ctx, s.jobID, "WARNING: ISO build trigger failed: "+err.Error()); logErr != nil {
			return logErr
		}
	case triggered:
		m.metrics.IncDispatch("triggered")
	default:
		m.metrics.IncDispatch("disabled")
	}
	s.triggered = triggered
	return nil
}

func (m *Manager) finalize(ctx context.Context, s *pipelineState) error {
	if s.triggered {
		_, err := m.jobs.Update(ctx, s.jobID, func(j *db.Job) error {
			j.Progress = 90
			j.Status = db.StatusBuildingISO
			j.BuildRunner = db.RunnerGitHubActions
			return nil
		})
		if err != nil {
			return err
		}
		m.metrics.IncJobStatus(string(db.StatusBuildingISO))
		log.Info("Build handed to external runner", "job_id", s.jobID, "validation", s.summary.String())
		return m.jobs.AppendLog(ctx, s.jobID, fmt.Sprintf(
			"Validation: %s passed. GitHub Actions building ISO on cloud runner...", s.summary))
	}

	status := db.StatusComplete
	if !s.summary.AllPassed() {
		status = db.StatusCompleteWithWarnings
	}
	_, err := m.jobs.Update(ctx, s.jobID, func(j *db.Job) error {
		j.Progress = 100
		j.Status = status
		j.BuildRunner = db.RunnerLocal
		return nil
	})
	if err != nil {
		return err
	}
	m.metrics.IncJobStatus(string(status))
	log.Info("Build job finished", "job_id", s.jobID, "status", status, "validation", s.summary.String())
	return m.jobs.AppendLog(ctx, s.jobID, fmt.Sprintf(
		"Build %s. %s validations passed. Download artifacts and run: docker compose up --build", status, s.summary))
}
