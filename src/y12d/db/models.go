package db

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrJobNotFound is returned for unknown or expired jobs
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal is returned when modifying a failed or complete job
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrVersionConflict is returned when an update keeps losing the version race
	ErrVersionConflict = errors.New("job was modified concurrently")

	// ErrInvalidTransition is returned when a status change is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")
)

// JobStatus represents the lifecycle state of a build job
type JobStatus string

const (
	StatusBuilding             JobStatus = "building"
	StatusBuildingISO          JobStatus = "building_iso"
	StatusComplete             JobStatus = "complete"
	StatusCompleteWithWarnings JobStatus = "complete_with_warnings"
	StatusFailed               JobStatus = "failed"
)

// Build runners recorded on a job
const (
	RunnerGitHubActions = "github_actions"
	RunnerLocal         = "local"
)

var allStatuses = []JobStatus{
	StatusBuilding,
	StatusBuildingISO,
	StatusComplete,
	StatusCompleteWithWarnings,
	StatusFailed,
}

// ParseStatus validates a status string
func ParseStatus(s string) (JobStatus, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible
func (s JobStatus) IsTerminal() bool {
	return s == StatusFailed || s.IsComplete()
}

// IsComplete reports complete and complete_with_warnings
func (s JobStatus) IsComplete() bool {
	return strings.HasPrefix(string(s), "complete")
}

// CanTransition reports whether a job in s may move to next.
// Staying in the same non-terminal status is allowed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusBuilding:
		return s == StatusBuilding
	case StatusBuildingISO:
		return s == StatusBuilding || s == StatusBuildingISO
	case StatusComplete, StatusCompleteWithWarnings, StatusFailed:
		return true
	}
	return false
}

// TestSummary is the stored validation outcome
type TestSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// Job is one build job record
type Job struct {
	ID                string            `json:"id"`
	Distro            string            `json:"distro"`
	Mode              string            `json:"mode"`
	Status            JobStatus         `json:"status"`
	Progress          int               `json:"progress"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	ExpiresAt         time.Time         `json:"expires_at"`
	Packages          []string          `json:"packages"`
	CustomSoftware    []string          `json:"custom_software"`
	Overlays          []string          `json:"overlays"`
	AIModel           string            `json:"ai_model"`
	KernelConfigLines int               `json:"kernel_config_lines"`
	R2Prefix          string            `json:"r2_prefix"`
	BuildScriptHash   string            `json:"build_script_hash"`
	Logs              []string          `json:"logs"`
	ISOUploaded       bool              `json:"iso_uploaded"`
	ISOSize           int64             `json:"iso_size,omitempty"`
	ISOSHA256         string            `json:"iso_sha256,omitempty"`
	ISOR2Key          string            `json:"iso_r2_key,omitempty"`
	TestResults       *TestSummary      `json:"test_results,omitempty"`
	Checksums         map[string]string `json:"checksums,omitempty"`
	Artifacts         []string          `json:"artifacts,omitempty"`
	BuildRunner       string            `json:"build_runner,omitempty"`
	Error             string            `json:"error,omitempty"`
	Version           int64             `json:"version"`
}

// JobLog is one append-only log line
type JobLog struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LogTimeFormat renders log timestamps with millisecond precision
const LogTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// String renders the line as "[timestamp] message"
func (l JobLog) String() string {
	return fmt.Sprintf("[%s] %s", l.CreatedAt.UTC().Format(LogTimeFormat), l.Message)
}
