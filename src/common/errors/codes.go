package errors

import "net/http"

const (
	CodeNotFound       Code = "not_found"
	CodeInvalidRequest Code = "invalid_request"
	CodeUnauthorized   Code = "unauthorized"
	CodeConflict       Code = "conflict"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "unavailable"
	CodeTimeout        Code = "timeout"
	CodeRateLimited    Code = "rate_limited"
)

// ============================================================================
// Job Errors
// ============================================================================

var (
	ErrJobNotFound = New(DomainJob, CodeNotFound, http.StatusNotFound,
		"Build not found")

	// ErrJobNotComplete is returned when artifacts are requested before the job finished
	ErrJobNotComplete = New(DomainJob, "not_complete", http.StatusBadRequest,
		"Build not complete yet")

	// ErrJobTransition is returned for a status change the state machine does not allow
	ErrJobTransition = New(DomainJob, "invalid_transition", http.StatusConflict,
		"Invalid status transition")

	ErrJobTerminal = New(DomainJob, "terminal", http.StatusConflict,
		"Build already finished")

	ErrJobConflict = New(DomainJob, CodeConflict, http.StatusConflict,
		"Build was modified concurrently, retry")
)

// ============================================================================
// Artifact Errors
// ============================================================================

var (
	ErrArtifactNotFound = New(DomainArtifact, CodeNotFound, http.StatusNotFound,
		"File not found")

	ErrImageNotReady = New(DomainArtifact, "image_not_ready", http.StatusBadRequest,
		"ISO not yet available")

	ErrImageNotFound = New(DomainArtifact, "image_not_found", http.StatusNotFound,
		"ISO not found in storage")

	ErrChecksumMismatch = New(DomainArtifact, "checksum_mismatch", http.StatusBadRequest,
		"Uploaded ISO does not match X-ISO-SHA256")

	ErrEmptyBody = New(DomainArtifact, "empty_body", http.StatusBadRequest,
		"No body provided")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	ErrStorageUploadFailed = New(DomainStorage, "upload_failed", http.StatusInternalServerError,
		"Failed to upload object to storage")

	ErrStorageVerifyFailed = New(DomainStorage, "verify_failed", http.StatusInternalServerError,
		"Upload verification failed, object not found after put")

	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, http.StatusServiceUnavailable,
		"Storage backend unavailable")
)

// ============================================================================
// Database Errors
// ============================================================================

var (
	ErrDatabaseQuery = New(DomainDatabase, "query_failed", http.StatusInternalServerError,
		"Database query failed")
)

// ============================================================================
// Validation Errors
// ============================================================================

var (
	ErrInvalidJSON = New(DomainValidation, "invalid_json", http.StatusBadRequest,
		"Invalid JSON")

	ErrMissingRequiredField = New(DomainValidation, "missing_field", http.StatusBadRequest,
		"Missing required field")

	ErrInvalidFieldValue = New(DomainValidation, "invalid_value", http.StatusBadRequest,
		"Invalid field value")
)

// ============================================================================
// Auth Errors
// ============================================================================

var (
	// ErrUnauthorized covers a missing or wrong upload secret or callback token
	ErrUnauthorized = New(DomainAuth, CodeUnauthorized, http.StatusUnauthorized,
		"Unauthorized")

	ErrRateLimited = New(DomainAuth, CodeRateLimited, http.StatusTooManyRequests,
		"Too many requests")
)

// ============================================================================
// Dispatch Errors
// ============================================================================

var (
	ErrDispatchFailed = New(DomainDispatch, "dispatch_failed", http.StatusBadGateway,
		"Workflow dispatch failed")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	ErrInternal = New(DomainInternal, CodeInternal, http.StatusInternalServerError,
		"Internal server error")

	ErrUnavailable = New(DomainInternal, CodeUnavailable, http.StatusServiceUnavailable,
		"Service is shutting down")
)
