package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesDomainAndCode(t *testing.T) {
	custom := ErrJobNotFound.WithMessage("job abc not found")
	if !Is(custom, ErrJobNotFound) {
		t.Fatal("expected WithMessage copy to match its sentinel")
	}
	if Is(custom, ErrArtifactNotFound) {
		t.Fatal("different domains must not match")
	}
}

func TestWrapAndStatus(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := fmt.Errorf("failed to store: %w", ErrStorageUploadFailed.WithCause(cause))

	if got := GetHTTPStatus(err); got != http.StatusInternalServerError {
		t.Errorf("GetHTTPStatus() = %d, want 500", got)
	}
	if got := GetCode(err); got != "upload_failed" {
		t.Errorf("GetCode() = %q", got)
	}
	if !Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if got := GetHTTPStatus(cause); got != 500 {
		t.Errorf("plain error status = %d, want 500", got)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse(ErrJobTransition.WithMessagef("cannot move from %s to %s", "failed", "complete"))
	if r.Reason != "job.invalid_transition" {
		t.Errorf("Reason = %q", r.Reason)
	}
	if r.Code != http.StatusConflict || r.Error != "Conflict" {
		t.Errorf("Code = %d, Error = %q", r.Code, r.Error)
	}
	if r.Message != "cannot move from failed to complete" {
		t.Errorf("Message = %q", r.Message)
	}

	generic := NewResponse(fmt.Errorf("boom"))
	if generic.Reason != "internal.internal_error" || generic.Code != http.StatusInternalServerError {
		t.Errorf("generic = %+v", generic)
	}
}
