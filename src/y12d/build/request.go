package build

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest is returned for a build request missing required fields
	ErrInvalidRequest = errors.New("invalid build request")

	// ErrUnknownStatus is returned by ApplyProgress for a status it does not know
	ErrUnknownStatus = errors.New("unknown status")

	// ErrNotRunning is returned by Submit before Start or after Stop
	ErrNotRunning = errors.New("build manager is not running")

	// ErrChecksumMismatch is returned when an uploaded image does not match
	// the checksum announced by the uploader
	ErrChecksumMismatch = errors.New("image checksum mismatch")

	// ErrUploadNotVerified is returned when the stored image is missing or
	// has a different size right after it was written
	ErrUploadNotVerified = errors.New("upload verification failed")
)

// Request is a build request as submitted by a client
type Request struct {
	Distro          string   `json:"distro" example:"debian"`
	Mode            string   `json:"mode" example:"server"`
	HardwareRaw     string   `json:"hardware_raw"`
	AIMode          bool     `json:"ai_mode"`
	Overlays        []string `json:"overlays"`
	CustomSoftware  []string `json:"custom_software"`
	DetectedModules []string `json:"detected_modules"`
}

// Normalize trims identifiers and replaces nil lists with empty ones.
// Order and duplicates are kept.
func (r *Request) Normalize() {
	r.Distro = strings.TrimSpace(r.Distro)
	r.Mode = strings.TrimSpace(r.Mode)
	r.Overlays = trimAll(r.Overlays)
	r.CustomSoftware = trimAll(r.CustomSoftware)
	r.DetectedModules = trimAll(r.DetectedModules)
}

// Validate checks the fields a manifest cannot be built without. Unknown
// distros and modes are accepted here and reported by the validation suite.
func (r *Request) Validate() error {
	var missing []string
	if r.Distro == "" {
		missing = append(missing, "distro")
	}
	if r.Mode == "" {
		missing = append(missing, "mode")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CreateResult is returned to the client once a job exists
type CreateResult struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	AIModel           string `json:"ai_model"`
	KernelConfigLines int    `json:"kernel_config_lines"`
	Packages          int    `json:"packages"`
	R2Prefix          string `json:"r2_prefix"`
}

// Progress is a partial update reported by the external runner
type Progress struct {
	Progress *int   `json:"progress,omitempty"`
	Log      string `json:"log,omitempty"`
	Status   string `json:"status,omitempty"`
}
