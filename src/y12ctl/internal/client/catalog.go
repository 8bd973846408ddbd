package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Distro is one supported base distribution
type Distro struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Tagline        string `json:"tagline"`
	PackageManager string `json:"pkg_manager"`
	BaseImage      string `json:"base_image"`
}

// DistrosResponse lists supported distributions and modes
type DistrosResponse struct {
	Count   int      `json:"count"`
	Modes   []string `json:"modes"`
	Distros []Distro `json:"distros"`
}

// ValidateRequest names overlays and custom packages to check
type ValidateRequest struct {
	Distro         string   `json:"distro"`
	Overlays       []string `json:"overlays"`
	CustomSoftware []string `json:"custom_software"`
}

// OverlayResult is the verdict for one overlay
type OverlayResult struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Packages []string `json:"packages"`
	Note     string   `json:"note"`
}

// CustomResult is the install command for one custom package
type CustomResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Command string `json:"command"`
	Note    string `json:"note"`
}

// ValidateResponse is the overlay dry run report
type ValidateResponse struct {
	Distro         string          `json:"distro"`
	PackageManager string          `json:"pkg_manager"`
	Overlays       []OverlayResult `json:"overlays"`
	CustomSoftware []CustomResult  `json:"custom_software"`
}

// BackendStatus is the health of one backend
type BackendStatus struct {
	OK       bool   `json:"ok"`
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HealthResponse matches GET /api/health
type HealthResponse struct {
	Status    string         `json:"status"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	JobStore  BackendStatus  `json:"job_store"`
	Storage   BackendStatus  `json:"storage"`
	AI        bool           `json:"ai"`
	Dispatch  string         `json:"dispatch,omitempty"`
	Jobs      map[string]int `json:"jobs"`
}

// VersionResponse matches GET /v1/version
type VersionResponse struct {
	Version        string `json:"version"`
	ReleaseName    string `json:"release_name"`
	ReleaseVersion string `json:"release_version"`
	BuildDate      string `json:"build_date"`
	GitCommit      string `json:"git_commit"`
	GoVersion      string `json:"go_version"`
}

// TestResult is one self-test check
type TestResult struct {
	Name    string `json:"name"`
	Pass    bool   `json:"pass"`
	Message string `json:"msg"`
}

// SelfTestResponse matches GET /api/test
type SelfTestResponse struct {
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
	Tests  []TestResult `json:"tests"`
}

// ListDistros returns the supported distributions
func (c *Client) ListDistros(ctx context.Context) (*DistrosResponse, error) {
	var resp DistrosResponse
	if err := c.Get(ctx, "/api/distros", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateOverlays runs the overlay dry run
func (c *Client) ValidateOverlays(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := c.Post(ctx, "/api/validate-overlays", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns the service health. A degraded service answers 503 with
// the same body, which is decoded rather than returned as an error.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.Get(ctx, "/api/health", &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		if json.Unmarshal([]byte(apiErr.Message), &resp) == nil {
			return &resp, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the server version
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	var resp VersionResponse
	if err := c.Get(ctx, "/v1/version", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SelfTest runs the server self-test
func (c *Client) SelfTest(ctx context.Context) (*SelfTestResponse, error) {
	var resp SelfTestResponse
	if err := c.Get(ctx, "/api/test", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
