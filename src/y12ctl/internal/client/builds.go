package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// BuildRequest describes a build kit to generate
type BuildRequest struct {
	Distro          string   `json:"distro"`
	Mode            string   `json:"mode"`
	HardwareRaw     string   `json:"hardware_raw,omitempty"`
	AIMode          bool     `json:"ai_mode"`
	Overlays        []string `json:"overlays,omitempty"`
	CustomSoftware  []string `json:"custom_software,omitempty"`
	DetectedModules []string `json:"detected_modules,omitempty"`
}

// CreateBuildResponse is returned once the pipeline has run
type CreateBuildResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	AIModel           string `json:"ai_model"`
	KernelConfigLines int    `json:"kernel_config_lines"`
	Packages          int    `json:"packages"`
	R2Prefix          string `json:"r2_prefix"`
}

// TestSummary counts passed validation checks
type TestSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// Job is a build job as stored by the server
type Job struct {
	ID                string            `json:"id"`
	Distro            string            `json:"distro"`
	Mode              string            `json:"mode"`
	Status            string            `json:"status"`
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
	TestResults       *TestSummary      `json:"test_results,omitempty"`
	Checksums         map[string]string `json:"checksums,omitempty"`
	Artifacts         []string          `json:"artifacts,omitempty"`
	BuildRunner       string            `json:"build_runner,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// Terminal reports whether the job will not change anymore
func (j *Job) Terminal() bool {
	switch j.Status {
	case "complete", "complete_with_warnings", "failed":
		return true
	}
	return false
}

// ArtifactLink names one downloadable file
type ArtifactLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImageLink describes an uploaded image
type ImageLink struct {
	URL    string `json:"url"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256,omitempty"`
}

// ArtifactsResponse lists the files of a finished job
type ArtifactsResponse struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Artifacts   []ArtifactLink    `json:"artifacts"`
	TestResults *TestSummary      `json:"test_results,omitempty"`
	Checksums   map[string]string `json:"checksums,omitempty"`
	BundleURL   string            `json:"bundle_url"`
	ISO         *ImageLink        `json:"iso,omitempty"`
}

// CreateBuild submits a build request and waits for the generation pipeline
func (c *Client) CreateBuild(ctx context.Context, req *BuildRequest) (*CreateBuildResponse, error) {
	var resp CreateBuildResponse
	if err := c.Post(ctx, "/api/build", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBuild returns a build job
func (c *Client) GetBuild(ctx context.Context, id string) (*Job, error) {
	var resp Job
	if err := c.Get(ctx, buildPath(id, ""), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListArtifacts returns the artifact links of a finished job
func (c *Client) ListArtifacts(ctx context.Context, id string) (*ArtifactsResponse, error) {
	var resp ArtifactsResponse
	if err := c.Get(ctx, buildPath(id, "/download"), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func buildPath(id, suffix string) string {
	return fmt.Sprintf("/api/build/%s%s", url.PathEscape(id), suffix)
}
