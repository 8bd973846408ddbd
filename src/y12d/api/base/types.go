package base

import (
	"github.com/bitswalk/y12/src/y12d/build"
	"github.com/bitswalk/y12/src/y12d/catalog"
	"github.com/bitswalk/y12/src/y12d/db"
)

// Handler handles discovery, health, version, distro and self-test requests
type Handler struct {
	manager        *build.Manager
	aiEnabled      bool
	dispatchTarget string
}

// Config contains the dependencies of the base handler
type Config struct {
	BuildManager *build.Manager
	// AIEnabled reports whether a completion service is configured
	AIEnabled bool
	// DispatchTarget names the workflow repository, empty when dispatch is off
	DispatchTarget string
}

// APIInfo represents the root API discovery response
type APIInfo struct {
	Name        string           `json:"name" example:"y12d"`
	Description string           `json:"description" example:"y12 build orchestration API"`
	Version     string           `json:"version" example:"1.0.0"`
	APIVersions []string         `json:"api_versions" example:"v1"`
	Endpoints   APIInfoEndpoints `json:"endpoints"`
}

// APIInfoEndpoints contains the available API endpoints
type APIInfoEndpoints struct {
	Health           string `json:"health" example:"/v1/health"`
	Version          string `json:"version" example:"/v1/version"`
	ServiceHealth    string `json:"service_health" example:"/api/health"`
	Distros          string `json:"distros" example:"/api/distros"`
	Build            string `json:"build" example:"/api/build"`
	ValidateOverlays string `json:"validate_overlays" example:"/api/validate-overlays"`
	SelfTest         string `json:"self_test" example:"/api/test"`
	Metrics          string `json:"metrics" example:"/metrics"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status" example:"healthy"`
	Timestamp string `json:"timestamp" example:"2026-01-15T10:30:00Z"`
}

// VersionResponse represents the version information response
type VersionResponse struct {
	Version        string `json:"version" example:"Kestrel (2026.10) - v0.4.0-1a2b3c4"`
	ReleaseName    string `json:"release_name" example:"Kestrel"`
	ReleaseVersion string `json:"release_version" example:"0.4.0"`
	BuildDate      string `json:"build_date" example:"2026-01-15T10:30:00Z"`
	GitCommit      string `json:"git_commit" example:"1a2b3c4"`
	GoVersion      string `json:"go_version" example:"go1.24"`
}

// BackendStatus reports one dependency of the service
type BackendStatus struct {
	OK       bool   `json:"ok"`
	Type     string `json:"type,omitempty" example:"local"`
	Location string `json:"location,omitempty" example:"/var/lib/y12/artifacts"`
	Error    string `json:"error,omitempty"`
}

// ServiceHealthResponse is the detailed health of the service backends
type ServiceHealthResponse struct {
	Status    string               `json:"status" example:"ok"`
	Service   string               `json:"service" example:"y12d"`
	Version   string               `json:"version" example:"v0.4.0-1a2b3c4"`
	Timestamp string               `json:"timestamp" example:"2026-01-15T10:30:00Z"`
	JobStore  BackendStatus        `json:"job_store"`
	Storage   BackendStatus        `json:"storage"`
	AI        bool                 `json:"ai"`
	Dispatch  string               `json:"dispatch,omitempty" example:"bitswalk/y12-builder"`
	Jobs      map[db.JobStatus]int `json:"jobs"`
}

// DistrosResponse lists the supported distros
type DistrosResponse struct {
	Count   int              `json:"count" example:"6"`
	Modes   []string         `json:"modes" example:"desktop,server"`
	Distros []catalog.Distro `json:"distros"`
}
