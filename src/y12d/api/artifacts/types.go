package artifacts

import (
	"time"

	"github.com/bitswalk/y12/src/y12d/build"
	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/dispatch"
)

// PresignExpiry bounds the lifetime of a redirect to the stored image
const PresignExpiry = 15 * time.Minute

// Handler handles artifact and image requests of build jobs
type Handler struct {
	buildManager *build.Manager
	secret       *dispatch.SecretVerifier
}

// Config contains configuration options for the Handler
type Config struct {
	BuildManager *build.Manager
	// Secret authorizes image uploads. Uploads are refused when unset.
	Secret *dispatch.SecretVerifier
}

// ArtifactLink names one downloadable file
type ArtifactLink struct {
	Name string `json:"name" example:"build.sh"`
	URL  string `json:"url" example:"/api/build/0b7c.../file/build.sh"`
}

// ImageLink describes the final image when it is available
type ImageLink struct {
	URL    string `json:"url" example:"/api/build/0b7c.../iso"`
	Size   int64  `json:"size" example:"734003200"`
	SHA256 string `json:"sha256,omitempty"`
}

// DownloadResponse lists the artifacts of a finished job
type DownloadResponse struct {
	ID          string            `json:"id"`
	Status      db.JobStatus      `json:"status" example:"complete_with_warnings"`
	Artifacts   []ArtifactLink    `json:"artifacts"`
	TestResults *db.TestSummary   `json:"test_results,omitempty"`
	Checksums   map[string]string `json:"checksums,omitempty"`
	BundleURL   string            `json:"bundle_url" example:"/api/build/0b7c.../bundle"`
	ISO         *ImageLink        `json:"iso,omitempty"`
}

// UploadResponse acknowledges a stored image
type UploadResponse struct {
	OK     bool   `json:"ok" example:"true"`
	R2Key  string `json:"r2_key" example:"builds/0b7c.../output.iso"`
	Size   int64  `json:"size" example:"734003200"`
	SHA256 string `json:"sha256"`
}
