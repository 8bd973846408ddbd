package builds

import (
	"time"

	"github.com/bitswalk/y12/src/y12d/build"
	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/dispatch"
)

// DefaultStreamInterval is the poll period of the log stream
const DefaultStreamInterval = time.Second

// Handler handles build job requests
type Handler struct {
	buildManager   *build.Manager
	tokens         *dispatch.TokenIssuer
	secret         *dispatch.SecretVerifier
	requireAuth    bool
	streamInterval time.Duration
}

// Config contains configuration options for the Handler
type Config struct {
	BuildManager *build.Manager
	Tokens       *dispatch.TokenIssuer
	Secret       *dispatch.SecretVerifier
	// RequireCallbackAuth makes the progress callback demand a job token or
	// the build secret
	RequireCallbackAuth bool
	StreamInterval      time.Duration
}

// ProgressResponse acknowledges a progress callback
type ProgressResponse struct {
	OK       bool         `json:"ok" example:"true"`
	Status   db.JobStatus `json:"status" example:"building_iso"`
	Progress int          `json:"progress" example:"95"`
}

// StatusEvent is the payload of a "status" stream event
type StatusEvent struct {
	Status   db.JobStatus `json:"status"`
	Progress int          `json:"progress"`
	Error    string       `json:"error,omitempty"`
}
