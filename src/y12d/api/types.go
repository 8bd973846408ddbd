package api

import (
	"time"

	"github.com/bitswalk/y12/src/y12d/api/artifacts"
	"github.com/bitswalk/y12/src/y12d/api/base"
	"github.com/bitswalk/y12/src/y12d/api/builds"
	"github.com/bitswalk/y12/src/y12d/api/common"
	"github.com/bitswalk/y12/src/y12d/api/overlays"
	"github.com/bitswalk/y12/src/y12d/build"
	"github.com/bitswalk/y12/src/y12d/dispatch"
	"github.com/bitswalk/y12/src/y12d/metrics"
)

// ErrorResponse is an alias to common.ErrorResponse
type ErrorResponse = common.ErrorResponse

// API holds all handler instances and dependencies
type API struct {
	// Subpackage handlers
	Base      *base.Handler
	Builds    *builds.Handler
	Artifacts *artifacts.Handler
	Overlays  *overlays.Handler

	// Direct dependencies for middleware
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
}

// Config contains API configuration options
type Config struct {
	BuildManager *build.Manager
	Tokens       *dispatch.TokenIssuer
	Secret       *dispatch.SecretVerifier
	Metrics      *metrics.Metrics
	RateLimit    RateLimitConfig

	// RequireCallbackAuth protects the progress callback
	RequireCallbackAuth bool
	// AIEnabled and DispatchTarget are reported by the service health
	AIEnabled      bool
	DispatchTarget string
	// StreamInterval is the poll period of the log stream
	StreamInterval time.Duration
}
