// Package api wires the y12d HTTP handlers, middleware and routes.
package api

import (
	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/common/version"
	"github.com/bitswalk/y12/src/y12d/api/artifacts"
	"github.com/bitswalk/y12/src/y12d/api/base"
	"github.com/bitswalk/y12/src/y12d/api/builds"
	"github.com/bitswalk/y12/src/y12d/api/overlays"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the api package and subpackages
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
	builds.SetLogger(l)
	artifacts.SetLogger(l)
}

// SetVersionInfo sets the version info for the api package and subpackages
func SetVersionInfo(v *version.Info) {
	base.SetVersionInfo(v)
}

// New creates a new API instance with all subpackage handlers
func New(cfg Config) *API {
	a := &API{
		Base: base.NewHandler(base.Config{
			BuildManager:   cfg.BuildManager,
			AIEnabled:      cfg.AIEnabled,
			DispatchTarget: cfg.DispatchTarget,
		}),

		Builds: builds.NewHandler(builds.Config{
			BuildManager:        cfg.BuildManager,
			Tokens:              cfg.Tokens,
			Secret:              cfg.Secret,
			RequireCallbackAuth: cfg.RequireCallbackAuth,
			StreamInterval:      cfg.StreamInterval,
		}),

		Artifacts: artifacts.NewHandler(artifacts.Config{
			BuildManager: cfg.BuildManager,
			Secret:       cfg.Secret,
		}),

		Overlays: overlays.NewHandler(overlays.Config{
			Catalog: cfg.BuildManager.Catalog(),
		}),

		metrics: cfg.Metrics,
	}

	if cfg.RateLimit.Enabled {
		a.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}
	return a
}

// Close stops the background work of the API
func (a *API) Close() {
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
}
