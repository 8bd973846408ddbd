package base

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/y12/src/common/version"
	"github.com/bitswalk/y12/src/y12d/build"
)

var VersionInfo = version.New()

// SetVersionInfo sets the version info for the base package
func SetVersionInfo(v *version.Info) {
	if v != nil {
		VersionInfo = v
	}
}

// NewHandler creates a new base handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		manager:        cfg.BuildManager,
		aiEnabled:      cfg.AIEnabled,
		dispatchTarget: cfg.DispatchTarget,
	}
}

// HandleRoot returns API discovery information
func (h *Handler) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, APIInfo{
		Name:        "y12d",
		Description: "y12 build orchestration API",
		Version:     VersionInfo.Version,
		APIVersions: []string{"v1"},
		Endpoints: APIInfoEndpoints{
			Health:           "/v1/health",
			Version:          "/v1/version",
			ServiceHealth:    "/api/health",
			Distros:          "/api/distros",
			Build:            "/api/build",
			ValidateOverlays: "/api/validate-overlays",
			SelfTest:         "/api/test",
			Metrics:          "/metrics",
		},
	})
}

// HandleHealth returns the liveness of the server
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleVersion returns version and build information for the server
func (h *Handler) HandleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{
		Version:        VersionInfo.Version,
		ReleaseName:    VersionInfo.ReleaseName,
		ReleaseVersion: VersionInfo.ReleaseVersion,
		BuildDate:      VersionInfo.BuildDate,
		GitCommit:      VersionInfo.GitCommit,
		GoVersion:      version.GoVersion(),
	})
}

// HandleServiceHealth godoc
// @Summary      Service health
// @Description  Checks the job store and the artifact store and reports which integrations are configured
// @Tags         System
// @Produce      json
// @Success      200  {object}  ServiceHealthResponse
// @Failure      503  {object}  ServiceHealthResponse
// @Router       /api/health [get]
func (h *Handler) HandleServiceHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := ServiceHealthResponse{
		Status:    "ok",
		Service:   "y12d",
		Version:   VersionInfo.Short(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		AI:        h.aiEnabled,
		Dispatch:  h.dispatchTarget,
	}

	counts, err := h.manager.Jobs().CountActive(ctx)
	resp.JobStore = BackendStatus{OK: err == nil, Type: "sqlite"}
	if err != nil {
		resp.JobStore.Error = err.Error()
	}
	resp.Jobs = counts

	backend := h.manager.Artifacts().Backend()
	resp.Storage = BackendStatus{OK: true, Type: backend.Type(), Location: backend.Location()}
	if err := backend.Ping(ctx); err != nil {
		resp.Storage.OK = false
		resp.Storage.Error = err.Error()
	}

	status := http.StatusOK
	if !resp.JobStore.OK || !resp.Storage.OK {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// HandleListDistros godoc
// @Summary      List distros
// @Description  Returns the supported target distributions with their package manager and base image
// @Tags         Catalog
// @Produce      json
// @Success      200  {object}  DistrosResponse
// @Router       /api/distros [get]
func (h *Handler) HandleListDistros(c *gin.Context) {
	cat := h.manager.Catalog()
	c.JSON(http.StatusOK, DistrosResponse{
		Count:   len(cat.Distros),
		Modes:   cat.Modes,
		Distros: cat.Distros,
	})
}

// HandleSelfTest godoc
// @Summary      Self-test
// @Description  Exercises the completion service, both stores and every generator
// @Tags         System
// @Produce      json
// @Success      200  {object}  build.SelfTestReport
// @Router       /api/test [get]
func (h *Handler) HandleSelfTest(c *gin.Context) {
	var report build.SelfTestReport = h.manager.SelfTest(c.Request.Context())
	c.JSON(http.StatusOK, report)
}
