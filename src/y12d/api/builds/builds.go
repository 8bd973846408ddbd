package builds

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/y12d/api/common"
	"github.com/bitswalk/y12/src/y12d/build"
	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/dispatch"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the builds package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// NewHandler creates a new builds handler
func NewHandler(cfg Config) *Handler {
	interval := cfg.StreamInterval
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &Handler{
		buildManager:   cfg.BuildManager,
		tokens:         cfg.Tokens,
		secret:         cfg.Secret,
		requireAuth:    cfg.RequireCallbackAuth,
		streamInterval: interval,
	}
}

// HandleCreateBuild godoc
// @Summary      Create a build job
// @Description  Resolves packages, generates the kernel config and build script, stores them and starts the pipeline
// @Tags         Builds
// @Accept       json
// @Produce      json
// @Param        request  body      build.Request  true  "Build request"
// @Success      201      {object}  build.CreateResult
// @Failure      400      {object}  common.ErrorResponse
// @Failure      429      {object}  common.ErrorResponse
// @Failure      500      {object}  common.ErrorResponse
// @Router       /api/build [post]
func (h *Handler) HandleCreateBuild(c *gin.Context) {
	var req build.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.buildManager.Submit(c.Request.Context(), req)
	if err != nil {
		log.Error("Failed to create build job", "distro", req.Distro, "mode", req.Mode, "error", err)
		common.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// HandleGetBuild godoc
// @Summary      Get a build job
// @Description  Returns the job record with its timestamped log
// @Tags         Builds
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  db.Job
// @Failure      404  {object}  common.ErrorResponse
// @Router       /api/build/{id} [get]
func (h *Handler) HandleGetBuild(c *gin.Context) {
	job, err := h.buildManager.Jobs().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// HandleProgress godoc
// @Summary      Report build progress
// @Description  Callback of the external runner. Progress never decreases; a completed status reconciles the image with storage.
// @Tags         Builds
// @Accept       json
// @Produce      json
// @Param        id        path      string          true  "Job ID"
// @Param        progress  body      build.Progress  true  "Partial update"
// @Success      200       {object}  ProgressResponse
// @Failure      400       {object}  common.ErrorResponse
// @Failure      401       {object}  common.ErrorResponse
// @Failure      404       {object}  common.ErrorResponse
// @Failure      409       {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /api/build/{id}/progress [post]
func (h *Handler) HandleProgress(c *gin.Context) {
	id := c.Param("id")
	if h.requireAuth && !h.authorizeCallback(c, id) {
		common.Unauthorized(c, "A valid job token or build secret is required")
		return
	}

	var p build.Progress
	if err := c.ShouldBindJSON(&p); err != nil {
		common.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.buildManager.ApplyProgress(c.Request.Context(), id, p)
	if err != nil {
		log.Warn("Rejected progress callback", "job_id", id, "status", p.Status, "error", err)
		common.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ProgressResponse{OK: true, Status: job.Status, Progress: job.Progress})
}

// authorizeCallback accepts the per-job token or the shared build secret
func (h *Handler) authorizeCallback(c *gin.Context, id string) bool {
	token, ok := dispatch.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		return false
	}
	if h.secret.Verify(token) {
		return true
	}
	return h.tokens != nil && h.tokens.Verify(token, id) == nil
}

// HandleStreamBuild godoc
// @Summary      Stream build logs
// @Description  Server-sent events: "status" on every status or progress change, "log" for each new line, "done" once the job is finished
// @Tags         Builds
// @Produce      text/event-stream
// @Param        id   path  string  true  "Job ID"
// @Success      200
// @Failure      404  {object}  common.ErrorResponse
// @Router       /api/build/{id}/stream [get]
func (h *Handler) HandleStreamBuild(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	jobs := h.buildManager.Jobs()

	if _, err := jobs.Get(ctx, id); err != nil {
		common.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	var lastID int64
	var lastStatus db.JobStatus
	lastProgress := -1

	c.Stream(func(w io.Writer) bool {
		job, err := jobs.Get(ctx, id)
		if err != nil {
			return false
		}

		if job.Status != lastStatus || job.Progress != lastProgress {
			data, _ := json.Marshal(StatusEvent{Status: job.Status, Progress: job.Progress, Error: job.Error})
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			lastStatus = job.Status
			lastProgress = job.Progress
		}

		entries, err := jobs.GetLogsSince(ctx, id, lastID)
		if err != nil {
			return false
		}
		for _, entry := range entries {
			data, _ := json.Marshal(entry)
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			if entry.ID > lastID {
				lastID = entry.ID
			}
		}

		if job.Status.IsTerminal() && len(entries) == 0 {
			fmt.Fprintf(w, "event: done\ndata: {\"status\":%q}\n\n", job.Status)
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.streamInterval):
			return true
		}
	})
}
