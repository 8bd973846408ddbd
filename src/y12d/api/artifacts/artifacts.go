package artifacts

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulikunitz/xz"

	apierrors "github.com/bitswalk/y12/src/common/errors"
	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/y12d/api/common"
	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/dispatch"
	"github.com/bitswalk/y12/src/y12d/generate"
	"github.com/bitswalk/y12/src/y12d/storage"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the artifacts package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// NewHandler creates a new artifacts handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		buildManager: cfg.BuildManager,
		secret:       cfg.Secret,
	}
}

func fileURL(id, name string) string {
	return fmt.Sprintf("/api/build/%s/file/%s", id, name)
}

func isoFileName(job *db.Job) string {
	m := generate.Manifest{JobID: job.ID, Distro: job.Distro, Mode: job.Mode}
	return m.ISOName() + ".iso"
}

// completedJob loads a job and answers 400 unless it has finished successfully
func (h *Handler) completedJob(c *gin.Context) (*db.Job, bool) {
	job, err := h.buildManager.Jobs().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return nil, false
	}
	if !job.Status.IsComplete() {
		common.ErrorWithDetails(c, apierrors.ErrJobNotComplete, gin.H{
			"status":   job.Status,
			"progress": job.Progress,
		})
		return nil, false
	}
	return job, true
}

// HandleListArtifacts godoc
// @Summary      List build artifacts
// @Description  Lists the downloadable files of a finished job with its validation summary and checksums
// @Tags         Artifacts
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  DownloadResponse
// @Failure      400  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Router       /api/build/{id}/download [get]
func (h *Handler) HandleListArtifacts(c *gin.Context) {
	job, ok := h.completedJob(c)
	if !ok {
		return
	}

	names := job.Artifacts
	if len(names) == 0 {
		names = generate.ArtifactFiles
	}
	links := make([]ArtifactLink, 0, len(names))
	for _, name := range names {
		links = append(links, ArtifactLink{Name: name, URL: fileURL(job.ID, name)})
	}

	resp := DownloadResponse{
		ID:          job.ID,
		Status:      job.Status,
		Artifacts:   links,
		TestResults: job.TestResults,
		Checksums:   job.Checksums,
		BundleURL:   fmt.Sprintf("/api/build/%s/bundle", job.ID),
	}
	if job.ISOUploaded {
		resp.ISO = &ImageLink{
			URL:    fmt.Sprintf("/api/build/%s/iso", job.ID),
			Size:   job.ISOSize,
			SHA256: job.ISOSHA256,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDownloadFile godoc
// @Summary      Download one artifact
// @Description  Streams a generated file of the job as an attachment. Only the artifact file names are served.
// @Tags         Artifacts
// @Produce      octet-stream
// @Param        id        path  string  true  "Job ID"
// @Param        filename  path  string  true  "Artifact file name"
// @Success      200
// @Failure      404  {object}  common.ErrorResponse
// @Router       /api/build/{id}/file/{filename} [get]
func (h *Handler) HandleDownloadFile(c *gin.Context) {
	id := c.Param("id")
	filename := c.Param("filename")
	if !generate.IsArtifact(filename) {
		common.NotFound(c, "File not found")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.buildManager.Jobs().Get(ctx, id); err != nil {
		common.Error(c, err)
		return
	}

	rc, info, err := h.buildManager.Artifacts().Open(ctx, id, filename)
	if storage.IsNotFound(err) {
		common.NotFound(c, "File not found in storage")
		return
	}
	if err != nil {
		log.Error("Failed to open artifact", "job_id", id, "file", filename, "error", err)
		common.Error(c, apierrors.ErrStorageUnavailable.WithCause(err))
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, info.Size, generate.ContentType(filename), rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}

// HandleDownloadBundle godoc
// @Summary      Download all artifacts
// @Description  Returns every stored text artifact of a finished job as one tar.xz archive
// @Tags         Artifacts
// @Produce      application/x-xz
// @Param        id   path  string  true  "Job ID"
// @Success      200
// @Failure      400  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Router       /api/build/{id}/bundle [get]
func (h *Handler) HandleDownloadBundle(c *gin.Context) {
	job, ok := h.completedJob(c)
	if !ok {
		return
	}

	data, err := h.bundle(c, job.ID)
	if err != nil {
		log.Error("Failed to build artifact bundle", "job_id", job.ID, "error", err)
		common.Error(c, err)
		return
	}

	name := fmt.Sprintf("y12-%s-artifacts.tar.xz", job.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/x-xz", data)
}

// bundle packs the stored artifacts under a directory named after the job.
// Files missing from storage are skipped.
func (h *Handler) bundle(c *gin.Context, id string) ([]byte, error) {
	ctx := c.Request.Context()
	store := h.buildManager.Artifacts()

	var buf bytes.Buffer
	xzw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}
	tw := tar.NewWriter(xzw)

	now := time.Now().UTC()
	for _, name := range generate.ArtifactFiles {
		content, err := store.Get(ctx, id, name)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hdr := &tar.Header{
			Name:    id + "/" + name,
			Mode:    0o644,
			Size:    int64(len(content)),
			ModTime: now,
		}
		if name == generate.FileBuildScript {
			hdr.Mode = 0o755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write tar header: %w", err)
		}
		if _, err := tw.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close xz writer: %w", err)
	}
	return buf.Bytes(), nil
}

// HandleUploadImage godoc
// @Summary      Upload the final image
// @Description  Streams the ISO produced by the external runner into storage. The checksum announced in X-ISO-SHA256 is checked against the received bytes.
// @Tags         Artifacts
// @Accept       octet-stream
// @Produce      json
// @Param        id            path    string  true   "Job ID"
// @Param        X-ISO-SHA256  header  string  false  "SHA-256 of the image"
// @Param        X-ISO-Size    header  int     false  "Image size when Content-Length is absent"
// @Success      200  {object}  UploadResponse
// @Failure      400  {object}  common.ErrorResponse
// @Failure      401  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Failure      500  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /api/build/{id}/upload-iso [put]
func (h *Handler) HandleUploadImage(c *gin.Context) {
	id := c.Param("id")
	token, ok := dispatch.BearerToken(c.GetHeader("Authorization"))
	if !ok || !h.secret.Verify(token) {
		common.Error(c, apierrors.ErrUnauthorized)
		return
	}

	size := c.Request.ContentLength
	if size < 0 {
		size = -1
		if v := c.GetHeader("X-ISO-Size"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
				size = n
			}
		}
	}

	body := bufio.NewReader(c.Request.Body)
	if size == 0 {
		common.Error(c, apierrors.ErrEmptyBody)
		return
	}
	if _, err := body.Peek(1); errors.Is(err, io.EOF) {
		common.Error(c, apierrors.ErrEmptyBody)
		return
	}

	info, err := h.buildManager.RecordUpload(c.Request.Context(), id, body, size, c.GetHeader("X-ISO-SHA256"))
	if err != nil {
		log.Error("Image upload failed", "job_id", id, "error", err)
		common.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		OK:     true,
		R2Key:  info.Key,
		Size:   info.Size,
		SHA256: info.SHA256,
	})
}

// HandleDownloadImage godoc
// @Summary      Download the final image
// @Description  Streams the ISO once it is in storage, whether or not the runner reported completion. With redirect=1 an S3 backend answers with a presigned URL.
// @Tags         Artifacts
// @Produce      octet-stream
// @Param        id        path   string  true   "Job ID"
// @Param        redirect  query  bool    false  "Redirect to a presigned URL when supported"
// @Success      200
// @Success      307
// @Failure      400  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Router       /api/build/{id}/iso [get]
func (h *Handler) HandleDownloadImage(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	job, err := h.buildManager.ReconcileImage(ctx, id)
	if err != nil {
		common.Error(c, err)
		return
	}
	if !job.ISOUploaded {
		common.ErrorWithDetails(c, apierrors.ErrImageNotReady, gin.H{
			"status":   job.Status,
			"progress": job.Progress,
		})
		return
	}

	store := h.buildManager.Artifacts()
	if redirect, _ := strconv.ParseBool(c.Query("redirect")); redirect {
		url, err := store.PresignImage(ctx, id, PresignExpiry)
		switch {
		case err == nil:
			c.Redirect(http.StatusTemporaryRedirect, url)
			return
		case !errors.Is(err, storage.ErrPresignUnsupported):
			log.Warn("Failed to presign image URL, streaming instead", "job_id", id, "error", err)
		}
	}

	rc, info, err := store.OpenImage(ctx, id)
	if storage.IsNotFound(err) {
		common.Error(c, apierrors.ErrImageNotFound)
		return
	}
	if err != nil {
		log.Error("Failed to open image", "job_id", id, "error", err)
		common.Error(c, apierrors.ErrStorageUnavailable.WithCause(err))
		return
	}
	defer rc.Close()

	sha := job.ISOSHA256
	if sha == "" {
		sha = info.SHA256
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", isoFileName(job)),
	}
	if sha != "" {
		headers["X-ISO-SHA256"] = sha
	}
	c.DataFromReader(http.StatusOK, info.Size, "application/octet-stream", rc, headers)
}
