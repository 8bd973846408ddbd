// Package overlays serves the overlay dry run.
package overlays

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/y12/src/y12d/api/common"
	"github.com/bitswalk/y12/src/y12d/catalog"
)

// Handler handles overlay validation requests
type Handler struct {
	catalog *catalog.Catalog
}

// Config contains configuration options for the Handler
type Config struct {
	Catalog *catalog.Catalog
}

// ValidateRequest names the overlays and custom packages to check
type ValidateRequest struct {
	Distro         string   `json:"distro" binding:"required" example:"debian"`
	Overlays       []string `json:"overlays" example:"docker,tailscale"`
	CustomSoftware []string `json:"custom_software" example:"htop"`
}

// NewHandler creates a new overlays handler
func NewHandler(cfg Config) *Handler {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Builtin()
	}
	return &Handler{catalog: cat}
}

// HandleValidate godoc
// @Summary      Validate overlays
// @Description  Dry run. Reports each overlay as native, script or unknown for the distro and the install command of each custom package.
// @Tags         Catalog
// @Accept       json
// @Produce      json
// @Param        request  body      ValidateRequest  true  "Overlays to check"
// @Success      200      {object}  catalog.Report
// @Failure      400      {object}  common.ErrorResponse
// @Router       /api/validate-overlays [post]
func (h *Handler) HandleValidate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	report := h.catalog.Inspect(strings.TrimSpace(req.Distro), clean(req.Overlays), clean(req.CustomSoftware))
	c.JSON(http.StatusOK, report)
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
