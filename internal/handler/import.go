package handler

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"team-pulse/internal/logger"
	"team-pulse/internal/service"

	"github.com/gin-gonic/gin"
)

type ImportHandler struct {
	imports *service.ImportService
	clock   service.Clock
	loc     *time.Location
}

func NewImportHandler(imports *service.ImportService, clock service.Clock, loc *time.Location) *ImportHandler {
	return &ImportHandler{imports: imports, clock: clock, loc: loc}
}

// Upload handles POST /api/admin/import with an .xlsx "file" form field.
// Rows land in the caller's workspace.
func (h *ImportHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .xlsx files are supported"})
		return
	}
	logger.Info("import.start", "file", file.Filename, "size", file.Size)

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return
	}
	defer f.Close()

	res, err := h.imports.ImportXLSX(c.Request.Context(), f, c.GetString("workspace"), h.clock.Now().In(h.loc))
	if err != nil {
		logger.Error("import.failed", "file", file.Filename, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
