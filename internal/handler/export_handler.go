package handler

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
	"github.com/noah-isme/case-assignment-api/pkg/export"
	"github.com/noah-isme/case-assignment-api/pkg/response"
)

type signedFileOpener interface {
	OpenSigned(ctx context.Context, token string) (io.ReadCloser, string, error)
}

// ExportHandler serves rendered history exports behind signed tokens.
type ExportHandler struct {
	files  signedFileOpener
	logger *zap.Logger
}

// NewExportHandler builds a new handler.
func NewExportHandler(files signedFileOpener, logger *zap.Logger) *ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportHandler{files: files, logger: logger}
}

// Download godoc
// @Summary Download a history export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, key, err := h.files.OpenSigned(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.logger.Debug("export download rejected", zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export not found or link expired"))
		return
	}
	defer file.Close()

	name := path.Base(key)
	format, err := export.ParseFormat(strings.TrimPrefix(path.Ext(name), "."))
	if err != nil {
		format = export.FormatCSV
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, format.ContentType(), file, nil)
}
