package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/pkg/storage"
)

func TestExportHandlerDownload(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir(), storage.NewSignedURLSigner("secret", time.Hour), "/api/v1/exports")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, local.Put(ctx, "history/case-1/20260302T090000.csv", "text/csv", []byte("Action\nASSIGNED\n")))
	url, _, err := local.DownloadURL(ctx, "history/case-1/20260302T090000.csv")
	require.NoError(t, err)

	h := NewExportHandler(local, nil)
	c, w := newHandlerContext(http.MethodGet, url, "")
	c.Params = gin.Params{{Key: "token", Value: strings.TrimPrefix(url, "/api/v1/exports/")}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "20260302T090000.csv")
	assert.Equal(t, "Action\nASSIGNED\n", w.Body.String())
}

func TestExportHandlerRejectsBadToken(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir(), storage.NewSignedURLSigner("secret", time.Hour), "/dl")
	require.NoError(t, err)
	h := NewExportHandler(local, nil)

	c, w := newHandlerContext(http.MethodGet, "/dl/forged", "")
	c.Params = gin.Params{{Key: "token", Value: "forged"}}
	h.Download(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
