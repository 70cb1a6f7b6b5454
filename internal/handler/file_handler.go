package handler

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
	"github.com/noah-isme/permitflow-api/pkg/response"
)

type fileTokenParser interface {
	Parse(token string) (string, error)
}

type fileOpener interface {
	Open(key string) (*os.File, error)
}

// FileHandler serves stored evidence through signed links.
type FileHandler struct {
	signer fileTokenParser
	store  fileOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(signer fileTokenParser, store fileOpener) *FileHandler {
	return &FileHandler{signer: signer, store: store}
}

// Serve godoc
// @Summary Download an uploaded evidence file
// @Tags Files
// @Param token query string true "Signed file token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) Serve(c *gin.Context) {
	key, err := h.signer.Parse(c.Query("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	f, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	detected, err := mimetype.DetectReader(f)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}

	c.Header("Content-Type", detected.String())
	c.Header("Cache-Control", "private, max-age=3600")
	c.Header("X-Content-Type-Options", "nosniff")
	http.ServeContent(c.Writer, c.Request, path.Base(key), info.ModTime(), f)
}
