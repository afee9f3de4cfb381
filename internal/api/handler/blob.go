package handler

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memehub/internal/storage"
)

// BlobHandler serves locally stored images.
type BlobHandler struct {
	store storage.BlobStore
}

// NewBlobHandler creates a handler serving blobs from store.
func NewBlobHandler(store storage.BlobStore) *BlobHandler {
	return &BlobHandler{store: store}
}

// Serve handles GET {prefix}/*key. Keys never change content, so responses
// are cacheable forever.
func (h *BlobHandler) Serve(c *gin.Context) {
	key, err := storage.SanitizeKey(c.Param("key"))
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	rc, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control":          "public, max-age=31536000, immutable",
		"X-Content-Type-Options": "nosniff",
	})
}
