package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/service"
)

// UploadHandler handles meme uploads.
type UploadHandler struct {
	ingestService *service.IngestService
	maxFiles      int
	maxFileSize   int64
}

// NewUploadHandler creates a new upload handler.
// Parameters:
//   - ingestService: upload pipeline.
//   - maxFiles: files accepted per request.
//   - maxFileSize: bytes accepted per file.
//
// Returns:
//   - *UploadHandler: initialized handler.
func NewUploadHandler(ingestService *service.IngestService, maxFiles int, maxFileSize int64) *UploadHandler {
	return &UploadHandler{
		ingestService: ingestService,
		maxFiles:      maxFiles,
		maxFileSize:   maxFileSize,
	}
}

// Upload handles POST /api/upload.
// Form fields: memes (files), context (JSON array, optional), userEmail.
// The status is 200 when at least one file was indexed and 502 when every
// file failed; the body always lists every file.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.maxFiles > 0 && h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxFiles)*h.maxFileSize+1<<20)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrLimitExceeded, tooLarge.Limit))
			return
		}
		badRequest(c, "invalid multipart form: "+err.Error())
		return
	}
	owner := firstValue(form.Value["userEmail"])
	if owner == "" {
		badRequest(c, "Missing user email")
		return
	}
	files := form.File["memes"]
	if len(files) == 0 {
		badRequest(c, "No file uploaded")
		return
	}
	if h.maxFiles > 0 && len(files) > h.maxFiles {
		respondError(c, fmt.Errorf("%w: %d files, at most %d allowed", domain.ErrLimitExceeded, len(files), h.maxFiles))
		return
	}

	var contexts []domain.MemeContext
	if raw := firstValue(form.Value["context"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &contexts); err != nil {
			badRequest(c, "Invalid context format. Must be valid JSON.")
			return
		}
	}
	if len(contexts) > len(files) {
		badRequest(c, fmt.Sprintf("context has %d entries for %d files", len(contexts), len(files)))
		return
	}

	items := make([]service.UploadItem, len(files))
	for i, fh := range files {
		if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
			respondError(c, fmt.Errorf("%w: file %q exceeds %d bytes", domain.ErrLimitExceeded, fh.Filename, h.maxFileSize))
			return
		}
		data, err := readFile(fh)
		if err != nil {
			respondError(c, err)
			return
		}
		items[i] = service.UploadItem{
			Filename: fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Data:     data,
		}
		if i < len(contexts) {
			items[i].Context = contexts[i]
		}
	}

	result, err := h.ingestService.Upload(c.Request.Context(), owner, items)
	if err != nil {
		respondError(c, err)
		return
	}

	status, message := http.StatusOK, "All files uploaded successfully."
	switch {
	case result.Succeeded == 0:
		status, message = http.StatusBadGateway, "No file could be processed."
	case result.Failed > 0:
		message = fmt.Sprintf("%d of %d files uploaded.", result.Succeeded, len(items))
	}
	c.JSON(status, gin.H{
		"message":   message,
		"results":   result.Items,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func firstValue(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
