package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/service"
)

// TikTokHandler handles TikTok ingestion and access checks.
type TikTokHandler struct {
	tiktokService *service.TikTokService
}

// NewTikTokHandler creates a new TikTok handler.
func NewTikTokHandler(tiktokService *service.TikTokService) *TikTokHandler {
	return &TikTokHandler{tiktokService: tiktokService}
}

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	URL       string             `json:"url"`
	Context   domain.MemeContext `json:"context"`
	UserEmail string             `json:"userEmail"`
}

// Ingest handles POST /api/ingest.
func (h *TikTokHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.tiktokService.Ingest(c.Request.Context(), service.TikTokRequest{
		URL:     req.URL,
		Owner:   req.UserEmail,
		Context: req.Context,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"ok":           true,
		"message":      "TikTok URL processed and stored",
		"userEmail":    result.Owner,
		"vectorLength": result.VectorLength,
		"meta":         result.Meta,
	})
}

// DeleteTikTokRequest is the body of DELETE /api/tiktok.
type DeleteTikTokRequest struct {
	UserEmail string `json:"userEmail"`
	URL       string `json:"url"`
}

// Delete handles DELETE /api/tiktok.
func (h *TikTokHandler) Delete(c *gin.Context) {
	var req DeleteTikTokRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if err := h.tiktokService.Delete(c.Request.Context(), req.UserEmail, req.URL); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "TikTok video deleted", "url": req.URL})
}

// Access handles POST /api/auth/tiktok-access.
func (h *TikTokHandler) Access(c *gin.Context) {
	var req struct {
		UserEmail string `json:"userEmail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserEmail == "" {
		badRequest(c, "Missing user email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiktokAccess": h.tiktokService.Allowed(req.UserEmail)})
}
