package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/service"
)

// MemeHandler lists and deletes an owner's memes.
type MemeHandler struct {
	searchService *service.SearchService
	deleteService *service.DeleteService
}

// NewMemeHandler creates a new meme handler.
func NewMemeHandler(searchService *service.SearchService, deleteService *service.DeleteService) *MemeHandler {
	return &MemeHandler{
		searchService: searchService,
		deleteService: deleteService,
	}
}

// AllMemes handles GET /api/all-memes?userEmail=.
func (h *MemeHandler) AllMemes(c *gin.Context) {
	memes, err := h.searchService.ListMemes(c.Request.Context(), c.Query("userEmail"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memes)
}

// RecentMemes handles GET /api/recent-memes?userEmail=.
func (h *MemeHandler) RecentMemes(c *gin.Context) {
	memes, err := h.searchService.RecentMemes(c.Request.Context(), c.Query("userEmail"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memes)
}

// DeleteImageRequest is the body of DELETE /api/delete-image.
type DeleteImageRequest struct {
	UserEmail string `json:"userEmail"`
	ImageURL  string `json:"imageUrl"`
}

// DeleteImage handles DELETE /api/delete-image. A partial failure answers
// 500 with the per-step outcome so the client can see what remains.
func (h *MemeHandler) DeleteImage(c *gin.Context) {
	var req DeleteImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.deleteService.Delete(c.Request.Context(), req.UserEmail, req.ImageURL)
	if err != nil {
		if result != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":    "Failed to delete image or vector",
				"category": domain.CategoryServer,
				"imageUrl": result.ImageURL,
				"steps":    result.Steps,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Image and vector deleted successfully",
		"imageUrl": result.ImageURL,
		"steps":    result.Steps,
	})
}
