package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/service"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
//
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// SearchMemes handles GET /api/search?query=&userEmail=.
func (h *SearchHandler) SearchMemes(c *gin.Context) {
	h.search(c, domain.DomainMeme, "")
}

// SearchTikTok handles GET /api/search/tiktok?query=&userEmail=&topK=.
func (h *SearchHandler) SearchTikTok(c *gin.Context) {
	h.search(c, domain.DomainTikTok, c.Query("topK"))
}

func (h *SearchHandler) search(c *gin.Context, d domain.Domain, topK string) {
	result, err := h.searchService.Search(c.Request.Context(), service.SearchRequest{
		Query:  c.Query("query"),
		Owner:  c.Query("userEmail"),
		Domain: d,
		TopK:   topK,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetDomains handles GET /api/domains?userEmail=.
func (h *SearchHandler) GetDomains(c *gin.Context) {
	domains := h.searchService.GetAvailableDomains(c.Query("userEmail"))
	c.JSON(http.StatusOK, gin.H{
		"domains": domains,
		"total":   len(domains),
	})
}
