package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string               `json:"error"`
	Category domain.ErrorCategory `json:"category"`
}

// statusFor maps an error category onto an HTTP status.
func statusFor(cat domain.ErrorCategory) int {
	switch cat {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryLimit:
		return http.StatusRequestEntityTooLarge
	case domain.CategoryForbidden:
		return http.StatusForbidden
	case domain.CategoryNoContent:
		return http.StatusUnprocessableEntity
	case domain.CategoryUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status of its category. Server errors
// are logged with detail and reported generically.
func respondError(c *gin.Context, err error) {
	cat := domain.Categorize(err)
	status := statusFor(cat)
	msg := err.Error()
	if cat == domain.CategoryServer {
		logger.CtxError(c.Request.Context(), "Request failed: %v", err)
		msg = "internal server error"
	} else {
		logger.CtxWarn(c.Request.Context(), "Request rejected (%s): %v", cat, err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Category: cat})
}

// badRequest reports a malformed request.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Category: domain.CategoryValidation})
}
