package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unclassified errors are attached to the context for logging and APM and
// replaced by a generic message.
func respondError(c *gin.Context, err error) {
	status := mapErrorToHTTPStatus(err)
	middleware.SetErrorCode(c, err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal server error"
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      domain.Code(err),
		Retryable: domain.Retryable(err),
	})
}

// respondBadRequest rejects a request that could not be bound.
func respondBadRequest(c *gin.Context, err error) {
	middleware.SetErrorCode(c, domain.ErrInvalidArgument)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid request: " + err.Error(),
		Code:  domain.Code(domain.ErrInvalidArgument),
	})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps domain errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDriverUnavailable),
		errors.Is(err, domain.ErrRiderHasActiveRide),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, domain.ErrTimeout):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// formatTime renders t as RFC 3339, or "" when unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
