package handler

import (
	"errors"
	"log"
	"net/http"

	"highway_monitor/internal/service"
	"highway_monitor/internal/storage"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP statuses. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidIssue),
		errors.Is(err, service.ErrInvalidCoordinates),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidFileFormat),
		errors.Is(err, service.ErrFileSizeExceeded),
		errors.Is(err, storage.ErrInvalidObjectPath):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrIssueNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrHighwayNotFound),
		errors.Is(err, service.ErrNoRoutes):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrProviderFailure), errors.Is(err, service.ErrUploadFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON error. Unexpected errors are logged and
// replaced by fallback so internals do not leak.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
