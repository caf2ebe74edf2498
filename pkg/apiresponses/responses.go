package apiresponses

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError is the error body of every endpoint. Messages are generic; details of
// upstream failures stay in the server log.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// RespondBadRequest sends a 400 Bad Request response.
func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, APIError{
		Error: message,
		Code:  "BAD_REQUEST",
	})
}

// RespondBadRequestWithDetails sends a 400 Bad Request with additional details.
func RespondBadRequestWithDetails(c *gin.Context, message, details string) {
	c.JSON(http.StatusBadRequest, APIError{
		Error:   message,
		Code:    "BAD_REQUEST",
		Details: details,
	})
}

// RespondUnauthorizedWithMessage sends a 401 Unauthorized response.
func RespondUnauthorizedWithMessage(c *gin.Context, message string) {
	if message == "" {
		message = "user not authenticated"
	}
	c.JSON(http.StatusUnauthorized, APIError{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

// RespondConflict sends a 409 Conflict response.
func RespondConflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, APIError{
		Error: message,
		Code:  "CONFLICT",
	})
}

func RespondTooManyRequests(c *gin.Context, message string) {
	c.JSON(http.StatusTooManyRequests, APIError{
		Error: message,
		Code:  "RATE_LIMITED",
	})
}

// RespondInternalError logs err with full details and returns a sanitized message.
func RespondInternalError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(fmt.Sprintf("Failed to %s", operation), "error", err)
	}
	c.JSON(http.StatusInternalServerError, APIError{
		Error: fmt.Sprintf("failed to %s", operation),
		Code:  "INTERNAL_ERROR",
	})
}

// RespondBadGateway sends a 502 Bad Gateway response for upstream failures.
func RespondBadGateway(c *gin.Context, message string) {
	if message == "" {
		message = "bad gateway"
	}
	c.JSON(http.StatusBadGateway, APIError{
		Error: message,
		Code:  "BAD_GATEWAY",
	})
}

// RespondServiceUnavailable sends a 503 Service Unavailable response.
func RespondServiceUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, APIError{
		Error: fmt.Sprintf("service unavailable: %s", service),
		Code:  "SERVICE_UNAVAILABLE",
	})
}
