package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// SuccessResponse represents a plain acknowledgement
type SuccessResponse struct {
	Message string `json:"message"`
}

// bindJSON decodes the request body and answers 400 on malformed input
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return false
	}
	return true
}

// respondError maps service errors onto HTTP status codes. Unknown errors are
// logged and answered with a generic 500 so storage details never leak.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr *services.ValidationError
		authErr       *services.AuthError
		forbiddenErr  *services.ForbiddenError
		notFoundErr   *services.NotFoundError
		conflictErr   *services.ConflictError
		expiredErr    *services.ExpiredError
		rateLimitErr  *services.RateLimitError
		generationErr *services.GenerationError
		deliveryErr   *services.DeliveryError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Message,
			Fields:  validationErr.Fields,
		})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: authErr.Message})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: forbiddenErr.Message})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: conflictErr.Message})
	case errors.As(err, &expiredErr):
		c.JSON(http.StatusGone, gin.H{
			"error":      "expired",
			"message":    expiredErr.Message,
			"expired_at": expiredErr.ExpiredAt,
		})
	case errors.As(err, &rateLimitErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limit_exceeded",
			"message":     rateLimitErr.Message,
			"retry_after": rateLimitErr.RetryAfter,
			"type":        rateLimitErr.Type,
		})
	case errors.As(err, &generationErr):
		logger.WithError(err).Warn("Gate pass generation failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "generation_failed", Message: generationErr.Message})
	case errors.As(err, &deliveryErr):
		logger.WithError(err).Warn("Share message delivery failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "delivery_failed",
			Message: "Failed to deliver the message via " + deliveryErr.Channel,
		})
	default:
		logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}
