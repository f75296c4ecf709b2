package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/DigiMedic/PillSee/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("trace_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		c.JSON(statusFor(lastErr.Err), ErrorResponse{
			Code:    statusFor(lastErr.Err),
			Message: lastErr.Error(),
			TraceID: traceID,
		})
	}
}

func statusFor(err error) int {
	switch {
	case apperrors.IsCode(err, apperrors.ErrValidation),
		apperrors.IsCode(err, apperrors.ErrUnsupportedImage):
		return http.StatusBadRequest
	case apperrors.IsCode(err, apperrors.ErrUnreadableSource):
		return http.StatusUnprocessableEntity
	case apperrors.IsCode(err, apperrors.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
