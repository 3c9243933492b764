package utils

import (
	"errors"
	"net/http"

	"slotwise/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Reason  string            `json:"reason,omitempty"` // machine readable error kind
	Fields  map[string]string `json:"fields,omitempty"`
}

// HandleErrors is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	Logger := GetLogger()
	Logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

type errorKind struct {
	target     error
	status     int
	reason     string
	message    string
	retryAfter string
}

var errorKinds = []errorKind{
	{models.ErrValidation, http.StatusBadRequest, "validation", "Invalid request", ""},
	{models.ErrNotFound, http.StatusNotFound, "not_found", "Not found", ""},
	{models.ErrSlotNoLongerAvailable, http.StatusConflict, "slot_no_longer_available", "Slot no longer available", ""},
	{models.ErrDuplicateReservation, http.StatusUnprocessableEntity, "duplicate_reservation", "Idempotency key already used", ""},
	{models.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "Invalid booking state transition", ""},
	{models.ErrConcurrencyTimeout, http.StatusServiceUnavailable, "concurrency_timeout", "Host is busy, retry shortly", "1"},
	{models.ErrSourceUnavailable, http.StatusServiceUnavailable, "source_unavailable", "Calendar source unavailable", "5"},
}

// StatusFor maps a domain error to its HTTP status and reason.
func StatusFor(err error) (status int, reason string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.reason
		}
	}
	return http.StatusInternalServerError, "internal"
}

// RespondError writes err as an ErrorResponse with the status of its kind.
// Unknown errors are logged and answered with 500 without details.
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.target) {
			continue
		}
		resp := ErrorResponse{Message: k.message, Details: err.Error(), Reason: k.reason}
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			resp.Fields = ve.FieldErrors
		}
		if k.retryAfter != "" {
			c.Header("Retry-After", k.retryAfter)
		}
		logger.Debug("request failed", zap.String("reason", k.reason), zap.Error(err))
		c.AbortWithStatusJSON(k.status, resp)
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal Server Error",
		Details: "An unexpected error occurred. Please try again later.",
		Reason:  "internal",
	})
}
