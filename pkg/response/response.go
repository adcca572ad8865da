package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func Success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, statusCode int, code, message, details string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequest(c *gin.Context, message, details string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func InternalError(c *gin.Context, message, details string) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, details)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "NOT_FOUND", message, "")
}

func ValidationError(c *gin.Context, details string) {
	Error(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", details)
}

func Conflict(c *gin.Context, message, details string) {
	Error(c, http.StatusConflict, "CONFLICT", message, details)
}

// FromError maps typed domain errors onto HTTP responses. Anything not in
// the taxonomy is a storage/internal failure surfaced verbatim.
func FromError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		zeroSplit  *domain.ZeroSplitError
		imbalanced *domain.ImbalancedSplitError
		mismatch   *domain.ReconciliationMismatchError
		state      *domain.StateError
	)

	switch {
	case errors.As(err, &validation):
		ValidationError(c, validation.Error())
	case errors.As(err, &notFound):
		NotFound(c, notFound.Error())
	case errors.As(err, &zeroSplit):
		Error(c, http.StatusUnprocessableEntity, "ZERO_SPLIT", "Splits are invalid", zeroSplit.Error())
	case errors.As(err, &imbalanced):
		Error(c, http.StatusUnprocessableEntity, "IMBALANCED_SPLITS", "Splits are invalid", imbalanced.Error())
	case errors.As(err, &mismatch):
		Conflict(c, "Statement does not reconcile", mismatch.Error())
	case errors.As(err, &state):
		Conflict(c, "Operation not allowed in current state", state.Error())
	default:
		InternalError(c, "Request failed", err.Error())
	}
}
