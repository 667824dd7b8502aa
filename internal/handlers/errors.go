package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/sopp-api/internal/imageproc"
	"github.com/Brownie44l1/sopp-api/internal/ranking"
)

// ErrorInfo is the body of every error response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error     ErrorInfo `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

type mappedError struct {
	status  int
	code    string
	message string
	reason  string
}

// mapError maps a prediction or ranking error to an HTTP response.
func mapError(err error) mappedError {
	switch {
	case errors.Is(err, imageproc.ErrInvalidImage):
		return mappedError{http.StatusBadRequest, "INVALID_IMAGE", "invalid image format, supported: JPEG, PNG, GIF, WebP", "invalid_image"}
	case errors.Is(err, ranking.ErrInvalidInput):
		return mappedError{http.StatusInternalServerError, "INTERNAL_ERROR", "model returned an unusable result", "invalid_output"}
	default:
		return mappedError{http.StatusInternalServerError, "INFERENCE_FAILED", "prediction failed", "inference"}
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     ErrorInfo{Code: code, Message: message},
		RequestID: c.GetString("request_id"),
	})
}
