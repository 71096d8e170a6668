package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"todolist/internal/service"
)

// Error codes carried in failure bodies.
const (
	codeBadRequest         = "BAD_REQUEST"
	codeValidation         = "VALIDATION_ERROR"
	codeWeakPassword       = "WEAK_PASSWORD"
	codeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeInvalidToken       = "INVALID_TOKEN"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeUnauthorized       = "UNAUTHORIZED"
	codeRateLimited        = "RATE_LIMITED"
	codeInternal           = "INTERNAL_ERROR"
)

// envelope is the body shape of every /api response except health.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func respondOK(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Code: code})
}

// writeError maps service errors to HTTP responses. Unknown errors are logged
// and reported as a generic 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWeakSecret):
		respondError(c, http.StatusBadRequest, codeWeakPassword, err.Error())
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, service.ErrDuplicateIdentity):
		respondError(c, http.StatusBadRequest, codeDuplicateIdentity, "alias or email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, codeInvalidCredentials, "invalid alias or password")
	case errors.Is(err, service.ErrExpiredToken):
		respondError(c, http.StatusUnauthorized, codeTokenExpired, "token has expired")
	case errors.Is(err, service.ErrInvalidToken):
		respondError(c, http.StatusUnauthorized, codeInvalidToken, "invalid token")
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		respondError(c, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}
