package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"essence/internal/api"
	"essence/internal/blog"
	"essence/internal/session"
	"essence/internal/storage"
)

// statusFor maps a service error to the HTTP status and the message shown
// to the client. Backend details never reach the response body.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, blog.ErrAuthRequired):
		return http.StatusUnauthorized, "unauthorized: please log in"
	case errors.Is(err, blog.ErrArticleNotFound):
		return http.StatusNotFound, "article not found"
	case errors.Is(err, blog.ErrInvalidInput), errors.Is(err, storage.ErrInvalidFile):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, blog.ErrAlreadyLiked):
		return http.StatusConflict, "article already liked"
	case errors.Is(err, blog.ErrAvatarUnsupported):
		return http.StatusNotImplemented, "avatar upload is not available"
	case errors.Is(err, session.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "session storage unavailable"
	case errors.Is(err, api.ErrTransport):
		return http.StatusBadGateway, "backend unavailable"
	case errors.Is(err, api.ErrRejected):
		return http.StatusBadGateway, "backend rejected the request"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}
