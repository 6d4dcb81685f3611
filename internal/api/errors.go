package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/utils"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	ExcType string `json:"exc_type,omitempty"`
}

// statusFor maps the typed errors in utils to HTTP status codes
func statusFor(err error) int {
	switch {
	case utils.IsDataError(err), utils.IsValidationError(err):
		return http.StatusBadRequest
	case utils.IsPermissionError(err):
		return http.StatusForbidden
	case utils.IsNotFoundError(err):
		return http.StatusNotFound
	case utils.IsConflictError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are logged
// and replaced by a generic message.
func (s *Server) respondError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(status, ErrorResponse{Error: msg, ExcType: utils.ExcType(err)})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), ExcType: utils.ExcType(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, ExcType: "ValidationError"})
}
