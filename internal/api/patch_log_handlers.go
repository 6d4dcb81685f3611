package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/services"
)

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

// listPatchLogsHandler godoc
// @Summary List patch logs
// @Tags patch-logs
// @Produce json
// @Security ApiKeyAuth
// @Param patch query string false "Filter by patch identifier"
// @Param skipped query bool false "Filter by skipped flag"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} services.PatchLogList
// @Failure 400 {object} ErrorResponse
// @Router /patch-logs [get]
func (s *Server) listPatchLogsHandler(c *gin.Context) {
	var req services.ListPatchLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	list, err := s.patchLogService.List(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, "Failed to list patch logs")
		return
	}

	c.JSON(http.StatusOK, list)
}

// getPatchLogHandler godoc
// @Summary Get a patch log
// @Tags patch-logs
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Patch log ID"
// @Success 200 {object} models.PatchLog
// @Failure 404 {object} ErrorResponse
// @Router /patch-logs/{id} [get]
func (s *Server) getPatchLogHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	log, err := s.patchLogService.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, "Failed to load patch log")
		return
	}

	c.JSON(http.StatusOK, log)
}

// rerunPatchHandler godoc
// @Summary Re-run the patch of a patch log
// @Description Only allowed when the server runs in developer mode
// @Tags patch-logs
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Patch log ID"
// @Success 200 {object} services.Notice
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /patch-logs/{id}/rerun [post]
func (s *Server) rerunPatchHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	notice, err := s.patchLogService.RerunPatch(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, "Failed to re-run patch")
		return
	}

	c.JSON(http.StatusOK, notice)
}
