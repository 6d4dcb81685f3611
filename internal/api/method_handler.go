package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/rpc"
)

// MethodResponse carries the return value of a whitelisted method
type MethodResponse struct {
	Message interface{} `json:"message"`
}

// methodPermissions names the API key permission each method needs
var methodPermissions = map[string]string{
	rpc.MethodSearchLink:   PermSearch,
	rpc.MethodSearchWidget: PermSearch,
	rpc.MethodListPatchLog: PermPatchLogRead,
	rpc.MethodRerunPatch:   PermPatchLogRerun,
}

// methodHandler godoc
// @Summary Call a whitelisted method
// @Description Keyword arguments come from the query string and a JSON or form body; body values win
// @Tags method
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param method path string true "Dotted method name"
// @Success 200 {object} MethodResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /method/{method} [post]
func (s *Server) methodHandler(c *gin.Context) {
	name := c.Param("method")

	if perm, ok := methodPermissions[name]; ok && !keyAllows(c, perm) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "API key lacks permission " + perm, ExcType: "PermissionError"})
		return
	}

	args := rpc.Args{}
	valuesToArgs(c.Request.URL.Query(), args)
	if c.Request.Method == http.MethodPost {
		if err := bindBody(c, args); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	delete(args, "cmd")

	result, err := s.methods.Call(c.Request.Context(), name, args)
	if err != nil {
		s.respondError(c, err, "Failed to call method")
		return
	}

	if name == rpc.MethodSearchLink {
		s.logActivity(c, models.ActivityLinkSearch, map[string]interface{}{
			"doctype": args["doctype"],
			"txt":     args["txt"],
		})
	}

	c.JSON(http.StatusOK, MethodResponse{Message: result})
}

// bindBody merges a JSON object or form body into args
func bindBody(c *gin.Context, args rpc.Args) error {
	switch c.ContentType() {
	case gin.MIMEJSON:
		var body map[string]interface{}
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.New("request body must be a JSON object")
		}
		for k, v := range body {
			args[k] = v
		}
	case gin.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return err
		}
		valuesToArgs(c.Request.PostForm, args)
	}
	return nil
}
