package mcp

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/rpc"
	"github.com/ksred/linkdesk/internal/search"
	"github.com/ksred/linkdesk/internal/services"
	"github.com/ksred/linkdesk/internal/utils"
)

// Tool names
const (
	ToolSearchLink    = "search_link"
	ToolSearchWidget  = "search_widget"
	ToolListPatchLogs = "list_patch_logs"
	ToolRerunPatch    = "rerun_patch"
)

// toolMethods maps each tool onto the whitelisted method it calls
var toolMethods = map[string]string{
	ToolSearchLink:    rpc.MethodSearchLink,
	ToolSearchWidget:  rpc.MethodSearchWidget,
	ToolListPatchLogs: rpc.MethodListPatchLog,
	ToolRerunPatch:    rpc.MethodRerunPatch,
}

// DocTypeLister lists the registered doctypes
type DocTypeLister interface {
	List(ctx context.Context, module string) ([]models.DocType, error)
}

// Handler runs MCP tool calls through the method registry
type Handler struct {
	methods  *rpc.Registry
	doctypes DocTypeLister
	logger   zerolog.Logger
}

// NewHandler creates a new MCP handler
func NewHandler(methods *rpc.Registry, doctypes DocTypeLister, logger zerolog.Logger) *Handler {
	return &Handler{
		methods:  methods,
		doctypes: doctypes,
		logger:   logger.With().Str("component", "mcp").Logger(),
	}
}

func searchSchema() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"doctype": map[string]interface{}{
				"type":        "string",
				"description": "Doctype whose records are searched, e.g. Territory",
			},
			"txt": map[string]interface{}{
				"type":        "string",
				"description": "Text typed into the link field",
			},
			"searchfield": map[string]interface{}{
				"type":        "string",
				"description": "Match only this field instead of the doctype's search fields",
			},
			"start": map[string]interface{}{
				"type":        "integer",
				"description": "Offset of the first result (default: 0)",
				"minimum":     0,
			},
			"page_len": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results (default: 20)",
				"minimum":     1,
			},
			"filters": map[string]interface{}{
				"description": "Field filters, either {field: value} or [[field, operator, value], ...]",
			},
			"_lang": map[string]interface{}{
				"type":        "string",
				"description": "Language for labels and messages, e.g. fr",
			},
		},
		Required: []string{"doctype"},
	}
}

// Tools describes every tool, in a stable order
func Tools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        ToolSearchLink,
			Description: "Suggest records for a link field. Exact name matches rank first, then prefix and substring matches, then matches on other fields, then children of matching tree groups.",
			InputSchema: searchSchema(),
		},
		{
			Name:        ToolSearchWidget,
			Description: "Same search as search_link but returns raw rows of [name, fields...]",
			InputSchema: searchSchema(),
		},
		{
			Name:        ToolListPatchLogs,
			Description: "List executed and skipped patches, newest first",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"patch": map[string]interface{}{
						"type":        "string",
						"description": "Filter by patch identifier",
					},
					"skipped": map[string]interface{}{
						"type":        "boolean",
						"description": "Only skipped (true) or only executed (false) patches",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of logs (default: 50)",
						"minimum":     1,
						"maximum":     500,
					},
					"offset": map[string]interface{}{
						"type":    "integer",
						"minimum": 0,
					},
				},
			},
		},
		{
			Name:        ToolRerunPatch,
			Description: "Force the patch of a patch log to run again. Only allowed in developer mode.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "integer",
						"description": "ID of the patch log",
						"minimum":     1,
					},
				},
				Required: []string{"id"},
			},
		},
	}
}

// ToolNames lists the tool names, sorted
func ToolNames() []string {
	names := make([]string, 0, len(toolMethods))
	for name := range toolMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MethodFor returns the whitelisted method behind tool
func MethodFor(tool string) (string, bool) {
	method, ok := toolMethods[tool]
	return method, ok
}

// CallTool runs one tool. Failures are reported in the response, never as an error.
func (h *Handler) CallTool(ctx context.Context, name string, args map[string]interface{}) *ToolResponse {
	method, ok := toolMethods[name]
	if !ok {
		resp := NewErrorResponse(fmt.Sprintf("unknown tool: %s", name))
		resp.ExcType = "DoesNotExistError"
		return resp
	}

	h.logger.Debug().Str("tool", name).Interface("args", args).Msg("Tool called")

	result, err := h.methods.Call(ctx, method, rpc.Args(args))
	if err != nil {
		h.logger.Warn().Err(err).Str("tool", name).Msg("Tool call failed")
		resp := NewErrorResponse(err.Error())
		resp.ExcType = utils.ExcType(err)
		return resp
	}

	return describeResult(result)
}

func describeResult(result interface{}) *ToolResponse {
	switch v := result.(type) {
	case []search.Result:
		if v == nil {
			v = []search.Result{}
		}
		resp := NewSuccessResponse(fmt.Sprintf("Found %d results", len(v)), v)
		resp.Meta = &ResponseMeta{Count: len(v)}
		return resp
	case [][]string:
		if v == nil {
			v = [][]string{}
		}
		resp := NewSuccessResponse(fmt.Sprintf("Found %d results", len(v)), v)
		resp.Meta = &ResponseMeta{Count: len(v)}
		return resp
	case *services.PatchLogList:
		resp := NewSuccessResponse(fmt.Sprintf("Found %d patch logs", len(v.Items)), v.Items)
		resp.Meta = &ResponseMeta{Count: len(v.Items), Total: v.Total}
		return resp
	case *services.Notice:
		return NewSuccessResponse(v.Message, v)
	default:
		return NewSuccessResponse("", v)
	}
}

// DocTypes returns the registered doctypes for the doctypes resource
func (h *Handler) DocTypes(ctx context.Context) ([]models.DocType, error) {
	if h.doctypes == nil {
		return []models.DocType{}, nil
	}
	return h.doctypes.List(ctx, "")
}
