package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/mcp"
	mcpTypes "github.com/mark3labs/mcp-go/mcp"
)

// MCPRequest represents a JSON-RPC 2.0 request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// MCPResponse represents a JSON-RPC 2.0 response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// MCPError represents a JSON-RPC 2.0 error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

func mcpError(id interface{}, code int, message string, data interface{}) MCPResponse {
	return MCPResponse{
		JSONRPC: "2.0",
		Error:   &MCPError{Code: code, Message: message, Data: data},
		ID:      id,
	}
}

// HandleMCP serves the MCP tools over JSON-RPC for clients that cannot spawn
// the stdio server
func (s *Server) HandleMCP(c *gin.Context) {
	var req MCPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, mcpError(nil, ParseError, "Parse error", err.Error()))
		return
	}

	if req.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, mcpError(req.ID, InvalidRequest, "Invalid Request", "jsonrpc must be 2.0"))
		return
	}

	var result interface{}
	var rpcErr *MCPError

	switch req.Method {
	case "initialize":
		result = s.handleMCPInitialize()
	case "tools/list":
		result = map[string]interface{}{"tools": mcp.Tools()}
	case "tools/call":
		result, rpcErr = s.handleMCPCallTool(c, req.Params)
	case "resources/list":
		result = s.handleMCPListResources()
	case "resources/read":
		result, rpcErr = s.handleMCPReadResource(c.Request.Context(), req.Params)
	default:
		rpcErr = &MCPError{Code: MethodNotFound, Message: "Method not found", Data: fmt.Sprintf("Unknown method: %s", req.Method)}
	}

	if rpcErr != nil {
		if rpcErr.Code == InternalError {
			s.logger.Error().Interface("data", rpcErr.Data).Str("method", req.Method).Msg("MCP method error")
		}
		c.JSON(http.StatusOK, MCPResponse{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}

	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	})
}

func (s *Server) handleMCPInitialize() interface{} {
	return map[string]interface{}{
		"protocolVersion": mcpTypes.LATEST_PROTOCOL_VERSION,
		"serverInfo": map[string]interface{}{
			"name":    mcp.ServerName,
			"version": mcp.ServerVersion,
		},
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
	}
}

func (s *Server) handleMCPCallTool(c *gin.Context, params json.RawMessage) (interface{}, *MCPError) {
	var call struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil || call.Name == "" {
		return nil, &MCPError{Code: InvalidParams, Message: "Invalid params", Data: "name is required"}
	}

	method, ok := mcp.MethodFor(call.Name)
	if !ok {
		return nil, &MCPError{Code: MethodNotFound, Message: "Tool not found", Data: call.Name}
	}
	if perm := methodPermissions[method]; perm != "" && !keyAllows(c, perm) {
		return nil, &MCPError{Code: InvalidRequest, Message: "Permission denied", Data: "API key lacks permission " + perm}
	}

	resp := s.mcpHandler.CallTool(c.Request.Context(), call.Name, call.Arguments)
	body, err := resp.ToJSON()
	if err != nil {
		return nil, &MCPError{Code: InternalError, Message: "Internal error", Data: err.Error()}
	}

	return mcpTypes.CallToolResult{
		Content: []mcpTypes.Content{
			mcpTypes.TextContent{Type: "text", Text: string(body)},
		},
		IsError: !resp.Success,
	}, nil
}

func (s *Server) handleMCPListResources() interface{} {
	return map[string]interface{}{
		"resources": []mcpTypes.Resource{
			{
				URI:         mcp.DocTypesURI,
				Name:        "Doctypes",
				Description: "Doctypes that link fields can point at, with their search fields",
				MIMEType:    "application/json",
			},
		},
	}
}

func (s *Server) handleMCPReadResource(ctx context.Context, params json.RawMessage) (interface{}, *MCPError) {
	var read struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &read); err != nil {
		return nil, &MCPError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	if read.URI != mcp.DocTypesURI {
		return nil, &MCPError{Code: InvalidParams, Message: "Unknown resource", Data: read.URI}
	}

	doctypes, err := s.mcpHandler.DocTypes(ctx)
	if err != nil {
		return nil, &MCPError{Code: InternalError, Message: "Internal error", Data: err.Error()}
	}
	body, err := json.Marshal(doctypes)
	if err != nil {
		return nil, &MCPError{Code: InternalError, Message: "Internal error", Data: err.Error()}
	}

	return map[string]interface{}{
		"contents": []mcpTypes.TextResourceContents{
			{URI: read.URI, MIMEType: "application/json", Text: string(body)},
		},
	}, nil
}
