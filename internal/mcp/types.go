package mcp

import (
	"encoding/json"
)

// ToolResponse is the JSON body every tool call answers with
type ToolResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    interface{}   `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	ExcType string        `json:"exc_type,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains metadata about the response
type ResponseMeta struct {
	Count int   `json:"count,omitempty"`
	Total int64 `json:"total,omitempty"`
}

// NewSuccessResponse creates a successful tool response
func NewSuccessResponse(message string, data interface{}) *ToolResponse {
	return &ToolResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse creates a failed tool response
func NewErrorResponse(err string) *ToolResponse {
	return &ToolResponse{
		Success: false,
		Error:   err,
	}
}

// ToJSON converts the response to JSON
func (r *ToolResponse) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
