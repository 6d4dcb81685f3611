package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Server and resource identity
const (
	ServerName     = "linkdesk"
	ServerVersion  = "1.0.0"
	DocTypesURI    = "linkdesk://doctypes"
	PromptFindLink = "find_link"
	resourceMIME   = "application/json"
	defaultDocType = "DocType"
)

// Server wraps the MCP server with our application logic
type Server struct {
	mcpServer *server.MCPServer
	handler   *Handler
	logger    zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(handler *Handler, logger zerolog.Logger) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		handler:   handler,
		logger:    logger,
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// Serve starts the MCP server on stdio
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Debug().Msg("Starting MCP server ServeStdio")
	err := server.ServeStdio(s.mcpServer)
	if err != nil {
		s.logger.Error().Err(err).Msg("MCP server ServeStdio error")
	}
	return err
}

func (s *Server) registerTools() {
	tools := Tools()
	for _, tool := range tools {
		s.mcpServer.AddTool(tool, s.toolHandler(tool.Name))
	}
	s.logger.Info().Int("count", len(tools)).Msg("Registered MCP tools")
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.Resource{
		URI:         DocTypesURI,
		Name:        "Doctypes",
		Description: "Doctypes that link fields can point at, with their search fields",
		MIMEType:    resourceMIME,
	}, s.docTypesHandler())

	s.logger.Info().Int("count", 1).Msg("Registered MCP resources")
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.Prompt{
		Name:        PromptFindLink,
		Description: "Template for picking a record for a link field",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "doctype",
				Description: "Doctype of the link field",
				Required:    true,
			},
			{
				Name:        "txt",
				Description: "What the user typed",
				Required:    false,
			},
		},
	}, s.findLinkHandler())

	s.logger.Info().Int("count", 1).Msg("Registered MCP prompts")
}

// toolResult renders a ToolResponse as a text result
func toolResult(resp *ToolResponse) *mcp.CallToolResult {
	resultJSON, err := resp.ToJSON()
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Failed to marshal result: %v", err),
				},
			},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(resultJSON),
			},
		},
		IsError: !resp.Success,
	}
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}
		return toolResult(s.handler.CallTool(ctx, name, args)), nil
	}
}

func (s *Server) docTypesHandler() server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		doctypes, err := s.handler.DocTypes(ctx)
		if err != nil {
			return nil, err
		}

		body, err := json.Marshal(doctypes)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: resourceMIME,
				Text:     string(body),
			},
		}, nil
	}
}

// FindLinkPrompt renders the find_link prompt text
func FindLinkPrompt(args map[string]string) string {
	doctype := args["doctype"]
	if doctype == "" {
		doctype = defaultDocType
	}
	if txt := args["txt"]; txt != "" {
		return fmt.Sprintf("Use the search_link tool to find the %s that best matches %q and answer with its value.", doctype, txt)
	}
	return fmt.Sprintf("Use the search_link tool to list %s records and ask which one to use.", doctype)
}

func (s *Server) findLinkHandler() server.PromptHandlerFunc {
	return func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Messages: []mcp.PromptMessage{
				{
					Role: "user",
					Content: mcp.TextContent{
						Type: "text",
						Text: FindLinkPrompt(request.Params.Arguments),
					},
				},
			},
		}, nil
	}
}
