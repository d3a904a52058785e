package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-k8s-guard/internal/server"
)

// ToolHandler is the signature for MCP tool handler functions that take ServerContext.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)

// Registration pairs a tool definition with its handler.
type Registration struct {
	Tool    mcp.Tool
	Handler ToolHandler
}

// Register adds every registration to s, wrapped with audit logging.
func Register(s *mcpserver.MCPServer, sc *server.ServerContext, registrations ...Registration) {
	for _, r := range registrations {
		s.AddTool(r.Tool, WrapWithAuditLogging(r.Tool.Name, r.Handler, sc))
	}
}
