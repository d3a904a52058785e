// Package cluster provides cluster health, kubeconfig context and namespace
// tools.
package cluster

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
)

// Tool names.
const (
	ToolHealth         = "cluster_health"
	ToolListContexts   = "cluster_list_contexts"
	ToolSetContext     = "cluster_set_context"
	ToolListNamespaces = "ns_list_namespaces"
)

// RegisterClusterTools registers all cluster management tools with the MCP server
func RegisterClusterTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	tools.Register(s, sc, Registrations()...)
	return nil
}

// Registrations returns the cluster tools and their handlers.
func Registrations() []tools.Registration {
	healthTool := mcp.NewTool(ToolHealth,
		mcp.WithDescription("Check the health status of the API server, control-plane components and nodes"),
	)

	listContextsTool := mcp.NewTool(ToolListContexts,
		mcp.WithDescription("List all available Kubernetes contexts and the active one"),
	)

	setContextTool := mcp.NewTool(ToolSetContext,
		mcp.WithDescription("Switch to a different Kubernetes context. Not available when running in-cluster."),
		mcp.WithString("context",
			mcp.Required(),
			mcp.Description("Name of the Kubernetes context to switch to"),
		),
	)

	listNamespacesTool := mcp.NewTool(ToolListNamespaces,
		mcp.WithDescription("List namespaces with their phase and age"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of namespaces to return"),
		),
	)

	return []tools.Registration{
		{Tool: healthTool, Handler: handleGetClusterHealth},
		{Tool: listContextsTool, Handler: handleListContexts},
		{Tool: setContextTool, Handler: handleSetContext},
		{Tool: listNamespacesTool, Handler: handleListNamespaces},
	}
}
