// Package resource provides the generic get, apply and delete tools. They
// address any kind the cluster serves through a group/version/kind triple
// resolved with the RESTMapper.
package resource

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
)

// Tool names. They double as rate limit keys and guard operation names.
const (
	ToolGet    = "resources.get"
	ToolApply  = "resources.apply"
	ToolDelete = "resources.delete"
)

// RegisterResourceTools registers all resource management tools with the MCP server
func RegisterResourceTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	tools.Register(s, sc, Registrations()...)
	return nil
}

// Registrations returns the resource tools and their handlers.
func Registrations() []tools.Registration {
	return []tools.Registration{
		{Tool: getTool(), Handler: handleGet},
		{Tool: applyTool(), Handler: handleApply},
		{Tool: deleteTool(), Handler: handleDelete},
	}
}

func identityOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("group",
			mcp.Description("API group (e.g. 'apps'). Leave empty for the core group."),
		),
		mcp.WithString("version",
			mcp.Required(),
			mcp.Description("API version (e.g. 'v1')"),
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Resource kind (e.g. 'Deployment')"),
		),
		mcp.WithString("namespace",
			mcp.Description("Namespace for namespaced kinds. Defaults to K8S_NAMESPACE, or 'default'. Ignored for cluster-scoped kinds."),
		),
	}
}

func getTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(`Get a single resource by name, or list resources of a kind.

With 'name' the full object is returned as {item}. Secret data is always masked.
Without 'name' a summary of each object is returned as {items}.`),
	}
	opts = append(opts, identityOptions()...)
	opts = append(opts,
		mcp.WithString("name",
			mcp.Description("Name of the resource. Omit to list."),
		),
		mcp.WithString("labelSelector",
			mcp.Description("Label selector for list calls (e.g. 'app=nginx')"),
		),
		mcp.WithString("fieldSelector",
			mcp.Description("Field selector for list calls (e.g. 'status.phase=Running')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of items returned by list calls"),
		),
	)
	return mcp.NewTool(ToolGet, opts...)
}

func applyTool() mcp.Tool {
	return mcp.NewTool(ToolApply,
		mcp.WithDescription(`Apply a multi-document YAML manifest.

Documents are applied in order. Invalid documents are reported per document and do not stop the batch.
A guard denial stops the batch; documents applied before it are kept.
Runs as a dry run unless dryRun is explicitly false.`),
		mcp.WithString("manifestYAML",
			mcp.Required(),
			mcp.Description("One or more YAML documents separated by '---'"),
		),
		mcp.WithBoolean("serverSideApply",
			mcp.Description("Use server-side apply (default: true). When false, objects are created or updated."),
		),
		mcp.WithString("fieldManager",
			mcp.Description("Field manager for server-side apply (default: mcp-k8s-server)"),
		),
		mcp.WithBoolean("dryRun",
			mcp.Description("Validate on the server without persisting (default: true)"),
		),
	)
}

func deleteTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Delete a single resource. Runs as a dry run unless dryRun is explicitly false."),
	}
	opts = append(opts, identityOptions()...)
	opts = append(opts,
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the resource to delete"),
		),
		mcp.WithString("propagationPolicy",
			mcp.Description("How dependents are deleted"),
			mcp.Enum(propagationPolicies...),
		),
		mcp.WithNumber("gracePeriodSeconds",
			mcp.Description("Seconds to wait before forceful termination (>= 0)"),
		),
		mcp.WithBoolean("dryRun",
			mcp.Description("Validate on the server without deleting (default: true)"),
		),
	)
	return mcp.NewTool(ToolDelete, opts...)
}
