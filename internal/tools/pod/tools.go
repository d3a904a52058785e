// Package pod provides pod listing, inspection, log and exec tools.
package pod

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
)

// Tool names.
const (
	ToolList = "pods.listPods"
	ToolGet  = "pods.get"
	ToolLogs = "pods.logs"
	ToolExec = "pods.exec"
)

// RegisterPodTools registers all pod management tools with the MCP server
func RegisterPodTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	tools.Register(s, sc, Registrations()...)
	return nil
}

// Registrations returns the pod tools and their handlers.
func Registrations() []tools.Registration {
	listTool := mcp.NewTool(ToolList,
		mcp.WithDescription("List pods with optional selectors"),
		mcp.WithString("namespace",
			mcp.Description("Namespace to list. Defaults to K8S_NAMESPACE, or 'default'."),
		),
		mcp.WithString("labelSelector",
			mcp.Description("Label selector (e.g. 'app=nginx')"),
		),
		mcp.WithString("fieldSelector",
			mcp.Description("Field selector (e.g. 'status.phase=Running')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of pods to return"),
		),
	)

	getTool := mcp.NewTool(ToolGet,
		mcp.WithDescription("Get a pod summary including containers and the most recent events"),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace where the pod is located"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the pod"),
		),
	)

	logsTool := mcp.NewTool(ToolLogs,
		mcp.WithDescription("Get logs from a pod container. At most the last 1000 lines are returned."),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace where the pod is located"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the pod to get logs from"),
		),
		mcp.WithString("container",
			mcp.Description("Name of the container (optional for single-container pods)"),
		),
		mcp.WithNumber("tailLines",
			mcp.Description("Number of lines from the end of the logs (default: 200)"),
		),
		mcp.WithNumber("sinceSeconds",
			mcp.Description("Only return logs newer than this many seconds"),
		),
		mcp.WithBoolean("timestamps",
			mcp.Description("Include timestamps in log output (default: false)"),
		),
	)

	execTool := mcp.NewTool(ToolExec,
		mcp.WithDescription("Execute a command inside a pod container. Subject to read-only mode and the namespace and kind allowlists."),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Namespace where the pod is located"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the pod to execute the command in"),
		),
		mcp.WithString("container",
			mcp.Description("Name of the container (optional for single-container pods)"),
		),
		mcp.WithArray("command",
			mcp.Required(),
			mcp.Description("Command to execute as an array of strings"),
		),
		mcp.WithNumber("timeoutSeconds",
			mcp.Description("Seconds before the command is abandoned (default: 30)"),
		),
	)

	return []tools.Registration{
		{Tool: listTool, Handler: handleListPods},
		{Tool: getTool, Handler: handleGetPod},
		{Tool: logsTool, Handler: handleGetLogs},
		{Tool: execTool, Handler: handleExec},
	}
}
