// Package secret provides the secrets.get and secrets.set tools. Values are
// redacted unless the caller asks for them and read-only mode is off, and
// they never reach the logs.
package secret

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
)

// Tool names.
const (
	ToolGet = "secrets.get"
	ToolSet = "secrets.set"
)

// RegisterSecretTools registers the secret tools with the MCP server
func RegisterSecretTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	tools.Register(s, sc, Registrations()...)
	return nil
}

// Registrations returns the secret tools and their handlers.
func Registrations() []tools.Registration {
	getTool := mcp.NewTool(ToolGet,
		mcp.WithDescription(`Get a secret. Values are REDACTED unless showValues is true and read-only mode is off.
Disclosed values are base64-encoded.`),
		mcp.WithString("namespace",
			mcp.Description("Namespace of the secret. Defaults to K8S_NAMESPACE, or 'default'."),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the secret"),
		),
		mcp.WithArray("keys",
			mcp.Description("Only return these keys (default: all keys)"),
		),
		mcp.WithBoolean("showValues",
			mcp.Description("Return values instead of the redaction marker (default: false)"),
		),
	)

	setTool := mcp.NewTool(ToolSet,
		mcp.WithDescription(`Create or update a secret. The whole data map is replaced.
Runs as a dry run unless dryRun is explicitly false. Values are never logged.`),
		mcp.WithString("namespace",
			mcp.Description("Namespace of the secret. Defaults to K8S_NAMESPACE, or 'default'."),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the secret"),
		),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Keys and values to store"),
		),
		mcp.WithString("type",
			mcp.Description("Secret type (default: Opaque)"),
		),
		mcp.WithBoolean("base64Encoded",
			mcp.Description("Values in data are already base64-encoded (default: false)"),
		),
		mcp.WithBoolean("createIfMissing",
			mcp.Description("Create the secret when it does not exist (default: true)"),
		),
		mcp.WithBoolean("dryRun",
			mcp.Description("Validate on the server without persisting (default: true)"),
		),
	)

	return []tools.Registration{
		{Tool: getTool, Handler: handleGet},
		{Tool: setTool, Handler: handleSet},
	}
}
