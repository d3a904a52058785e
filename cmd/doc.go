// Package cmd provides the command-line interface for mcp-k8s-guard.
//
// This package implements a Cobra-based CLI with multiple subcommands:
//   - serve: Starts the MCP server (default behavior when no subcommand is provided)
//   - version: Displays the application version
//   - self-update: Updates the binary to the latest version from GitHub releases
//
// Command Structure:
//
//	mcp-k8s-guard [flags]                 # Starts the MCP server (default)
//	mcp-k8s-guard serve [flags]           # Explicitly starts the MCP server
//	mcp-k8s-guard version                 # Shows version information
//	mcp-k8s-guard self-update             # Updates to latest release
//
// Transport Configuration Examples:
//
//	mcp-k8s-guard serve --transport stdio
//	mcp-k8s-guard serve --transport sse --http-addr :8080 --sse-endpoint /sse
//	mcp-k8s-guard serve --transport streamable-http --http-addr :9000 --http-endpoint /mcp
//
// Kubernetes client flags fall back to KUBECONFIG, K8S_CONTEXT, K8S_QPS and
// K8S_BURST. The guard itself is configured through MCP_K8S_READONLY,
// MCP_K8S_NAMESPACE_ALLOWLIST, MCP_K8S_KIND_ALLOWLIST and K8S_NAMESPACE,
// which are read on every tool call.
package cmd
