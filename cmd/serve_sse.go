package cmd

import (
	"context"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-k8s-guard/internal/server"
)

// runSSEServer runs the server with SSE transport
func runSSEServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, config ServeConfig, sc *server.ServerContext) error {
	sseServer := mcpserver.NewSSEServer(mcpSrv,
		mcpserver.WithSSEEndpoint(config.SSEEndpoint),
		mcpserver.WithMessageEndpoint(config.MessageEndpoint),
	)

	mux := http.NewServeMux()
	mux.Handle(config.SSEEndpoint, sseServer.SSEHandler())
	mux.Handle(config.MessageEndpoint, sseServer.MessageHandler())

	slog.Info("SSE server starting",
		"addr", config.HTTPAddr,
		"sse_endpoint", config.SSEEndpoint,
		"message_endpoint", config.MessageEndpoint,
		"health_endpoints", []string{"/healthz", "/readyz"})

	return serveHTTP(ctx, transportSSE, mux, config, sc)
}
