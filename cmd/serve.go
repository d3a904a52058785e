package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/ratelimit"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/cluster"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/pod"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/resource"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/secret"
)

const serverName = "mcp-k8s-guard"

// newServeCmd creates the Cobra command for starting the MCP server.
func newServeCmd() *cobra.Command {
	config := ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the guarded MCP Kubernetes server",
		Long: `Start the guarded Model Context Protocol server for Kubernetes.

Every mutating tool is checked against read-only mode and the namespace and
kind allowlists, and every tool is rate limited. Mutations default to dry-run.

Guard configuration is read from the environment on every call:
  MCP_K8S_READONLY             "true" blocks every mutation
  MCP_K8S_NAMESPACE_ALLOWLIST  comma-separated namespaces
  MCP_K8S_KIND_ALLOWLIST       comma-separated kinds
  K8S_NAMESPACE                default namespace

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: Server-Sent Events over HTTP
  - streamable-http: Streamable HTTP transport`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadEnvFallbacks(&config, cmd.Flags().Changed, os.LookupEnv)
			if err := config.Validate(); err != nil {
				return err
			}
			return runServe(config)
		},
	}

	// Transport flags
	cmd.Flags().StringVar(&config.Transport, "transport", transportStdio, "Transport type: stdio, sse, or streamable-http")
	cmd.Flags().StringVar(&config.HTTPAddr, "http-addr", ":8080", "HTTP server address (for sse and streamable-http transports)")
	cmd.Flags().StringVar(&config.SSEEndpoint, "sse-endpoint", "/sse", "SSE endpoint path (for sse transport)")
	cmd.Flags().StringVar(&config.MessageEndpoint, "message-endpoint", "/message", "Message endpoint path (for sse transport)")
	cmd.Flags().StringVar(&config.HTTPEndpoint, "http-endpoint", "/mcp", "HTTP endpoint path (for streamable-http transport)")

	// Kubernetes client flags
	cmd.Flags().StringVar(&config.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file (env: KUBECONFIG)")
	cmd.Flags().StringVar(&config.Context, "context", "", "Kubeconfig context to use (env: K8S_CONTEXT)")
	cmd.Flags().BoolVar(&config.InCluster, "in-cluster", false, "Use in-cluster service account authentication")
	cmd.Flags().Float32Var(&config.QPSLimit, "qps-limit", k8s.DefaultQPSLimit, "QPS limit for Kubernetes API requests (env: K8S_QPS)")
	cmd.Flags().IntVar(&config.BurstLimit, "burst-limit", k8s.DefaultBurstLimit, "Burst limit for Kubernetes API requests (env: K8S_BURST)")

	// Logging and metrics flags
	cmd.Flags().BoolVar(&config.DebugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&config.LogFormat, "log-format", logging.FormatText, "Log format: text or json (env: LOG_FORMAT)")
	cmd.Flags().StringVar(&config.MetricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Prometheus metrics server address (env: METRICS_ADDR)")

	return cmd
}

// runServe contains the main server logic with support for multiple transports
func runServe(config ServeConfig) error {
	// stdout belongs to the stdio transport, so logs always go to stderr.
	logger := logging.NewLogger(os.Stderr, config.LogFormat, config.DebugMode)
	slog.SetDefault(logger)

	k8sClient, err := k8s.NewClient(&k8s.ClientConfig{
		KubeconfigPath: config.Kubeconfig,
		Context:        config.Context,
		InCluster:      config.InCluster,
		QPSLimit:       config.QPSLimit,
		BurstLimit:     config.BurstLimit,
		Logger:         logging.NewSlogAdapter(logger.With("component", "k8s")),
	})
	if err != nil {
		return fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	// Setup graceful shutdown - listen for both SIGINT and SIGTERM
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrumentationConfig := instrumentation.DefaultConfig()
	instrumentationConfig.ServiceVersion = rootCmd.Version
	instrumentationProvider, err := instrumentation.NewProvider(shutdownCtx, instrumentationConfig,
		instrumentation.WithAuditLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if shutdownErr := instrumentationProvider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(shutdownErr))
		}
	}()

	if instrumentationProvider.Enabled() {
		logger.Info("OpenTelemetry instrumentation enabled",
			"metrics_exporter", instrumentationConfig.MetricsExporter,
			"tracing_exporter", instrumentationConfig.TracingExporter)
	}

	serverConfig := server.NewDefaultConfig()
	serverConfig.ServerName = serverName
	serverConfig.Version = rootCmd.Version
	serverConfig.KubeConfigPath = config.Kubeconfig
	serverConfig.DefaultContext = config.Context
	serverConfig.InCluster = config.InCluster
	serverConfig.Debug = config.DebugMode
	serverConfig.LogFormat = config.LogFormat

	guardEngine := guard.NewEngine(guard.WithLogger(logger.With("component", "guard")))

	serverContext, err := server.NewServerContext(shutdownCtx,
		server.WithK8sClient(k8sClient),
		server.WithLogger(logging.NewSlogAdapter(logger)),
		server.WithConfig(serverConfig),
		server.WithDefaultNamespace(guardEngine.DefaultNamespace()),
		server.WithGuardEngine(guardEngine),
		server.WithRateLimiter(ratelimit.New()),
		server.WithInstrumentationProvider(instrumentationProvider),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("error during server context shutdown", logging.Err(err))
		}
	}()

	guardConfig := guardEngine.Config()
	logger.Info("guard configuration loaded",
		"read_only", guardConfig.ReadOnly,
		"namespace_allowlist", guardConfig.NamespaceAllowlist,
		"kind_allowlist", guardConfig.KindAllowlist,
		logging.KeyKubeContext, k8sClient.CurrentContext())

	mcpSrv := mcpserver.NewMCPServer(serverName, rootCmd.Version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := registerTools(mcpSrv, serverContext); err != nil {
		return err
	}

	switch config.Transport {
	case transportStdio:
		return runStdioServer(mcpSrv)
	case transportSSE:
		return runSSEServer(shutdownCtx, mcpSrv, config, serverContext)
	case transportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, config, serverContext)
	default:
		return fmt.Errorf("unsupported transport type: %s", config.Transport)
	}
}

// registerTools registers every tool category with the MCP server.
func registerTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	registrations := []struct {
		name     string
		register func(*mcpserver.MCPServer, *server.ServerContext) error
	}{
		{"resource", resource.RegisterResourceTools},
		{"secret", secret.RegisterSecretTools},
		{"pod", pod.RegisterPodTools},
		{"cluster", cluster.RegisterClusterTools},
	}

	for _, r := range registrations {
		if err := r.register(mcpSrv, sc); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", r.name, err)
		}
	}
	return nil
}
