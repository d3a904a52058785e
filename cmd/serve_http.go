package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/server/middleware"
)

// runStreamableHTTPServer runs the server with Streamable HTTP transport
func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, config ServeConfig, sc *server.ServerContext) error {
	mux := http.NewServeMux()

	mcpHandler := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(config.HTTPEndpoint),
	)
	mux.Handle(config.HTTPEndpoint, mcpHandler)

	slog.Info("streamable HTTP server starting",
		"addr", config.HTTPAddr,
		"endpoint", config.HTTPEndpoint,
		"health_endpoints", []string{"/healthz", "/readyz"})

	return serveHTTP(ctx, transportStreamableHTTP, mux, config, sc)
}

// newHTTPHandler adds the health endpoints to mux and wraps it with the
// security and metrics middleware.
func newHTTPHandler(mux *http.ServeMux, healthChecker *server.HealthChecker, provider *instrumentation.Provider) http.Handler {
	healthChecker.RegisterHealthEndpoints(mux)

	return middleware.Chain(mux,
		middleware.HTTPMetrics(provider),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{}),
		middleware.MaxRequestSize(middleware.DefaultMaxRequestSize),
	)
}

// serveHTTP runs an HTTP transport until ctx is cancelled, then drains it
// within server.DefaultShutdownTimeout. The metrics server runs alongside
// when Prometheus metrics are enabled.
func serveHTTP(ctx context.Context, transport string, mux *http.ServeMux, config ServeConfig, sc *server.ServerContext) error {
	provider := sc.InstrumentationProvider()
	healthChecker := server.NewHealthChecker(sc)

	var metricsServer *server.MetricsServer
	if metricsEnabled(provider) {
		var err error
		metricsServer, err = startMetricsServer(config.MetricsAddr, provider)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Create HTTP server with security timeouts
	httpServer := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           newHTTPHandler(mux, healthChecker, provider),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping HTTP server", "transport", transport)
		healthChecker.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error shutting down metrics server", logging.Err(err))
			}
		}

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if metricsServer != nil {
			_ = metricsServer.Shutdown(context.Background())
		}
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		slog.Info("HTTP server stopped normally", "transport", transport)
	}

	slog.Info("HTTP server gracefully stopped", "transport", transport)
	return nil
}

// metricsEnabled reports whether the Prometheus metrics server should run.
func metricsEnabled(provider *instrumentation.Provider) bool {
	return provider != nil && provider.Enabled() &&
		provider.Config().MetricsExporter == instrumentation.ExporterPrometheus
}

// startMetricsServer starts the dedicated metrics server on a separate port.
func startMetricsServer(addr string, provider *instrumentation.Provider) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", logging.Err(err))
		}
	}()

	slog.Info("metrics server started", "addr", metricsServer.Addr(), "endpoint", provider.Config().PrometheusEndpoint)
	return metricsServer, nil
}
