// Package server provides the ServerContext pattern and the HTTP
// infrastructure around the MCP server.
//
// ServerContext holds every dependency a tool handler needs:
//
//   - the Kubernetes client
//   - the guard engine and the shared rate limiter
//   - a logger (logging.SlogAdapter in production)
//   - the OpenTelemetry instrumentation provider, which may be nil
//   - the server configuration
//
// Dependencies are injected with functional options, so tests can swap in
// client-go fakes, a guard engine with a fake environment and a fresh
// limiter:
//
//	sc, err := server.NewServerContext(ctx,
//		server.WithK8sClient(client),
//		server.WithLogger(logging.NewSlogAdapter(logger)),
//		server.WithRateLimiter(ratelimit.New()),
//	)
//	if err != nil {
//		return err
//	}
//	defer sc.Shutdown()
//
// The Record* helpers forward to the instrumentation metrics and are safe to
// call with no provider configured.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed for the HTTP
// transports. MetricsServer serves Prometheus metrics on a separate port.
package server
