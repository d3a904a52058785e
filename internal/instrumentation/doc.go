// Package instrumentation provides OpenTelemetry metrics, tracing and the
// tool audit log for the mcp-k8s-guard server.
//
// Instrumentation is off unless INSTRUMENTATION_ENABLED=true. When off, the
// Provider still hands out Metrics and an AuditLogger, so callers never
// branch on it.
//
// # Metrics
//
//   - http_requests_total, http_request_duration_seconds: HTTP transports
//   - tool_invocations_total, tool_invocation_duration_seconds: every tool
//     call by tool, status (success, error, denied) and code
//   - guard_decisions_total: guard outcomes by operation and result
//   - rate_limit_rejections_total: calls turned away by the limiter
//   - kubernetes_operations_total, kubernetes_operation_duration_seconds:
//     API calls by operation and status
//
// Namespace and resource_type labels on Kubernetes metrics are only added
// with METRICS_DETAILED_LABELS=true. Kubeconfig context names are reduced
// to a few classes with ClassifyContextName before they become labels.
//
// # Exporters
//
// METRICS_EXPORTER selects prometheus (served by the metrics server from
// Provider.PrometheusHandler), otlp or stdout. TRACING_EXPORTER selects
// otlp, stdout or none. OTLP uses HTTP unless
// OTEL_EXPORTER_OTLP_PROTOCOL=grpc.
//
// # Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(ctx)
//
//	ctx, span := instrumentation.StartToolSpan(ctx, "resources.apply")
//	defer span.End()
package instrumentation
