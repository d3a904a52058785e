package tools

import (
	"context"
	"time"

	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
)

// TrackK8sOperation runs call inside a Kubernetes span and records its
// duration and outcome in the kubernetes_operations metrics.
func TrackK8sOperation(ctx context.Context, sc *server.ServerContext, operation, resourceType, namespace string, call func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartK8sSpan(ctx, operation, resourceType, namespace)
	defer span.End()

	start := time.Now()
	err := call(ctx)
	sc.RecordK8sOperation(ctx, operation, resourceType, namespace, err, time.Since(start))

	if err != nil {
		instrumentation.SetSpanError(span, err)
		sc.Logger().Debug("kubernetes operation failed",
			logging.KeyOperation, operation,
			logging.KeyResourceType, resourceType,
			logging.KeyNamespace, namespace,
			logging.SanitizedErr(err))
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}
