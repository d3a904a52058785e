package cluster

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/manifest"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/output"
)

var setContextBudget = tools.StrictBudget

// ContextList is the body of a cluster_list_contexts response.
type ContextList struct {
	Current  string            `json:"current"`
	Contexts []k8s.ContextInfo `json:"contexts"`
}

// Namespace is one row of ns_list_namespaces.
type Namespace struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Age    string `json:"age,omitempty"`
}

// handleGetClusterHealth handles cluster_health.
func handleGetClusterHealth(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolHealth, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	var health *k8s.ClusterHealth
	err := tools.TrackK8sOperation(ctx, sc, instrumentation.OperationDiscovery, "Node", "", func(ctx context.Context) error {
		var err error
		health, err = sc.K8sClient().GetClusterHealth(ctx)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	return tools.JSONResult(health)
}

// handleListContexts handles cluster_list_contexts.
func handleListContexts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolListContexts, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	contexts, err := sc.K8sClient().ListContexts(ctx)
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	return tools.JSONResult(ContextList{
		Current:  sc.CurrentKubeContext(),
		Contexts: contexts,
	})
}

// handleSetContext handles cluster_set_context.
func handleSetContext(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolSetContext, setContextBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	name, err := tools.RequiredString(request.GetArguments(), "context")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	client := sc.K8sClient()
	if client.InCluster() {
		return tools.ErrorResult(manifest.NewValidationError("context", "%s", k8s.ErrInClusterContextSwitch.Error())), nil
	}

	contexts, err := client.ListContexts(ctx)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	if !hasContext(contexts, name) {
		return tools.ErrorResult(manifest.NewValidationError("context", "context %q does not exist in kubeconfig", name)), nil
	}

	previous := client.CurrentContext()
	if err := client.SwitchContext(ctx, name); err != nil {
		if errors.Is(err, k8s.ErrInClusterContextSwitch) {
			return tools.ErrorResult(manifest.NewValidationError("context", "%s", err.Error())), nil
		}
		return tools.ErrorResult(err), nil
	}

	sc.Logger().Info("kubernetes context switched",
		logging.KeyKubeContext, name,
		"previous_context", previous)

	return tools.JSONResult(map[string]string{
		"previous": previous,
		"current":  name,
	})
}

func hasContext(contexts []k8s.ContextInfo, name string) bool {
	for _, c := range contexts {
		if c.Name == name {
			return true
		}
	}
	return false
}

// handleListNamespaces handles ns_list_namespaces.
func handleListNamespaces(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolListNamespaces, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	limit, err := tools.NonNegativeInt64(request.GetArguments(), "limit")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	opts := k8s.ListOptions{}
	if limit != nil {
		opts.Limit = *limit
	}

	var namespaces []Namespace
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationList, "Namespace", "", func(ctx context.Context) error {
		list, err := sc.K8sClient().ListNamespaces(ctx, opts)
		if err != nil {
			return err
		}
		now := time.Now()
		namespaces = make([]Namespace, 0, len(list.Items))
		for i := range list.Items {
			ns := &list.Items[i]
			namespaces = append(namespaces, Namespace{
				Name:   ns.Name,
				Status: string(ns.Status.Phase),
				Age:    output.Age(ns.CreationTimestamp.Time, now),
			})
		}
		return nil
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	if limit != nil && *limit > 0 && int64(len(namespaces)) > *limit {
		namespaces = namespaces[:*limit]
	}

	return tools.JSONResult(map[string]interface{}{"namespaces": namespaces})
}
