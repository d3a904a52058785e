package resource

import (
	"context"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/manifest"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/output"
)

// StatusSuccess is reported by a successful delete. The dynamic client
// returns no metav1.Status body for deletes.
const StatusSuccess = "Success"

var propagationPolicies = []string{
	string(metav1.DeletePropagationForeground),
	string(metav1.DeletePropagationBackground),
	string(metav1.DeletePropagationOrphan),
}

// ApplyEntry is the outcome of one manifest document. Exactly one of
// Error or the identity fields is set.
type ApplyEntry struct {
	Kind      string `json:"kind,omitempty"`
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ApplyResult is the body of a resources.apply response.
type ApplyResult struct {
	Results []ApplyEntry `json:"results"`
	DryRun  bool         `json:"dryRun"`
}

// abortedApply is returned when a guard denial stops the batch.
type abortedApply struct {
	Error   tools.ErrorBody `json:"error"`
	Results []ApplyEntry    `json:"results"`
	DryRun  bool            `json:"dryRun"`
}

// resolveIdentifier reads the identity arguments shared by get and delete.
func resolveIdentifier(args map[string]interface{}, sc *server.ServerContext) (manifest.Identifier, error) {
	var in manifest.Input
	for key, dst := range map[string]*string{
		"group":     &in.Group,
		"version":   &in.Version,
		"kind":      &in.Kind,
		"namespace": &in.Namespace,
		"name":      &in.Name,
	} {
		v, err := tools.OptionalString(args, key)
		if err != nil {
			return manifest.Identifier{}, err
		}
		*dst = v
	}
	return manifest.Resolve(in, sc.GuardEngine().DefaultNamespace())
}

// handleGet handles resources.get: a single read with a name, a list without.
func handleGet(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolGet, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	id, err := resolveIdentifier(args, sc)
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	if id.Name != "" {
		return getItem(ctx, sc, id)
	}
	return listItems(ctx, sc, id, args)
}

func getItem(ctx context.Context, sc *server.ServerContext, id manifest.Identifier) (*mcp.CallToolResult, error) {
	var obj *unstructured.Unstructured
	err := tools.TrackK8sOperation(ctx, sc, instrumentation.OperationGet, id.Kind, id.Namespace, func(ctx context.Context) error {
		var err error
		obj, err = sc.K8sClient().Get(ctx, id.GroupVersionKind(), id.Namespace, id.Name)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	item := output.MaskSecret(output.Slim(obj.Object))
	return tools.JSONResult(map[string]interface{}{"item": item})
}

func listItems(ctx context.Context, sc *server.ServerContext, id manifest.Identifier, args map[string]interface{}) (*mcp.CallToolResult, error) {
	labelSelector, err := tools.OptionalString(args, "labelSelector")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	fieldSelector, err := tools.OptionalString(args, "fieldSelector")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	limit, err := tools.NonNegativeInt64(args, "limit")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	opts := k8s.ListOptions{LabelSelector: labelSelector, FieldSelector: fieldSelector}
	if limit != nil {
		opts.Limit = *limit
	}

	var list *unstructured.UnstructuredList
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationList, id.Kind, id.Namespace, func(ctx context.Context) error {
		var err error
		list, err = sc.K8sClient().List(ctx, id.GroupVersionKind(), id.Namespace, opts)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	return tools.JSONResult(map[string]interface{}{
		"items": output.SummarizeList(list, int(opts.Limit)),
	})
}

// handleApply handles resources.apply. Documents are processed in order.
// Namespaced documents without a namespace get the default namespace before
// the guard runs. Invalid documents and upstream failures become error entries; a guard
// denial stops the batch without undoing earlier documents.
func handleApply(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolApply, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	blob, err := tools.RequiredString(args, "manifestYAML")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	serverSideApply, err := tools.OptionalBool(args, "serverSideApply", true)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	fieldManager, err := tools.OptionalString(args, "fieldManager")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	dryRunArg, err := tools.OptionalBoolPtr(args, "dryRun")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	dryRun := dryRunArg == nil || *dryRunArg

	docs, err := manifest.Decode(blob)
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	opts := k8s.ApplyOptions{
		FieldManager:    fieldManager,
		DryRun:          dryRun,
		ServerSideApply: serverSideApply,
	}

	results := make([]ApplyEntry, 0, len(docs))
	for _, doc := range docs {
		if !doc.IsValid() {
			results = append(results, ApplyEntry{Error: doc.Err().Error()})
			continue
		}

		obj := doc.Object()
		if obj.GetNamespace() == "" {
			// Unknown kinds are left alone; Apply reports the mapping error.
			mapping, err := sc.K8sClient().RESTMapping(ctx, obj.GroupVersionKind())
			if err == nil && k8s.IsNamespaced(mapping) {
				obj.SetNamespace(sc.GuardEngine().DefaultNamespace())
			}
		}
		id := manifest.FromObject(obj)

		err := tools.EnforceGuard(ctx, sc, guard.OperationContext{
			Operation: ToolApply,
			Namespace: id.Namespace,
			Kind:      id.Kind,
			DryRun:    dryRunArg,
		})
		if err != nil {
			return tools.JSONErrorResult(abortedApply{
				Error:   tools.Classify(err),
				Results: results,
				DryRun:  dryRun,
			}), nil
		}

		err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationApply, id.Kind, id.Namespace, func(ctx context.Context) error {
			_, err := sc.K8sClient().Apply(ctx, obj, opts)
			return err
		})
		if err != nil {
			sc.Logger().Warn("apply failed",
				logging.KeyResourceType, id.Kind,
				logging.KeyNamespace, id.Namespace,
				logging.KeyResourceName, id.Name,
				logging.SanitizedErr(err))
			results = append(results, ApplyEntry{Error: err.Error()})
			continue
		}

		results = append(results, ApplyEntry{Kind: id.Kind, Name: id.Name, Namespace: id.Namespace})
	}

	return tools.JSONResult(ApplyResult{Results: results, DryRun: dryRun})
}

// handleDelete handles resources.delete.
func handleDelete(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolDelete, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	if _, err := tools.RequiredString(args, "name"); err != nil {
		return tools.ErrorResult(err), nil
	}
	id, err := resolveIdentifier(args, sc)
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	dryRunArg, err := tools.OptionalBoolPtr(args, "dryRun")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	gracePeriod, err := tools.NonNegativeInt64(args, "gracePeriodSeconds")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	rawPolicy, err := tools.OptionalString(args, "propagationPolicy")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	policy, err := parsePropagationPolicy(rawPolicy)
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	err = tools.EnforceGuard(ctx, sc, guard.OperationContext{
		Operation: ToolDelete,
		Namespace: id.Namespace,
		Kind:      id.Kind,
		DryRun:    dryRunArg,
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	opts := k8s.DeleteOptions{
		GracePeriodSeconds: gracePeriod,
		PropagationPolicy:  policy,
		DryRun:             dryRunArg == nil || *dryRunArg,
	}
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationDelete, id.Kind, id.Namespace, func(ctx context.Context) error {
		return sc.K8sClient().Delete(ctx, id.GroupVersionKind(), id.Namespace, id.Name, opts)
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	return tools.JSONResult(map[string]interface{}{"status": StatusSuccess})
}

// parsePropagationPolicy accepts the policy names in any letter case.
func parsePropagationPolicy(raw string) (*metav1.DeletionPropagation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	canonical := cases.Title(language.Und).String(strings.ToLower(raw))
	if !slices.Contains(propagationPolicies, canonical) {
		return nil, manifest.NewValidationError("propagationPolicy",
			"propagationPolicy must be one of %s, got %q", strings.Join(propagationPolicies, ", "), raw)
	}

	policy := metav1.DeletionPropagation(canonical)
	return &policy, nil
}
