// Package tools provides shared utilities and types for MCP tool implementations.
package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
)

// kindByToolPrefix names the resource kind of tools that are bound to one.
var kindByToolPrefix = map[string]string{
	"secrets.": "Secret",
	"pods.":    "Pod",
}

// WrapWithAuditLogging wraps a tool handler with a tool span and an audit
// record. The record captures:
//   - the active kube context
//   - namespace, kind and name from the request arguments
//   - the requested dry-run flag
//   - success, denial (with the violation code) or error
//
// Records go to the provider's audit logger, which also feeds the tool
// metrics. Without a provider they are still written to slog.
func WrapWithAuditLogging(
	toolName string,
	handler ToolHandler,
	sc *server.ServerContext,
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		invocation := instrumentation.NewToolInvocation(toolName).
			WithKubeContext(sc.CurrentKubeContext())
		extractAuditInfoFromArgs(invocation, toolName, request.GetArguments())

		attrs := instrumentation.NewSpanAttributeBuilder().
			WithKubeContext(invocation.KubeContext).
			WithNamespace(invocation.Namespace).
			WithResource(invocation.ResourceType, invocation.ResourceName)
		if invocation.DryRun != nil {
			attrs = attrs.WithDryRun(*invocation.DryRun)
		}
		ctx, span := instrumentation.StartToolSpan(ctx, toolName, attrs.Build()...)
		defer span.End()
		invocation.WithSpanContext(ctx)

		result, err := handler(ctx, request, sc)

		switch {
		case err != nil:
			invocation.CompleteWithError(err)
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			body, _ := ParseErrorResult(result)
			if isViolationCode(body.Code) {
				invocation.CompleteDenied(body.Code, body.Message)
			} else {
				invocation.CompleteWithError(errors.New(body.Message))
				invocation.Code = body.Code
			}
			instrumentation.SetSpanError(span, errors.New(body.Message))
		default:
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}

		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}

func isViolationCode(code string) bool {
	switch guard.Code(code) {
	case guard.CodeReadOnlyBlocked, guard.CodeNamespaceNotAllowed, guard.CodeKindNotAllowed, guard.CodeRateLimit:
		return true
	}
	return false
}

// extractAuditInfoFromArgs fills the resource fields of the record.
func extractAuditInfoFromArgs(invocation *instrumentation.ToolInvocation, toolName string, args map[string]interface{}) {
	namespace, _ := args["namespace"].(string)
	kind, _ := args["kind"].(string)
	name, _ := args["name"].(string)

	if kind == "" {
		for prefix, k := range kindByToolPrefix {
			if strings.HasPrefix(toolName, prefix) {
				kind = k
				break
			}
		}
	}

	if namespace != "" || kind != "" || name != "" {
		invocation.WithResource(namespace, kind, name)
	}

	if dryRun, err := OptionalBoolPtr(args, "dryRun"); err == nil && dryRun != nil {
		invocation.WithDryRun(*dryRun)
	}
}
