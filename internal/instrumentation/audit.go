package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ToolInvocation is the audit record of one tool call.
type ToolInvocation struct {
	ID        string
	Tool      string
	StartTime time.Time
	Duration  time.Duration

	Success bool
	// Denied is set when a guard or rate-limit violation stopped the call.
	Denied bool
	// Code is the violation or error code, if any.
	Code  string
	Error string

	KubeContext  string
	Namespace    string
	ResourceType string
	ResourceName string
	DryRun       *bool

	TraceID string
}

// NewToolInvocation starts a record for tool.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		ID:        uuid.NewString(),
		Tool:      tool,
		StartTime: time.Now(),
	}
}

func (ti *ToolInvocation) WithKubeContext(name string) *ToolInvocation {
	ti.KubeContext = name
	return ti
}

func (ti *ToolInvocation) WithResource(namespace, resourceType, resourceName string) *ToolInvocation {
	ti.Namespace = namespace
	ti.ResourceType = resourceType
	ti.ResourceName = resourceName
	return ti
}

func (ti *ToolInvocation) WithDryRun(dryRun bool) *ToolInvocation {
	ti.DryRun = &dryRun
	return ti
}

// WithSpanContext copies the trace ID from ctx, if any.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	return ti
}

func (ti *ToolInvocation) CompleteSuccess() {
	ti.Complete(true, nil)
}

func (ti *ToolInvocation) CompleteWithError(err error) {
	ti.Complete(false, err)
}

// CompleteDenied marks the call as stopped by a violation with code.
func (ti *ToolInvocation) CompleteDenied(code, message string) {
	ti.Complete(false, nil)
	ti.Denied = true
	ti.Code = code
	ti.Error = message
}

// Complete stamps the duration and outcome.
func (ti *ToolInvocation) Complete(success bool, err error) {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
}

// ContextType returns the classified kube context for metric labels.
func (ti *ToolInvocation) ContextType() string {
	return ClassifyContextName(ti.KubeContext)
}

// Status returns success, denied or error.
func (ti *ToolInvocation) Status() string {
	switch {
	case ti.Success:
		return StatusSuccess
	case ti.Denied:
		return StatusDenied
	default:
		return StatusError
	}
}

// LogAttrs returns the slog attributes of the record.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("invocation_id", ti.ID),
		slog.String("tool", ti.Tool),
		slog.String("status", ti.Status()),
		slog.Duration("duration", ti.Duration),
	}
	if ti.KubeContext != "" {
		attrs = append(attrs, slog.String("kube_context", ti.KubeContext))
	}
	if ti.Namespace != "" {
		attrs = append(attrs, slog.String("namespace", ti.Namespace))
	}
	if ti.ResourceType != "" {
		attrs = append(attrs, slog.String("resource_type", ti.ResourceType))
	}
	if ti.ResourceName != "" {
		attrs = append(attrs, slog.String("resource_name", ti.ResourceName))
	}
	if ti.DryRun != nil {
		attrs = append(attrs, slog.Bool("dry_run", *ti.DryRun))
	}
	if ti.Code != "" {
		attrs = append(attrs, slog.String("code", ti.Code))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	return attrs
}

// AuditLogger writes tool invocations to slog and to the tool metrics.
type AuditLogger struct {
	logger  *slog.Logger
	metrics *Metrics
}

// NewAuditLogger returns an AuditLogger. A nil logger means slog.Default().
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger.With("component", "audit")}
}

// WithMetrics returns a copy that also records tool metrics.
func (a *AuditLogger) WithMetrics(m *Metrics) *AuditLogger {
	return &AuditLogger{logger: a.logger, metrics: m}
}

// LogToolInvocation logs at info for success and warn otherwise.
func (a *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if a == nil || ti == nil {
		return
	}

	level := slog.LevelInfo
	if !ti.Success {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, "tool invocation", ti.LogAttrs()...)

	a.metrics.RecordToolInvocation(context.Background(), ti.Tool, ti.Status(), ti.Code, ti.ContextType(), ti.Duration)
}
