package guard

import (
	"log/slog"
	"slices"

	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
)

// OperationContext describes a proposed operation for a guard check.
type OperationContext struct {
	// Operation is the logical tool name, e.g. "resources.apply".
	Operation string
	// Namespace is empty for cluster-scoped operations.
	Namespace string
	Kind      string
	// DryRun records what the caller asked for. It does not relax any check.
	DryRun *bool
}

// Engine evaluates read-only mode and the namespace and kind allowlists.
// Configuration is read through the lookup function on every call, so
// changes to the environment take effect without a restart.
type Engine struct {
	lookup LookupFunc
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLookup replaces the environment lookup. Used by tests.
func WithLookup(lookup LookupFunc) EngineOption {
	return func(e *Engine) {
		if lookup != nil {
			e.lookup = lookup
		}
	}
}

// WithLogger sets the logger used for decision logging.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine returns an Engine that reads the process environment.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the current configuration snapshot.
func (e *Engine) Config() Config {
	return LoadConfig(e.lookup)
}

// ReadOnly reports whether read-only mode is currently enabled.
func (e *Engine) ReadOnly() bool {
	return e.Config().ReadOnly
}

// DefaultNamespace returns the namespace used when a caller omits one.
func (e *Engine) DefaultNamespace() string {
	return e.Config().DefaultNamespace
}

// Check evaluates op and returns nil when it is allowed, or a *Violation.
// Checks short-circuit in order: read-only mode, namespace allowlist,
// kind allowlist.
func (e *Engine) Check(op OperationContext) error {
	v := evaluate(e.Config(), op)

	attrs := []any{
		logging.Operation(op.Operation),
		logging.Namespace(op.Namespace),
		logging.ResourceType(op.Kind),
	}
	if v != nil {
		e.logger.Debug("guard denied operation", append(attrs, slog.String("code", string(v.Code)))...)
		return v
	}
	e.logger.Debug("guard allowed operation", attrs...)
	return nil
}

func evaluate(cfg Config, op OperationContext) *Violation {
	if cfg.ReadOnly {
		return readOnlyBlocked(op.Operation)
	}
	if op.Namespace != "" && len(cfg.NamespaceAllowlist) > 0 && !slices.Contains(cfg.NamespaceAllowlist, op.Namespace) {
		return namespaceNotAllowed(op.Namespace)
	}
	if op.Kind != "" && len(cfg.KindAllowlist) > 0 && !slices.Contains(cfg.KindAllowlist, op.Kind) {
		return kindNotAllowed(op.Kind)
	}
	return nil
}
