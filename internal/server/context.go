package server

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/ratelimit"
)

// ServerContext encapsulates all dependencies needed by the MCP server
// and provides a clean abstraction for dependency injection and lifecycle management.
type ServerContext struct {
	// Core dependencies
	k8sClient k8s.Client
	logger    Logger
	config    *Config

	// Policy
	guardEngine *guard.Engine
	rateLimiter *ratelimit.Limiter

	instrumentationProvider *instrumentation.Provider

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Lifecycle management
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new ServerContext with default values.
// Use the provided functional options to customize the context.
func NewServerContext(ctx context.Context, opts ...Option) (*ServerContext, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:         serverCtx,
		cancel:      cancel,
		config:      NewDefaultConfig(),
		logger:      logging.DefaultLogger(),
		guardEngine: guard.NewEngine(),
		rateLimiter: ratelimit.New(),
	}

	for _, opt := range opts {
		if err := opt(sc); err != nil {
			cancel()
			return nil, err
		}
	}

	if err := sc.validate(); err != nil {
		cancel()
		return nil, err
	}

	return sc, nil
}

// Context returns the server context for cancellation and deadlines.
func (sc *ServerContext) Context() context.Context {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.ctx
}

// K8sClient returns the Kubernetes client interface.
func (sc *ServerContext) K8sClient() k8s.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.k8sClient
}

// Logger returns the logger interface.
func (sc *ServerContext) Logger() Logger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.logger
}

// Config returns the server configuration.
func (sc *ServerContext) Config() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config
}

// GuardEngine returns the engine every mutating tool checks before it
// reaches the cluster.
func (sc *ServerContext) GuardEngine() *guard.Engine {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.guardEngine
}

// RateLimiter returns the per-operation token buckets.
func (sc *ServerContext) RateLimiter() *ratelimit.Limiter {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.rateLimiter
}

// InstrumentationProvider returns the OpenTelemetry provider, or nil.
func (sc *ServerContext) InstrumentationProvider() *instrumentation.Provider {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.instrumentationProvider
}

// Metrics returns the OpenTelemetry metrics, or nil when no provider is set.
// All Record methods on a nil *Metrics are no-ops.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.InstrumentationProvider().Metrics()
}

// AuditLogger returns the provider's audit logger. Without a provider it
// falls back to an audit logger on slog.Default().
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	if al := sc.InstrumentationProvider().AuditLogger(); al != nil {
		return al
	}
	return instrumentation.NewAuditLogger(nil)
}

// InClusterMode reports whether the Kubernetes client uses the pod's
// service account.
func (sc *ServerContext) InClusterMode() bool {
	client := sc.K8sClient()
	return client != nil && client.InCluster()
}

// CurrentKubeContext returns the active kubeconfig context name.
func (sc *ServerContext) CurrentKubeContext() string {
	client := sc.K8sClient()
	if client == nil {
		return ""
	}
	return client.CurrentContext()
}

// RecordK8sOperation records a Kubernetes API call in the operation metrics.
func (sc *ServerContext) RecordK8sOperation(ctx context.Context, operation, resourceType, namespace string, err error, duration time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	sc.Metrics().RecordK8sOperation(ctx, operation, resourceType, namespace, status, duration)
}

// RecordGuardDecision records the outcome of a guard check. A nil err is an
// allow.
func (sc *ServerContext) RecordGuardDecision(ctx context.Context, operation string, err error) {
	code := ""
	if v, ok := guard.AsViolation(err); ok {
		code = string(v.Code)
	}
	sc.Metrics().RecordGuardDecision(ctx, operation, err == nil, code)
}

// RecordRateLimitRejection counts a call refused by the rate limiter.
func (sc *ServerContext) RecordRateLimitRejection(ctx context.Context, operation string) {
	sc.Metrics().RecordRateLimitRejection(ctx, operation)
}

// Shutdown gracefully shuts down the server context.
// This cancels the context and releases any resources.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.logger.Info("Shutting down server context")

	if sc.cancel != nil {
		sc.cancel()
	}

	sc.shutdown = true

	sc.logger.Info("Server context shutdown complete")
	return nil
}

// IsShutdown returns true if the server context has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// validate ensures all required dependencies are set.
func (sc *ServerContext) validate() error {
	if sc.k8sClient == nil {
		return ErrMissingK8sClient
	}
	if sc.logger == nil {
		return ErrMissingLogger
	}
	if sc.config == nil {
		return ErrMissingConfig
	}
	if sc.guardEngine == nil {
		return ErrMissingGuardEngine
	}
	if sc.rateLimiter == nil {
		return ErrMissingRateLimiter
	}
	return nil
}

// Logger defines the interface for logging operations. It is satisfied by
// logging.SlogAdapter.
type Logger = logging.Logger

// Config holds the server configuration.
type Config struct {
	// Server settings
	ServerName string `json:"serverName"`
	Version    string `json:"version"`

	// Kubernetes settings
	DefaultNamespace string `json:"defaultNamespace"`
	KubeConfigPath   string `json:"kubeConfigPath"`
	DefaultContext   string `json:"defaultContext"`
	InCluster        bool   `json:"inCluster"`

	// Logging settings
	Debug     bool   `json:"debug"`
	LogFormat string `json:"logFormat"`
}

// NewDefaultConfig creates a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		ServerName:       "mcp-k8s-guard",
		Version:          "0.1.0",
		DefaultNamespace: guard.DefaultNamespace,
		LogFormat:        logging.FormatText,
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
