package server

import (
	"errors"
	"time"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
	"github.com/giantswarm/mcp-k8s-guard/internal/ratelimit"
)

// DefaultShutdownTimeout bounds graceful shutdown of the HTTP servers.
const DefaultShutdownTimeout = 30 * time.Second

// Option is a functional option for configuring ServerContext.
type Option func(*ServerContext) error

// WithK8sClient sets the Kubernetes client for the ServerContext.
func WithK8sClient(client k8s.Client) Option {
	return func(sc *ServerContext) error {
		if client == nil {
			return ErrMissingK8sClient
		}
		sc.k8sClient = client
		return nil
	}
}

// WithLogger sets the logger for the ServerContext.
func WithLogger(logger Logger) Option {
	return func(sc *ServerContext) error {
		if logger == nil {
			return ErrMissingLogger
		}
		sc.logger = logger
		return nil
	}
}

// WithConfig sets the configuration for the ServerContext.
func WithConfig(config *Config) Option {
	return func(sc *ServerContext) error {
		if config == nil {
			return ErrMissingConfig
		}
		sc.config = config.Clone()
		return nil
	}
}

// WithServerName sets the server name in the configuration.
func WithServerName(name string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.ServerName = name
		return nil
	}
}

// WithDefaultNamespace sets the default namespace for Kubernetes operations.
func WithDefaultNamespace(namespace string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.DefaultNamespace = namespace
		return nil
	}
}

// WithGuardEngine sets the guard engine. Tests use it to inject an engine
// with a fake environment lookup.
func WithGuardEngine(engine *guard.Engine) Option {
	return func(sc *ServerContext) error {
		if engine == nil {
			return ErrMissingGuardEngine
		}
		sc.guardEngine = engine
		return nil
	}
}

// WithRateLimiter sets the rate limiter shared by all tools.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(sc *ServerContext) error {
		if limiter == nil {
			return ErrMissingRateLimiter
		}
		sc.rateLimiter = limiter
		return nil
	}
}

// WithInstrumentationProvider sets the OpenTelemetry instrumentation provider.
func WithInstrumentationProvider(provider *instrumentation.Provider) Option {
	return func(sc *ServerContext) error {
		sc.instrumentationProvider = provider
		return nil
	}
}

// Error definitions for ServerContext validation and operations.
var (
	ErrMissingK8sClient   = errors.New("kubernetes client is required")
	ErrMissingLogger      = errors.New("logger is required")
	ErrMissingConfig      = errors.New("configuration is required")
	ErrMissingGuardEngine = errors.New("guard engine is required")
	ErrMissingRateLimiter = errors.New("rate limiter is required")
	ErrServerShutdown     = errors.New("server context has been shutdown")
)
