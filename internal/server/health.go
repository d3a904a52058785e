package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultKubernetesCheckTimeout bounds the API server probe done by /readyz.
const DefaultKubernetesCheckTimeout = 5 * time.Second

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// serverContext provides access to dependencies for health checks
	serverContext *ServerContext
	// startTime tracks when the server started
	startTime time.Time
	// k8sTimeout bounds the API server version probe
	k8sTimeout time.Duration
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
		k8sTimeout:    DefaultKubernetesCheckTimeout,
	}
	// Server starts as ready by default
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
	Version string            `json:"version,omitempty"`
}

// DetailedHealthResponse adds the connection mode, guard posture and
// instrumentation state to the basic response.
type DetailedHealthResponse struct {
	Status          string                      `json:"status"`
	Mode            string                      `json:"mode"`
	Version         string                      `json:"version,omitempty"`
	Uptime          string                      `json:"uptime"`
	KubeContext     string                      `json:"kube_context,omitempty"`
	Kubernetes      *KubernetesHealthStatus     `json:"kubernetes,omitempty"`
	Guard           *GuardHealthStatus          `json:"guard,omitempty"`
	Instrumentation *InstrumentationHealthCheck `json:"instrumentation,omitempty"`
}

// KubernetesHealthStatus reports API server reachability.
type KubernetesHealthStatus struct {
	Connected     bool   `json:"connected"`
	ServerVersion string `json:"server_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// GuardHealthStatus reports the guard configuration in effect right now.
type GuardHealthStatus struct {
	ReadOnly           bool     `json:"read_only"`
	NamespaceAllowlist []string `json:"namespace_allowlist,omitempty"`
	KindAllowlist      []string `json:"kind_allowlist,omitempty"`
	DefaultNamespace   string   `json:"default_namespace"`
	RateLimitBuckets   int      `json:"rate_limit_buckets"`
}

// InstrumentationHealthCheck provides health information about instrumentation.
type InstrumentationHealthCheck struct {
	Enabled         bool   `json:"enabled"`
	MetricsExporter string `json:"metrics_exporter,omitempty"`
	TracingExporter string `json:"tracing_exporter,omitempty"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// Liveness probes indicate whether the process should be restarted.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := HealthResponse{
			Status: "ok",
		}

		if h.serverContext != nil && h.serverContext.Config() != nil {
			response.Version = h.serverContext.Config().Version
		}

		_ = json.NewEncoder(w).Encode(response)
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
// Only the ready flag and shutdown state decide the status code. The
// kubernetes check is informational.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		checks := make(map[string]string)
		allOk := true

		if !h.ready.Load() {
			checks["ready"] = "not ready"
			allOk = false
		} else {
			checks["ready"] = "ok"
		}

		if h.serverContext != nil && h.serverContext.IsShutdown() {
			checks["shutdown"] = "shutting down"
			allOk = false
		} else {
			checks["shutdown"] = "ok"
		}

		if h.serverContext != nil {
			if status := h.kubernetesStatus(r.Context()); status != nil {
				if status.Connected {
					checks["kubernetes"] = "ok"
				} else {
					checks["kubernetes"] = "unreachable"
				}
			}

			provider := h.serverContext.InstrumentationProvider()
			if provider != nil {
				if provider.Enabled() {
					checks["instrumentation"] = "ok"
				} else {
					checks["instrumentation"] = "disabled"
				}
			}
		}

		response := HealthResponse{
			Checks: checks,
		}

		if allOk {
			response.Status = "ok"
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = "not ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := DetailedHealthResponse{
			Status: "ok",
			Mode:   h.determineMode(),
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}

		if h.serverContext != nil {
			if cfg := h.serverContext.Config(); cfg != nil {
				response.Version = cfg.Version
			}
			response.KubeContext = h.serverContext.CurrentKubeContext()
			response.Kubernetes = h.kubernetesStatus(r.Context())
			response.Guard = h.getGuardStatus()
			response.Instrumentation = h.getInstrumentationStatus()
		}

		if !h.ready.Load() {
			response.Status = "not ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else if h.serverContext != nil && h.serverContext.IsShutdown() {
			response.Status = "shutting down"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	})
}

// determineMode returns the operational mode of the server.
func (h *HealthChecker) determineMode() string {
	if h.serverContext == nil || h.serverContext.K8sClient() == nil {
		return "unknown"
	}

	if h.serverContext.InClusterMode() {
		return "in-cluster"
	}

	return "local"
}

// kubernetesStatus probes the API server version within k8sTimeout.
// It returns nil when there is no client to probe.
func (h *HealthChecker) kubernetesStatus(ctx context.Context) *KubernetesHealthStatus {
	client := h.serverContext.K8sClient()
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.k8sTimeout)
	defer cancel()

	info, err := client.ServerVersion(ctx)
	if err != nil {
		return &KubernetesHealthStatus{Connected: false, Error: err.Error()}
	}
	return &KubernetesHealthStatus{Connected: true, ServerVersion: info.GitVersion}
}

func (h *HealthChecker) getGuardStatus() *GuardHealthStatus {
	engine := h.serverContext.GuardEngine()
	if engine == nil {
		return nil
	}

	cfg := engine.Config()
	status := &GuardHealthStatus{
		ReadOnly:           cfg.ReadOnly,
		NamespaceAllowlist: cfg.NamespaceAllowlist,
		KindAllowlist:      cfg.KindAllowlist,
		DefaultNamespace:   cfg.DefaultNamespace,
	}
	if limiter := h.serverContext.RateLimiter(); limiter != nil {
		status.RateLimitBuckets = limiter.Len()
	}
	return status
}

// getInstrumentationStatus returns instrumentation health status.
func (h *HealthChecker) getInstrumentationStatus() *InstrumentationHealthCheck {
	provider := h.serverContext.InstrumentationProvider()
	if provider == nil {
		return &InstrumentationHealthCheck{
			Enabled: false,
		}
	}

	cfg := provider.Config()
	return &InstrumentationHealthCheck{
		Enabled:         provider.Enabled(),
		MetricsExporter: cfg.MetricsExporter,
		TracingExporter: cfg.TracingExporter,
	}
}
