package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s/k8stest"
	"github.com/giantswarm/mcp-k8s-guard/internal/ratelimit"
)

func newFixtureContext(t *testing.T, f *k8stest.Fixture) *ServerContext {
	t.Helper()
	env := map[string]string{
		guard.EnvReadOnly:           "true",
		guard.EnvNamespaceAllowlist: "team-a, team-b",
	}
	sc, err := NewServerContext(context.Background(),
		WithK8sClient(f.Client),
		WithGuardEngine(guard.NewEngine(guard.WithLookup(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}))),
		WithRateLimiter(ratelimit.New()),
	)
	require.NoError(t, err)
	return sc
}

func TestNewHealthChecker(t *testing.T) {
	sc := &ServerContext{
		config: NewDefaultConfig(),
	}

	h := NewHealthChecker(sc)

	require.NotNil(t, h)
	assert.True(t, h.IsReady(), "HealthChecker should start ready")
	assert.NotNil(t, h.serverContext)
	assert.False(t, h.startTime.IsZero(), "startTime should be set")
	assert.Equal(t, DefaultKubernetesCheckTimeout, h.k8sTimeout)
}

func TestHealthChecker_SetReady(t *testing.T) {
	h := NewHealthChecker(&ServerContext{config: NewDefaultConfig()})

	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.True(t, h.IsReady())
}

func TestLivenessHandler(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Version = "1.0.0"
	h := NewHealthChecker(&ServerContext{config: cfg})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.LivenessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "1.0.0", response.Version)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T) (*HealthChecker, *ServerContext)
		wantCode    int
		wantStatus  string
		wantChecks  map[string]string
		absentCheck string
	}{
		{
			name: "ready without client",
			setup: func(t *testing.T) (*HealthChecker, *ServerContext) {
				sc := &ServerContext{config: NewDefaultConfig()}
				return NewHealthChecker(sc), sc
			},
			wantCode:    http.StatusOK,
			wantStatus:  "ok",
			wantChecks:  map[string]string{"ready": "ok", "shutdown": "ok"},
			absentCheck: "kubernetes",
		},
		{
			name: "ready with reachable cluster",
			setup: func(t *testing.T) (*HealthChecker, *ServerContext) {
				sc := newFixtureContext(t, k8stest.New())
				return NewHealthChecker(sc), sc
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"ready": "ok", "shutdown": "ok", "kubernetes": "ok"},
		},
		{
			name: "unreachable cluster stays ready",
			setup: func(t *testing.T) (*HealthChecker, *ServerContext) {
				f := k8stest.New()
				f.Clientset.PrependReactor("get", "version", func(k8stesting.Action) (bool, runtime.Object, error) {
					return true, nil, errors.New("connection refused")
				})
				sc := newFixtureContext(t, f)
				return NewHealthChecker(sc), sc
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"kubernetes": "unreachable"},
		},
		{
			name: "not ready",
			setup: func(t *testing.T) (*HealthChecker, *ServerContext) {
				sc := &ServerContext{config: NewDefaultConfig()}
				h := NewHealthChecker(sc)
				h.SetReady(false)
				return h, sc
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not ready",
			wantChecks: map[string]string{"ready": "not ready"},
		},
		{
			name: "shutting down",
			setup: func(t *testing.T) (*HealthChecker, *ServerContext) {
				sc := &ServerContext{config: NewDefaultConfig(), shutdown: true}
				return NewHealthChecker(sc), sc
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not ready",
			wantChecks: map[string]string{"shutdown": "shutting down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := tt.setup(t)

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			rec := httptest.NewRecorder()
			h.ReadinessHandler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)

			var response HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Equal(t, tt.wantStatus, response.Status)
			for k, v := range tt.wantChecks {
				assert.Equal(t, v, response.Checks[k], "check %s", k)
			}
			if tt.absentCheck != "" {
				assert.NotContains(t, response.Checks, tt.absentCheck)
			}
		})
	}
}

func TestReadinessHandler_KubernetesTimeout(t *testing.T) {
	f := k8stest.New()
	f.Clientset.PrependReactor("get", "version", func(k8stesting.Action) (bool, runtime.Object, error) {
		time.Sleep(200 * time.Millisecond)
		return true, nil, errors.New("late")
	})
	h := NewHealthChecker(newFixtureContext(t, f))
	h.k8sTimeout = 10 * time.Millisecond

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	start := time.Now()
	h.ReadinessHandler().ServeHTTP(rec, req)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "unreachable", response.Checks["kubernetes"])
}

func TestReadinessHandler_Instrumentation(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{Enabled: false})
	require.NoError(t, err)

	h := NewHealthChecker(&ServerContext{config: NewDefaultConfig(), instrumentationProvider: provider})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, req)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "disabled", response.Checks["instrumentation"])
}

func TestDetailedHealthHandler(t *testing.T) {
	f := k8stest.New()
	f.Clientset.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion = &version.Info{GitVersion: "v1.34.1"}
	sc := newFixtureContext(t, f)
	sc.RateLimiter().Allow("resources.get", 0, 0)

	h := NewHealthChecker(sc)

	req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "local", response.Mode)
	assert.Equal(t, k8stest.DevContext, response.KubeContext)
	assert.NotEmpty(t, response.Uptime)

	require.NotNil(t, response.Kubernetes)
	assert.True(t, response.Kubernetes.Connected)
	assert.Equal(t, "v1.34.1", response.Kubernetes.ServerVersion)

	require.NotNil(t, response.Guard)
	assert.True(t, response.Guard.ReadOnly)
	assert.Equal(t, []string{"team-a", "team-b"}, response.Guard.NamespaceAllowlist)
	assert.Empty(t, response.Guard.KindAllowlist)
	assert.Equal(t, "default", response.Guard.DefaultNamespace)
	assert.Equal(t, 1, response.Guard.RateLimitBuckets)

	require.NotNil(t, response.Instrumentation)
	assert.False(t, response.Instrumentation.Enabled)
}

func TestDetailedHealthHandler_NotReady(t *testing.T) {
	h := NewHealthChecker(&ServerContext{config: NewDefaultConfig()})
	h.SetReady(false)

	req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var response DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "not ready", response.Status)
}

func TestDetailedHealthHandler_ShuttingDown(t *testing.T) {
	h := NewHealthChecker(&ServerContext{config: NewDefaultConfig(), shutdown: true})

	req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var response DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "shutting down", response.Status)
}

func TestDetailedHealthHandler_NilServerContext(t *testing.T) {
	h := NewHealthChecker(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "unknown", response.Mode)
	assert.Nil(t, response.Guard)
}

func TestDetermineMode(t *testing.T) {
	tests := []struct {
		name     string
		sc       *ServerContext
		expected string
	}{
		{name: "nil server context", sc: nil, expected: "unknown"},
		{name: "no client", sc: &ServerContext{}, expected: "unknown"},
		{name: "local", sc: &ServerContext{k8sClient: &stubClient{}}, expected: "local"},
		{name: "in-cluster", sc: &ServerContext{k8sClient: &stubClient{inCluster: true}}, expected: "in-cluster"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &HealthChecker{serverContext: tt.sc}
			assert.Equal(t, tt.expected, h.determineMode())
		})
	}
}

func TestRegisterHealthEndpoints(t *testing.T) {
	h := NewHealthChecker(&ServerContext{config: NewDefaultConfig()})
	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}
