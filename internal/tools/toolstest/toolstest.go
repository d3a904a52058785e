// Package toolstest builds server contexts backed by client-go fakes for
// tool handler tests.
package toolstest

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s/k8stest"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/ratelimit"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
)

// Env is a mutable fake environment for the guard engine.
type Env struct {
	mu     sync.RWMutex
	values map[string]string
}

// Set changes a variable; the next guard check sees it.
func (e *Env) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[key] = value
}

func (e *Env) lookup(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.values[key]
	return v, ok
}

// Harness is a ServerContext wired to fakes, plus handles on those fakes.
type Harness struct {
	*k8stest.Fixture
	SC      *server.ServerContext
	Env     *Env
	Limiter *ratelimit.Limiter
	Logs    *bytes.Buffer
}

// New builds a harness seeded with objects. env holds the initial guard
// environment.
func New(t *testing.T, env map[string]string, objects ...runtime.Object) *Harness {
	t.Helper()

	e := &Env{values: map[string]string{}}
	for k, v := range env {
		e.values[k] = v
	}

	f := k8stest.New(objects...)
	logs := &bytes.Buffer{}
	logger := logging.NewLogger(logs, logging.FormatText, true)
	limiter := ratelimit.New()

	sc, err := server.NewServerContext(context.Background(),
		server.WithK8sClient(f.Client),
		server.WithLogger(logging.NewSlogAdapter(logger)),
		server.WithGuardEngine(guard.NewEngine(guard.WithLookup(e.lookup), guard.WithLogger(logger))),
		server.WithRateLimiter(limiter),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	return &Harness{Fixture: f, SC: sc, Env: e, Limiter: limiter, Logs: logs}
}

// Request builds a CallToolRequest for name with args.
func Request(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// Text returns the text of the first content item.
func Text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent in result, got %T", result.Content[0])
	return text.Text
}

// Decode unmarshals the result text into a generic map.
func Decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Text(t, result)), &out))
	return out
}

// ErrorBody is the structured failure inside an IsError result.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// Failure asserts result is an error and returns its body.
func Failure(t *testing.T, result *mcp.CallToolResult) ErrorBody {
	t.Helper()
	require.NotNil(t, result)
	require.True(t, result.IsError, "expected an error result, got %s", Text(t, result))
	var envelope struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(Text(t, result)), &envelope))
	return envelope.Error
}

// Success asserts result is not an error and decodes it.
func Success(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.False(t, result.IsError, "unexpected error result: %s", Text(t, result))
	return Decode(t, result)
}

// Exhaust drains the bucket for key so the next call is rate limited.
func (h *Harness) Exhaust(key string, capacity int, refillPerSecond float64) {
	for h.Limiter.Allow(key, capacity, refillPerSecond) {
		continue
	}
}
