// Package integration runs the guarded tools end to end over the
// streamable-http transport using the mcp-go client.
//
// Run with: go test -v ./tests/integration/... -tags=integration
//
//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s/k8stest"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/cluster"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/pod"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/resource"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/secret"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/toolstest"
)

const manifestYAML = `apiVersion: v1
kind: ConfigMap
metadata:
  name: settings
  namespace: team-a
data:
  mode: blue
`

// startClient serves every guarded tool over streamable-http and returns an
// initialized client.
func startClient(t *testing.T, env map[string]string, objects ...runtime.Object) (*client.Client, *toolstest.Harness) {
	t.Helper()

	h := toolstest.New(t, env, objects...)

	mcpSrv := mcpserver.NewMCPServer("mcp-k8s-guard", "test", mcpserver.WithToolCapabilities(true))
	require.NoError(t, resource.RegisterResourceTools(mcpSrv, h.SC))
	require.NoError(t, secret.RegisterSecretTools(mcpSrv, h.SC))
	require.NoError(t, pod.RegisterPodTools(mcpSrv, h.SC))
	require.NoError(t, cluster.RegisterClusterTools(mcpSrv, h.SC))

	ts := httptest.NewServer(mcpserver.NewStreamableHTTPServer(mcpSrv, mcpserver.WithEndpointPath("/mcp")))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mcpClient, err := client.NewStreamableHttpClient(ts.URL + "/mcp")
	require.NoError(t, err)
	require.NoError(t, mcpClient.Start(ctx))
	t.Cleanup(func() { _ = mcpClient.Close() })

	_, err = mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "integration-test", Version: "1.0.0"},
		},
	})
	require.NoError(t, err)

	return mcpClient, h
}

func call(t *testing.T, c *client.Client, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	return body
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestStreamableHTTPListsGuardedTools(t *testing.T) {
	c, _ := startClient(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range resp.Tools {
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	for _, want := range []string{"resources.get", "resources.apply", "resources.delete", "secrets.get", "secrets.set", "pods.exec", "cluster_set_context"} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestStreamableHTTPSecretsAreRedacted(t *testing.T) {
	c, _ := startClient(t, nil, &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "db", Namespace: "team-a"},
		Data:       map[string][]byte{"password": []byte("hunter2")},
	})

	body := call(t, c, "secrets.get", map[string]interface{}{"namespace": "team-a", "name": "db"})
	data := body["data"].(map[string]interface{})
	assert.NotEqual(t, "hunter2", data["password"])
	assert.NotContains(t, mustJSON(t, body), "hunter2")
}

func TestStreamableHTTPGuardDecisions(t *testing.T) {
	t.Run("apply defaults to a dry run", func(t *testing.T) {
		c, h := startClient(t, nil)

		h.Dynamic.PrependReactor("patch", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
			patch := action.(k8stesting.PatchActionImpl)
			obj := &unstructured.Unstructured{}
			obj.SetAPIVersion("v1")
			obj.SetKind("ConfigMap")
			obj.SetNamespace(patch.GetNamespace())
			obj.SetName(patch.GetName())
			return true, obj, nil
		})

		body := call(t, c, "resources.apply", map[string]interface{}{"manifestYAML": manifestYAML})
		assert.Empty(t, errorCode(body))
		assert.Equal(t, true, body["dryRun"])

		patches := h.Writes(k8stest.VerbPatch)
		require.Len(t, patches, 1)
		assert.Equal(t, []string{metav1.DryRunAll}, patches[0].PatchOptions.DryRun)
	})

	t.Run("read-only blocks mutations", func(t *testing.T) {
		c, _ := startClient(t, map[string]string{guard.EnvReadOnly: "true"})

		body := call(t, c, "resources.apply", map[string]interface{}{"manifestYAML": manifestYAML, "dryRun": false})
		assert.Equal(t, string(guard.CodeReadOnlyBlocked), errorCode(body))
	})

	t.Run("namespace allowlist changes at runtime", func(t *testing.T) {
		c, h := startClient(t, nil)

		h.Env.Set(guard.EnvNamespaceAllowlist, "team-b")
		body := call(t, c, "secrets.set", map[string]interface{}{
			"namespace": "team-a",
			"name":      "api",
			"data":      map[string]interface{}{"token": "s3cr3t"},
		})
		assert.Equal(t, string(guard.CodeNamespaceNotAllowed), errorCode(body))
	})
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	os.Exit(m.Run())
}
