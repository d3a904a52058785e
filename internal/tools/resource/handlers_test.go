package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s/k8stest"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/output"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/toolstest"
)

func configMap(namespace, name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion("v1")
	obj.SetKind("ConfigMap")
	obj.SetNamespace(namespace)
	obj.SetName(name)
	obj.SetLabels(map[string]string{"app": "web"})
	_ = unstructured.SetNestedField(obj.Object, "value", "data", "key")
	return obj
}

func secretObject(namespace, name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion("v1")
	obj.SetKind("Secret")
	obj.SetNamespace(namespace)
	obj.SetName(name)
	_ = unstructured.SetNestedField(obj.Object, "czNjcjN0", "data", "password")
	return obj
}

// echoPatches answers apply patches on configmaps and records them.
func echoPatches(h *toolstest.Harness) *[]k8stesting.PatchActionImpl {
	var patches []k8stesting.PatchActionImpl
	h.Dynamic.PrependReactor("patch", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
		patch := action.(k8stesting.PatchActionImpl)
		patches = append(patches, patch)
		return true, configMap(patch.GetNamespace(), patch.GetName()), nil
	})
	return &patches
}

func TestHandleGet(t *testing.T) {
	ctx := context.Background()

	t.Run("single item", func(t *testing.T) {
		h := toolstest.New(t, nil, configMap("default", "app-config"))

		result, err := handleGet(ctx, toolstest.Request(ToolGet, map[string]interface{}{
			"version": "v1",
			"kind":    "ConfigMap",
			"name":    "app-config",
		}), h.SC)
		require.NoError(t, err)

		body := toolstest.Success(t, result)
		item := body["item"].(map[string]interface{})
		assert.Equal(t, "app-config", item["metadata"].(map[string]interface{})["name"])
		assert.Equal(t, "value", item["data"].(map[string]interface{})["key"])
	})

	t.Run("default namespace comes from K8S_NAMESPACE", func(t *testing.T) {
		h := toolstest.New(t, map[string]string{guard.EnvDefaultNamespace: "team-a"}, configMap("team-a", "app-config"))

		result, err := handleGet(ctx, toolstest.Request(ToolGet, map[string]interface{}{
			"version": "v1",
			"kind":    "ConfigMap",
			"name":    "app-config",
		}), h.SC)
		require.NoError(t, err)
		toolstest.Success(t, result)
	})

	t.Run("secret data is masked", func(t *testing.T) {
		h := toolstest.New(t, nil, secretObject("default", "db"))

		result, err := handleGet(ctx, toolstest.Request(ToolGet, map[string]interface{}{
			"version": "v1",
			"kind":    "Secret",
			"name":    "db",
		}), h.SC)
		require.NoError(t, err)

		assert.NotContains(t, toolstest.Text(t, result), "czNjcjN0")
		item := toolstest.Success(t, result)["item"].(map[string]interface{})
		assert.Equal(t, output.RedactedValue, item["data"].(map[string]interface{})["password"])
	})

	t.Run("list returns summaries capped by limit", func(t *testing.T) {
		h := toolstest.New(t, nil,
			configMap("default", "a"),
			configMap("default", "b"),
			configMap("default", "c"),
		)

		result, err := handleGet(ctx, toolstest.Request(ToolGet, map[string]interface{}{
			"version":       "v1",
			"kind":          "ConfigMap",
			"labelSelector": "app=web",
			"limit":         float64(2),
		}), h.SC)
		require.NoError(t, err)

		items := toolstest.Success(t, result)["items"].([]interface{})
		require.Len(t, items, 2)
		first := items[0].(map[string]interface{})
		assert.Equal(t, "ConfigMap", first["kind"])
		assert.Equal(t, "v1", first["apiVersion"])
		assert.NotContains(t, first, "data")

		var list k8stesting.ListActionImpl
		for _, a := range h.Dynamic.Actions() {
			if l, ok := a.(k8stesting.ListActionImpl); ok {
				list = l
			}
		}
		assert.Equal(t, "app=web", list.GetListRestrictions().Labels.String())
	})

	tests := []struct {
		name         string
		args         map[string]interface{}
		expectedCode string
	}{
		{
			name:         "missing version",
			args:         map[string]interface{}{"kind": "ConfigMap"},
			expectedCode: tools.CodeValidation,
		},
		{
			name:         "missing kind",
			args:         map[string]interface{}{"version": "v1"},
			expectedCode: tools.CodeValidation,
		},
		{
			name:         "negative limit",
			args:         map[string]interface{}{"version": "v1", "kind": "ConfigMap", "limit": float64(-1)},
			expectedCode: tools.CodeValidation,
		},
		{
			name:         "not found",
			args:         map[string]interface{}{"version": "v1", "kind": "ConfigMap", "name": "missing"},
			expectedCode: tools.CodeUpstream,
		},
		{
			name:         "unknown kind",
			args:         map[string]interface{}{"version": "v1", "kind": "Widget"},
			expectedCode: tools.CodeUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := toolstest.New(t, nil)

			result, err := handleGet(ctx, toolstest.Request(ToolGet, tt.args), h.SC)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, toolstest.Failure(t, result).Code)
		})
	}

	t.Run("reads are never guarded", func(t *testing.T) {
		h := toolstest.New(t, map[string]string{guard.EnvReadOnly: "true", guard.EnvNamespaceAllowlist: "team-a"},
			configMap("default", "app-config"))

		result, err := handleGet(ctx, toolstest.Request(ToolGet, map[string]interface{}{
			"version": "v1",
			"kind":    "ConfigMap",
			"name":    "app-config",
		}), h.SC)
		require.NoError(t, err)
		toolstest.Success(t, result)
	})

	t.Run("rate limited", func(t *testing.T) {
		h := toolstest.New(t, nil)
		h.Exhaust(ToolGet, tools.DefaultBudget.Capacity, tools.DefaultBudget.RefillPerSecond)

		result, err := handleGet(ctx, toolstest.Request(ToolGet, map[string]interface{}{}), h.SC)
		require.NoError(t, err)

		body := toolstest.Failure(t, result)
		assert.Equal(t, string(guard.CodeRateLimit), body.Code)
		assert.Equal(t, "Rate limit exceeded", body.Message)
		assert.Empty(t, h.Dynamic.Actions())
	})
}

const twoDocuments = `apiVersion: v1
kind: ConfigMap
metadata:
  name: first
  namespace: team-a
data:
  key: value
---
apiVersion: v1
kind: ConfigMap
metadata:
  namespace: team-a
`

func TestHandleApply(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid document does not stop the batch", func(t *testing.T) {
		h := toolstest.New(t, nil)
		patches := echoPatches(h)

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": twoDocuments,
		}), h.SC)
		require.NoError(t, err)

		body := toolstest.Success(t, result)
		assert.Equal(t, true, body["dryRun"])

		results := body["results"].([]interface{})
		require.Len(t, results, 2)
		assert.Equal(t, map[string]interface{}{"kind": "ConfigMap", "name": "first", "namespace": "team-a"}, results[0])
		assert.Contains(t, results[1].(map[string]interface{})["error"], "document 2")

		require.Len(t, *patches, 1)
		written := h.Writes(k8stest.VerbPatch)
		require.Len(t, written, 1)
		assert.Equal(t, []string{metav1.DryRunAll}, written[0].PatchOptions.DryRun)
	})

	t.Run("explicit dryRun false omits the dry run flag", func(t *testing.T) {
		h := toolstest.New(t, nil)
		patches := echoPatches(h)

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": twoDocuments,
			"dryRun":       false,
			"fieldManager": "ci",
		}), h.SC)
		require.NoError(t, err)
		assert.Equal(t, false, toolstest.Success(t, result)["dryRun"])

		require.Len(t, *patches, 1)
		written := h.Writes(k8stest.VerbPatch)
		require.Len(t, written, 1)
		assert.Empty(t, written[0].PatchOptions.DryRun)
		assert.Equal(t, "ci", written[0].PatchOptions.FieldManager)
	})

	t.Run("guard denial aborts the remaining documents", func(t *testing.T) {
		h := toolstest.New(t, map[string]string{guard.EnvNamespaceAllowlist: "team-a"})
		patches := echoPatches(h)

		blob := `apiVersion: v1
kind: ConfigMap
metadata: {name: one, namespace: team-a}
---
apiVersion: v1
kind: ConfigMap
metadata: {name: two, namespace: team-b}
---
apiVersion: v1
kind: ConfigMap
metadata: {name: three, namespace: team-a}
`
		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": blob,
		}), h.SC)
		require.NoError(t, err)

		failure := toolstest.Failure(t, result)
		assert.Equal(t, string(guard.CodeNamespaceNotAllowed), failure.Code)
		assert.Equal(t, "Namespace team-b is not in allowlist", failure.Message)
		assert.NotEmpty(t, failure.Suggestion)

		partial := toolstest.Decode(t, result)["results"].([]interface{})
		require.Len(t, partial, 1)
		assert.Equal(t, "one", partial[0].(map[string]interface{})["name"])
		assert.Len(t, *patches, 1, "no document after the denial may reach the cluster")
	})

	t.Run("read-only blocks even dry runs", func(t *testing.T) {
		h := toolstest.New(t, map[string]string{guard.EnvReadOnly: "true"})
		patches := echoPatches(h)

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": twoDocuments,
			"dryRun":       true,
		}), h.SC)
		require.NoError(t, err)
		assert.Equal(t, string(guard.CodeReadOnlyBlocked), toolstest.Failure(t, result).Code)
		assert.Empty(t, *patches)
	})

	t.Run("upstream error is recorded and the batch continues", func(t *testing.T) {
		h := toolstest.New(t, nil)
		patches := echoPatches(h)
		h.Dynamic.PrependReactor("patch", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
			if action.(k8stesting.PatchActionImpl).GetName() == "broken" {
				return true, nil, errors.New("conflict")
			}
			return false, nil, nil
		})

		blob := `apiVersion: v1
kind: ConfigMap
metadata: {name: broken, namespace: default}
---
apiVersion: v1
kind: ConfigMap
metadata: {name: fine, namespace: default}
`
		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": blob,
		}), h.SC)
		require.NoError(t, err)

		results := toolstest.Success(t, result)["results"].([]interface{})
		require.Len(t, results, 2)
		assert.Contains(t, results[0].(map[string]interface{})["error"], "conflict")
		assert.Equal(t, "fine", results[1].(map[string]interface{})["name"])
		assert.Len(t, *patches, 1)
	})

	t.Run("client-side apply creates", func(t *testing.T) {
		h := toolstest.New(t, nil)

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML":    twoDocuments,
			"serverSideApply": false,
		}), h.SC)
		require.NoError(t, err)
		toolstest.Success(t, result)

		creates := h.Writes(k8stest.VerbCreate)
		require.Len(t, creates, 1)
		assert.Equal(t, "first", creates[0].Name)
		assert.Equal(t, []string{metav1.DryRunAll}, creates[0].CreateOptions.DryRun)
	})

	t.Run("namespaced document without namespace lands in the default namespace", func(t *testing.T) {
		h := toolstest.New(t, nil)
		echoPatches(h)

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": "apiVersion: v1\nkind: ConfigMap\nmetadata: {name: floating}\n",
			"dryRun":       false,
		}), h.SC)
		require.NoError(t, err)

		results := toolstest.Success(t, result)["results"].([]interface{})
		require.Len(t, results, 1)
		assert.Equal(t, "default", results[0].(map[string]interface{})["namespace"])

		written := h.Writes(k8stest.VerbPatch)
		require.Len(t, written, 1)
		assert.Equal(t, "default", written[0].Namespace)
	})

	t.Run("allowlist applies to the defaulted namespace", func(t *testing.T) {
		h := toolstest.New(t, map[string]string{guard.EnvNamespaceAllowlist: "team-a"})
		echoPatches(h)

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": "apiVersion: v1\nkind: ConfigMap\nmetadata: {name: floating}\n",
			"dryRun":       false,
		}), h.SC)
		require.NoError(t, err)

		failure := toolstest.Failure(t, result)
		assert.Equal(t, string(guard.CodeNamespaceNotAllowed), failure.Code)
		assert.Equal(t, "Namespace default is not in allowlist", failure.Message)
		assert.Empty(t, h.Writes(k8stest.VerbPatch))
	})

	t.Run("configured default namespace is used for defaulting", func(t *testing.T) {
		h := toolstest.New(t, map[string]string{
			guard.EnvNamespaceAllowlist: "team-a",
			guard.EnvDefaultNamespace:   "team-a",
		})
		echoPatches(h)

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": "apiVersion: v1\nkind: ConfigMap\nmetadata: {name: floating}\n",
			"dryRun":       false,
		}), h.SC)
		require.NoError(t, err)

		results := toolstest.Success(t, result)["results"].([]interface{})
		require.Len(t, results, 1)
		assert.Equal(t, "team-a", results[0].(map[string]interface{})["namespace"])

		written := h.Writes(k8stest.VerbPatch)
		require.Len(t, written, 1)
		assert.Equal(t, "team-a", written[0].Namespace)
	})

	t.Run("cluster-scoped document keeps an empty namespace", func(t *testing.T) {
		h := toolstest.New(t, map[string]string{guard.EnvNamespaceAllowlist: "team-a"})
		h.Dynamic.PrependReactor("patch", "clusterroles", func(action k8stesting.Action) (bool, runtime.Object, error) {
			patch := action.(k8stesting.PatchActionImpl)
			obj := &unstructured.Unstructured{}
			obj.SetAPIVersion("rbac.authorization.k8s.io/v1")
			obj.SetKind("ClusterRole")
			obj.SetName(patch.GetName())
			return true, obj, nil
		})

		result, err := handleApply(ctx, toolstest.Request(ToolApply, map[string]interface{}{
			"manifestYAML": "apiVersion: rbac.authorization.k8s.io/v1\nkind: ClusterRole\nmetadata: {name: viewer}\n",
		}), h.SC)
		require.NoError(t, err)

		results := toolstest.Success(t, result)["results"].([]interface{})
		require.Len(t, results, 1)
		assert.Equal(t, "viewer", results[0].(map[string]interface{})["name"])

		written := h.Writes(k8stest.VerbPatch)
		require.Len(t, written, 1)
		assert.Empty(t, written[0].Namespace)
	})

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{name: "missing manifest", args: map[string]interface{}{}},
		{name: "blank manifest", args: map[string]interface{}{"manifestYAML": "   "}},
		{name: "dryRun not a boolean", args: map[string]interface{}{"manifestYAML": twoDocuments, "dryRun": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := toolstest.New(t, nil)
			result, err := handleApply(ctx, toolstest.Request(ToolApply, tt.args), h.SC)
			require.NoError(t, err)
			assert.Equal(t, tools.CodeValidation, toolstest.Failure(t, result).Code)
		})
	}
}

func TestHandleDelete(t *testing.T) {
	ctx := context.Background()

	base := func(extra map[string]interface{}) map[string]interface{} {
		args := map[string]interface{}{
			"version":   "v1",
			"kind":      "ConfigMap",
			"name":      "doomed",
			"namespace": "default",
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	tests := []struct {
		name           string
		args           map[string]interface{}
		expectedDryRun []string
		expectedPolicy *metav1.DeletionPropagation
	}{
		{
			name:           "dry run by default",
			args:           base(nil),
			expectedDryRun: []string{metav1.DryRunAll},
		},
		{
			name:           "explicit dryRun false",
			args:           base(map[string]interface{}{"dryRun": false}),
			expectedDryRun: nil,
		},
		{
			name:           "propagation policy is canonicalised",
			args:           base(map[string]interface{}{"propagationPolicy": "orphan", "gracePeriodSeconds": float64(0)}),
			expectedDryRun: []string{metav1.DryRunAll},
			expectedPolicy: ptrTo(metav1.DeletePropagationOrphan),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := toolstest.New(t, nil, configMap("default", "doomed"))

			result, err := handleDelete(ctx, toolstest.Request(ToolDelete, tt.args), h.SC)
			require.NoError(t, err)
			assert.Equal(t, StatusSuccess, toolstest.Success(t, result)["status"])

			dels := h.Writes(k8stest.VerbDelete)
			require.Len(t, dels, 1)
			assert.Equal(t, "doomed", dels[0].Name)
			assert.Equal(t, tt.expectedDryRun, dels[0].DeleteOptions.DryRun)
			assert.Equal(t, tt.expectedPolicy, dels[0].DeleteOptions.PropagationPolicy)
		})
	}

	failures := []struct {
		name         string
		env          map[string]string
		args         map[string]interface{}
		expectedCode string
	}{
		{
			name:         "missing name",
			args:         map[string]interface{}{"version": "v1", "kind": "ConfigMap"},
			expectedCode: tools.CodeValidation,
		},
		{
			name:         "unknown propagation policy",
			args:         base(map[string]interface{}{"propagationPolicy": "Cascade"}),
			expectedCode: tools.CodeValidation,
		},
		{
			name:         "negative grace period",
			args:         base(map[string]interface{}{"gracePeriodSeconds": float64(-5)}),
			expectedCode: tools.CodeValidation,
		},
		{
			name:         "read-only",
			env:          map[string]string{guard.EnvReadOnly: "true"},
			args:         base(nil),
			expectedCode: string(guard.CodeReadOnlyBlocked),
		},
		{
			name:         "kind not allowed",
			env:          map[string]string{guard.EnvKindAllowlist: "Deployment"},
			args:         base(nil),
			expectedCode: string(guard.CodeKindNotAllowed),
		},
		{
			name:         "namespace defaults before the allowlist check",
			env:          map[string]string{guard.EnvNamespaceAllowlist: "team-a"},
			args:         map[string]interface{}{"version": "v1", "kind": "ConfigMap", "name": "doomed"},
			expectedCode: string(guard.CodeNamespaceNotAllowed),
		},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			h := toolstest.New(t, tt.env, configMap("default", "doomed"))

			result, err := handleDelete(ctx, toolstest.Request(ToolDelete, tt.args), h.SC)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, toolstest.Failure(t, result).Code)
			assert.Empty(t, h.Writes(k8stest.VerbDelete))
		})
	}

	t.Run("missing object is an upstream error", func(t *testing.T) {
		h := toolstest.New(t, nil)

		result, err := handleDelete(ctx, toolstest.Request(ToolDelete, base(nil)), h.SC)
		require.NoError(t, err)
		assert.Equal(t, tools.CodeUpstream, toolstest.Failure(t, result).Code)
	})
}

func TestParsePropagationPolicy(t *testing.T) {
	tests := []struct {
		raw      string
		expected *metav1.DeletionPropagation
		wantErr  bool
	}{
		{raw: "", expected: nil},
		{raw: "Foreground", expected: ptrTo(metav1.DeletePropagationForeground)},
		{raw: "background", expected: ptrTo(metav1.DeletePropagationBackground)},
		{raw: " ORPHAN ", expected: ptrTo(metav1.DeletePropagationOrphan)},
		{raw: "cascade", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			policy, err := parsePropagationPolicy(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, policy)
		})
	}
}

func ptrTo(p metav1.DeletionPropagation) *metav1.DeletionPropagation {
	return &p
}
