package k8s

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
)

// MockLogger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		config      *ClientConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
			errorMsg:    "client configuration is required",
		},
		{
			name:   "valid config with defaults",
			config: &ClientConfig{},
		},
		{
			name: "valid config with custom values",
			config: &ClientConfig{
				QPSLimit:   50.0,
				BurstLimit: 100,
				Timeout:    60 * time.Second,
			},
		},
		{
			name:        "unknown context",
			config:      &ClientConfig{Context: "missing"},
			expectError: true,
			errorMsg:    `context "missing" does not exist in kubeconfig`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config != nil {
				tt.config.KubeconfigPath = writeKubeconfig(t)
			}

			client, err := NewClient(tt.config)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, client)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "test-context", client.CurrentContext())
			assert.False(t, client.InCluster())

			if tt.config.QPSLimit == 0 {
				assert.Equal(t, float32(20.0), client.qpsLimit)
			} else {
				assert.Equal(t, tt.config.QPSLimit, client.qpsLimit)
			}

			if tt.config.BurstLimit == 0 {
				assert.Equal(t, 30, client.burstLimit)
			} else {
				assert.Equal(t, tt.config.BurstLimit, client.burstLimit)
			}

			if tt.config.Timeout == 0 {
				assert.Equal(t, 30*time.Second, client.timeout)
			} else {
				assert.Equal(t, tt.config.Timeout, client.timeout)
			}
		})
	}
}

func TestKubernetesClient_ContextOperations(t *testing.T) {
	client, err := NewClient(&ClientConfig{KubeconfigPath: writeKubeconfig(t)})
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("ListContexts", func(t *testing.T) {
		contexts, err := client.ListContexts(ctx)
		require.NoError(t, err)
		require.Len(t, contexts, 2)

		assert.Equal(t, "another-context", contexts[0].Name)
		assert.False(t, contexts[0].Current)
		assert.Equal(t, "test-context", contexts[1].Name)
		assert.True(t, contexts[1].Current)
		assert.Equal(t, "test-cluster", contexts[1].Cluster)
		assert.Equal(t, "test-user", contexts[1].User)
	})

	t.Run("GetCurrentContext", func(t *testing.T) {
		current, err := client.GetCurrentContext(ctx)
		require.NoError(t, err)

		assert.Equal(t, "test-context", current.Name)
		assert.Equal(t, "test-namespace", current.Namespace)
		assert.True(t, current.Current)
	})

	t.Run("SwitchContext", func(t *testing.T) {
		require.NoError(t, client.SwitchContext(ctx, "another-context"))
		assert.Equal(t, "another-context", client.CurrentContext())

		err := client.SwitchContext(ctx, "non-existent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist in kubeconfig")
		assert.Equal(t, "another-context", client.CurrentContext())
	})
}

func TestKubernetesClient_SwitchContextResetsCache(t *testing.T) {
	client, err := NewClient(&ClientConfig{KubeconfigPath: writeKubeconfig(t)})
	require.NoError(t, err)

	client.clientsets["test-context"] = fake.NewSimpleClientset()
	client.mappers["test-context"] = meta.NewDefaultRESTMapper(nil)

	cs, err := client.getClientset()
	require.NoError(t, err)
	assert.IsType(t, &fake.Clientset{}, cs)

	require.NoError(t, client.SwitchContext(context.Background(), "another-context"))

	assert.Empty(t, client.clientsets)
	assert.Empty(t, client.mappers)
	assert.Empty(t, client.restConfigs)
}

func TestKubernetesClient_InClusterContext(t *testing.T) {
	client := newKubernetesClient(&ClientConfig{InCluster: true})
	client.currentContext = InClusterContext

	ctx := context.Background()

	contexts, err := client.ListContexts(ctx)
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, InClusterContext, contexts[0].Name)
	assert.Equal(t, "serviceaccount", contexts[0].User)
	assert.True(t, contexts[0].Current)

	current, err := client.GetCurrentContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, InClusterContext, current.Name)

	err = client.SwitchContext(ctx, "anything")
	assert.True(t, errors.Is(err, ErrInClusterContextSwitch))
	assert.Equal(t, InClusterContext, client.CurrentContext())
}

func TestNewClientFromInterfaces(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	mapper := meta.NewDefaultRESTMapper(nil)

	client := NewClientFromInterfaces(clientset, nil, mapper)

	cs, err := client.getClientset()
	require.NoError(t, err)
	assert.Same(t, kubernetes.Interface(clientset), cs)

	m, _, err := client.getMapper()
	require.NoError(t, err)
	assert.Same(t, meta.RESTMapper(mapper), m)

	contexts, err := client.ListContexts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, contexts)
}

func TestKubernetesClient_LogOperation(t *testing.T) {
	mockLogger := &MockLogger{}
	client := NewClientFromInterfaces(fake.NewSimpleClientset(), nil, nil, WithClientLogger(mockLogger))

	mockLogger.On("Debug", "kubernetes operation", mock.AnythingOfType("[]interface {}")).Return()

	client.logOperation("get", "default", "Pod", "test-pod")

	mockLogger.AssertExpectations(t)
}

func writeKubeconfig(t testing.TB) string {
	t.Helper()
	kubeconfig := `
apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://test.example.com
  name: test-cluster
contexts:
- context:
    cluster: test-cluster
    user: test-user
    namespace: test-namespace
  name: test-context
- context:
    cluster: test-cluster
    user: test-user
    namespace: another-namespace
  name: another-context
current-context: test-context
users:
- name: test-user
  user:
    token: test-token
`
	path := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, os.WriteFile(path, []byte(kubeconfig), 0o600))
	return path
}

func BenchmarkNewClient(b *testing.B) {
	config := &ClientConfig{
		KubeconfigPath: writeKubeconfig(b),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client, err := NewClient(config)
		if err != nil {
			b.Fatal(err)
		}
		_ = client
	}
}
