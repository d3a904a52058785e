// Package k8stest builds k8s.Client instances over the client-go fakes for
// handler and client tests.
package k8stest

import (
	"context"
	"io"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
)

// Context names in the fixture kubeconfig.
const (
	DevContext  = "kind-dev"
	ProdContext = "prod-eu-west"
)

// Kinds known to the fixture RESTMapper.
var (
	PodGVK         = schema.GroupVersionKind{Version: "v1", Kind: "Pod"}
	SecretGVK      = schema.GroupVersionKind{Version: "v1", Kind: "Secret"}
	ConfigMapGVK   = schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}
	ServiceGVK     = schema.GroupVersionKind{Version: "v1", Kind: "Service"}
	NamespaceGVK   = schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}
	NodeGVK        = schema.GroupVersionKind{Version: "v1", Kind: "Node"}
	DeploymentGVK  = schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}
	ClusterRoleGVK = schema.GroupVersionKind{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "ClusterRole"}
)

var namespacedKinds = []schema.GroupVersionKind{PodGVK, SecretGVK, ConfigMapGVK, ServiceGVK, DeploymentGVK}
var clusterKinds = []schema.GroupVersionKind{NamespaceGVK, NodeGVK, ClusterRoleGVK}

// Fixture bundles a k8s.Client with the fakes behind it, so tests can seed
// objects and inspect recorded actions.
type Fixture struct {
	Clientset *fake.Clientset
	Dynamic   *dynamicfake.FakeDynamicClient
	Mapper    *meta.DefaultRESTMapper
	Client    k8s.Client

	execMu   sync.Mutex
	execOpts []*corev1.PodExecOptions
	writes   writeRecorder

	// ExecStdout, ExecStderr and ExecErr script the next exec calls.
	ExecStdout string
	ExecStderr string
	ExecErr    error
}

// New returns a fixture. Typed objects seed the clientset; unstructured
// objects seed the dynamic client.
func New(objects ...runtime.Object) *Fixture {
	var typed, untyped []runtime.Object
	for _, obj := range objects {
		if _, ok := obj.(*unstructured.Unstructured); ok {
			untyped = append(untyped, obj)
		} else {
			typed = append(typed, obj)
		}
	}

	f := &Fixture{
		Clientset: fake.NewSimpleClientset(typed...),
		Mapper:    NewRESTMapper(),
	}
	f.Dynamic = dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds(), untyped...)
	recording := &recordingDynamic{inner: f.Dynamic, recorder: &f.writes}
	f.Client = k8s.NewClientFromInterfaces(f.Clientset, recording, f.Mapper,
		k8s.WithKubeconfig(Kubeconfig()),
		k8s.WithExecutorFactory(f.executor),
	)

	return f
}

// NewRESTMapper maps the fixture kinds with their real scopes.
func NewRESTMapper() *meta.DefaultRESTMapper {
	mapper := meta.NewDefaultRESTMapper(nil)
	for _, gvk := range namespacedKinds {
		mapper.Add(gvk, meta.RESTScopeNamespace)
	}
	for _, gvk := range clusterKinds {
		mapper.Add(gvk, meta.RESTScopeRoot)
	}
	return mapper
}

// GVR returns the resource the fixture mapper assigns to gvk.
func GVR(gvk schema.GroupVersionKind) schema.GroupVersionResource {
	mapping, err := NewRESTMapper().RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		panic(err)
	}
	return mapping.Resource
}

func listKinds() map[schema.GroupVersionResource]string {
	kinds := make(map[schema.GroupVersionResource]string)
	for _, gvk := range append(append([]schema.GroupVersionKind{}, namespacedKinds...), clusterKinds...) {
		kinds[GVR(gvk)] = gvk.Kind + "List"
	}
	return kinds
}

// Kubeconfig returns a config with two contexts, DevContext being current.
func Kubeconfig() *clientcmdapi.Config {
	cfg := clientcmdapi.NewConfig()
	cfg.Clusters["dev"] = &clientcmdapi.Cluster{Server: "https://dev.example.com"}
	cfg.Clusters["prod"] = &clientcmdapi.Cluster{Server: "https://prod.example.com"}
	cfg.AuthInfos["dev-admin"] = &clientcmdapi.AuthInfo{Token: "dev-token"}
	cfg.AuthInfos["prod-reader"] = &clientcmdapi.AuthInfo{Token: "prod-token"}
	cfg.Contexts[DevContext] = &clientcmdapi.Context{Cluster: "dev", AuthInfo: "dev-admin", Namespace: "default"}
	cfg.Contexts[ProdContext] = &clientcmdapi.Context{Cluster: "prod", AuthInfo: "prod-reader", Namespace: "payments"}
	cfg.CurrentContext = DevContext
	return cfg
}

// ExecCalls returns the options of every exec issued so far.
func (f *Fixture) ExecCalls() []*corev1.PodExecOptions {
	f.execMu.Lock()
	defer f.execMu.Unlock()
	return append([]*corev1.PodExecOptions(nil), f.execOpts...)
}

func (f *Fixture) executor(_ context.Context, _, _ string, opts *corev1.PodExecOptions) (remotecommand.Executor, error) {
	f.execMu.Lock()
	f.execOpts = append(f.execOpts, opts)
	f.execMu.Unlock()
	return &scriptedExecutor{stdout: f.ExecStdout, stderr: f.ExecStderr, err: f.ExecErr}, nil
}

type scriptedExecutor struct {
	stdout, stderr string
	err            error
}

func (e *scriptedExecutor) Stream(opts remotecommand.StreamOptions) error {
	return e.StreamWithContext(context.Background(), opts)
}

func (e *scriptedExecutor) StreamWithContext(ctx context.Context, opts remotecommand.StreamOptions) error {
	if opts.Stdout != nil {
		_, _ = io.WriteString(opts.Stdout, e.stdout)
	}
	if opts.Stderr != nil {
		_, _ = io.WriteString(opts.Stderr, e.stderr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.err
}
