package k8s

import (
	"context"
	"io"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
)

// Client is everything the tool handlers need from a cluster.
// It is composed of focused interfaces so handlers and tests can depend on
// the smallest surface they use.
type Client interface {
	ContextManager
	ResourceManager
	SecretManager
	PodManager
	ClusterManager
}

// ContextManager handles kubeconfig context operations.
type ContextManager interface {
	// ListContexts returns all contexts known to the client.
	ListContexts(ctx context.Context) ([]ContextInfo, error)

	// GetCurrentContext returns the active context.
	GetCurrentContext(ctx context.Context) (*ContextInfo, error)

	// SwitchContext changes the active context and drops every cached
	// client. It fails with ErrInClusterContextSwitch when running in-cluster.
	SwitchContext(ctx context.Context, contextName string) error

	// CurrentContext returns the active context name.
	CurrentContext() string

	// InCluster reports whether the client authenticates with the pod's
	// service account.
	InCluster() bool
}

// ResourceManager performs generic operations on any resource kind through
// the dynamic client. Kinds are mapped to resources with a RESTMapper.
type ResourceManager interface {
	// Get returns a single object. The namespace is ignored for
	// cluster-scoped kinds.
	Get(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) (*unstructured.Unstructured, error)

	// List returns the objects of a kind in a namespace, or cluster-wide
	// for cluster-scoped kinds.
	List(ctx context.Context, gvk schema.GroupVersionKind, namespace string, opts ListOptions) (*unstructured.UnstructuredList, error)

	// Apply writes obj into its own namespace, with server-side apply
	// unless opts.ServerSideApply is false.
	Apply(ctx context.Context, obj *unstructured.Unstructured, opts ApplyOptions) (*unstructured.Unstructured, error)

	// Delete removes a single object.
	Delete(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string, opts DeleteOptions) error

	// RESTMapping resolves a kind to its resource and scope.
	RESTMapping(ctx context.Context, gvk schema.GroupVersionKind) (*meta.RESTMapping, error)
}

// SecretManager reads and writes core/v1 Secrets.
type SecretManager interface {
	GetSecret(ctx context.Context, namespace, name string) (*corev1.Secret, error)
	CreateSecret(ctx context.Context, secret *corev1.Secret, dryRun bool) (*corev1.Secret, error)
	UpdateSecret(ctx context.Context, secret *corev1.Secret, dryRun bool) (*corev1.Secret, error)
}

// PodManager handles pod-specific operations.
type PodManager interface {
	ListPods(ctx context.Context, namespace string, opts ListOptions) (*corev1.PodList, error)
	GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error)

	// ListPodEvents returns the events that involve the pod, oldest first.
	ListPodEvents(ctx context.Context, namespace, name string) ([]corev1.Event, error)

	// GetLogs streams logs from a pod container. Callers close the reader.
	GetLogs(ctx context.Context, namespace, podName, containerName string, opts LogOptions) (io.ReadCloser, error)

	// Exec runs a command in a pod container and collects its output.
	// A command that exits non-zero is not an error; see ExecResult.ExitCode.
	Exec(ctx context.Context, namespace, podName, containerName string, command []string, opts ExecOptions) (*ExecResult, error)
}

// ClusterManager handles cluster-level operations.
type ClusterManager interface {
	// ServerVersion queries discovery for the API server version.
	ServerVersion(ctx context.Context) (*version.Info, error)

	// GetClusterHealth rolls API server, component and node status up into
	// a single health report.
	GetClusterHealth(ctx context.Context) (*ClusterHealth, error)

	ListNamespaces(ctx context.Context, opts ListOptions) (*corev1.NamespaceList, error)
}

// ContextInfo describes a kubeconfig context.
type ContextInfo struct {
	Name      string `json:"name"`
	Cluster   string `json:"cluster"`
	User      string `json:"user"`
	Namespace string `json:"namespace"`
	Current   bool   `json:"current"`
}

// ListOptions narrows list operations.
type ListOptions struct {
	LabelSelector string
	FieldSelector string

	// Limit is forwarded to the API server. Zero means no limit.
	Limit int64
}

func (o ListOptions) toMeta() metav1.ListOptions {
	return metav1.ListOptions{
		LabelSelector: o.LabelSelector,
		FieldSelector: o.FieldSelector,
		Limit:         o.Limit,
	}
}

// ApplyOptions controls Apply.
type ApplyOptions struct {
	// FieldManager defaults to DefaultFieldManager.
	FieldManager string

	DryRun bool

	// ServerSideApply selects an apply patch. When false the object is
	// created, or updated over the live resourceVersion when it exists.
	ServerSideApply bool
}

// DeleteOptions controls Delete.
type DeleteOptions struct {
	GracePeriodSeconds *int64
	PropagationPolicy  *metav1.DeletionPropagation
	DryRun             bool
}

// LogOptions controls log retrieval.
type LogOptions struct {
	Previous     bool
	Timestamps   bool
	SinceSeconds *int64
	TailLines    *int64
}

// ExecOptions controls command execution.
type ExecOptions struct {
	// Timeout bounds the whole exec stream. Zero means DefaultExecTimeout.
	Timeout time.Duration
}

// ExecResult is the outcome of a command run in a container.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// ClusterHealth is the rolled-up cluster status.
type ClusterHealth struct {
	Status         string            `json:"status"`
	ClusterVersion string            `json:"clusterVersion,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Components     []ComponentHealth `json:"components"`
	Nodes          []NodeHealth      `json:"nodes"`
}

// ComponentHealth is the status of a control-plane component.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NodeHealth is the readiness of a node.
type NodeHealth struct {
	Name       string                 `json:"name"`
	Ready      bool                   `json:"ready"`
	Conditions []corev1.NodeCondition `json:"conditions,omitempty"`
}

// Logger is the leveled logger the client writes through.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
