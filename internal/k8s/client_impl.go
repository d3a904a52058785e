package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"k8s.io/client-go/tools/remotecommand"
)

// kubernetesClient implements the Client interface using client-go.
type kubernetesClient struct {
	config *ClientConfig

	// Per-context client cache, dropped on context switch.
	mu               sync.RWMutex
	clientsets       map[string]kubernetes.Interface
	dynamicClients   map[string]dynamic.Interface
	discoveryClients map[string]discovery.DiscoveryInterface
	restConfigs      map[string]*rest.Config
	mappers          map[string]meta.RESTMapper

	// Set by NewClientFromInterfaces; bypasses the cache.
	fixed *fixedClients

	// Coalesces RESTMapper resets per context.
	resetGroup singleflight.Group

	newExecutor ExecutorFactory

	kubeconfigData *clientcmdapi.Config
	currentContext string

	qpsLimit   float32
	burstLimit int
	timeout    time.Duration
}

type fixedClients struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	mapper    meta.RESTMapper
}

// ClientConfig holds configuration for the Kubernetes client.
type ClientConfig struct {
	// Kubeconfig settings
	KubeconfigPath string
	Context        string

	// Use in-cluster service account authentication instead of kubeconfig
	InCluster bool

	// Performance settings
	QPSLimit   float32
	BurstLimit int
	Timeout    time.Duration

	Logger Logger
}

// ExecutorFactory builds the stream executor for a pod exec request.
type ExecutorFactory func(ctx context.Context, namespace, podName string, opts *corev1.PodExecOptions) (remotecommand.Executor, error)

// ClientOption configures a client built by NewClientFromInterfaces.
type ClientOption func(*kubernetesClient)

// WithExecutorFactory replaces the SPDY executor used by Exec.
func WithExecutorFactory(f ExecutorFactory) ClientOption {
	return func(c *kubernetesClient) {
		c.newExecutor = f
	}
}

// WithKubeconfig gives the client a set of contexts to list and switch
// between. The config's current context becomes the active one.
func WithKubeconfig(cfg *clientcmdapi.Config) ClientOption {
	return func(c *kubernetesClient) {
		c.kubeconfigData = cfg
		c.currentContext = cfg.CurrentContext
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *kubernetesClient) {
		c.config.Logger = logger
	}
}

// NewClient creates a new Kubernetes client with the given configuration.
func NewClient(config *ClientConfig) (*kubernetesClient, error) {
	if config == nil {
		return nil, fmt.Errorf("client configuration is required")
	}

	if config.QPSLimit == 0 {
		config.QPSLimit = DefaultQPSLimit
	}
	if config.BurstLimit == 0 {
		config.BurstLimit = DefaultBurstLimit
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout * time.Second
	}

	client := newKubernetesClient(config)

	if config.InCluster {
		client.currentContext = InClusterContext

		if err := client.validateInClusterEnvironment(); err != nil {
			return nil, fmt.Errorf("in-cluster authentication not available: %w", err)
		}

		client.logInfo("Using in-cluster authentication")
		return client, nil
	}

	if err := client.loadKubeconfig(); err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	if config.Context != "" {
		client.currentContext = config.Context
	} else {
		client.currentContext = client.kubeconfigData.CurrentContext
	}

	if _, exists := client.kubeconfigData.Contexts[client.currentContext]; !exists && client.currentContext != "" {
		return nil, fmt.Errorf("context %q does not exist in kubeconfig", client.currentContext)
	}

	client.logInfo("Using kubeconfig authentication", "context", client.currentContext)

	return client, nil
}

// NewClientFromInterfaces builds a client over already constructed
// interfaces, typically the client-go fakes. The interfaces are used for
// every context.
func NewClientFromInterfaces(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper, opts ...ClientOption) *kubernetesClient {
	client := newKubernetesClient(&ClientConfig{
		QPSLimit:   DefaultQPSLimit,
		BurstLimit: DefaultBurstLimit,
		Timeout:    DefaultTimeout * time.Second,
	})
	client.fixed = &fixedClients{
		clientset: clientset,
		dynamic:   dynamicClient,
		mapper:    mapper,
	}
	client.kubeconfigData = clientcmdapi.NewConfig()

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func newKubernetesClient(config *ClientConfig) *kubernetesClient {
	c := &kubernetesClient{
		config:     config,
		qpsLimit:   config.QPSLimit,
		burstLimit: config.BurstLimit,
		timeout:    config.Timeout,
	}
	c.resetCachesLocked()
	c.newExecutor = c.spdyExecutor
	return c
}

// resetCachesLocked drops every cached client. Caller must hold the write
// lock or own c exclusively.
func (c *kubernetesClient) resetCachesLocked() {
	c.clientsets = make(map[string]kubernetes.Interface)
	c.dynamicClients = make(map[string]dynamic.Interface)
	c.discoveryClients = make(map[string]discovery.DiscoveryInterface)
	c.restConfigs = make(map[string]*rest.Config)
	c.mappers = make(map[string]meta.RESTMapper)
}

// validateInClusterEnvironment checks if the required in-cluster authentication files are present.
func (c *kubernetesClient) validateInClusterEnvironment() error {
	if _, err := os.Stat(DefaultTokenPath); os.IsNotExist(err) {
		return fmt.Errorf("service account token not found at %s", DefaultTokenPath)
	}

	if _, err := os.Stat(DefaultCACertPath); os.IsNotExist(err) {
		return fmt.Errorf("service account CA certificate not found at %s", DefaultCACertPath)
	}

	if _, err := os.Stat(DefaultNamespacePath); os.IsNotExist(err) {
		return fmt.Errorf("service account namespace not found at %s", DefaultNamespacePath)
	}

	return nil
}

// loadKubeconfig loads the kubeconfig from the specified path or default locations.
func (c *kubernetesClient) loadKubeconfig() error {
	{
		kconf := os.Getenv("KUBECONFIG")
		if strings.HasPrefix(kconf, "~/") {
			uhd, _ := os.UserHomeDir()
			kconf = filepath.Join(uhd, kconf[2:])
		}

		if kconf != "" && c.config.KubeconfigPath == "" {
			c.config.KubeconfigPath = kconf
		}
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if c.config.KubeconfigPath != "" {
		loadingRules.ExplicitPath = c.config.KubeconfigPath
	}

	config := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules,
		&clientcmd.ConfigOverrides{},
	)

	rawConfig, err := config.RawConfig()
	if err != nil {
		return fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	c.kubeconfigData = &rawConfig

	return nil
}

// getRestConfig returns a rest.Config for the active context.
func (c *kubernetesClient) getRestConfig() (*rest.Config, error) {
	contextName := c.CurrentContext()

	c.mu.RLock()
	if restConfig, exists := c.restConfigs[contextName]; exists {
		c.mu.RUnlock()
		return restConfig, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.getRestConfigLocked(contextName)
}

// getRestConfigLocked returns a rest.Config for the specified context.
// Caller must hold the write lock.
func (c *kubernetesClient) getRestConfigLocked(contextName string) (*rest.Config, error) {
	if restConfig, exists := c.restConfigs[contextName]; exists {
		return restConfig, nil
	}

	var restConfig *rest.Config
	var err error

	if c.config.InCluster {
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-cluster rest config: %w", err)
		}
	} else {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		if c.config.KubeconfigPath != "" {
			loadingRules.ExplicitPath = c.config.KubeconfigPath
		}

		contextConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			loadingRules,
			&clientcmd.ConfigOverrides{
				CurrentContext: contextName,
			},
		)

		restConfig, err = contextConfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create rest config for context %q: %w", contextName, err)
		}
	}

	restConfig.QPS = c.qpsLimit
	restConfig.Burst = c.burstLimit
	restConfig.Timeout = c.timeout

	c.debug("caching rest config", "context", contextName, "qps", c.qpsLimit, "burst", c.burstLimit)
	c.restConfigs[contextName] = restConfig

	return restConfig, nil
}

// getClientset returns a Kubernetes clientset for the active context.
func (c *kubernetesClient) getClientset() (kubernetes.Interface, error) {
	if c.fixed != nil {
		return c.fixed.clientset, nil
	}

	contextName := c.CurrentContext()

	c.mu.RLock()
	if clientset, exists := c.clientsets[contextName]; exists {
		c.mu.RUnlock()
		return clientset, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if clientset, exists := c.clientsets[contextName]; exists {
		return clientset, nil
	}

	restConfig, err := c.getRestConfigLocked(contextName)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset for context %q: %w", contextName, err)
	}

	c.clientsets[contextName] = clientset

	return clientset, nil
}

// getDynamicClient returns a dynamic client for the active context.
func (c *kubernetesClient) getDynamicClient() (dynamic.Interface, error) {
	if c.fixed != nil {
		return c.fixed.dynamic, nil
	}

	contextName := c.CurrentContext()

	c.mu.RLock()
	if dynamicClient, exists := c.dynamicClients[contextName]; exists {
		c.mu.RUnlock()
		return dynamicClient, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if dynamicClient, exists := c.dynamicClients[contextName]; exists {
		return dynamicClient, nil
	}

	restConfig, err := c.getRestConfigLocked(contextName)
	if err != nil {
		return nil, err
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client for context %q: %w", contextName, err)
	}

	c.dynamicClients[contextName] = dynamicClient

	return dynamicClient, nil
}

// getDiscoveryClient returns a discovery client for the active context.
func (c *kubernetesClient) getDiscoveryClient() (discovery.DiscoveryInterface, error) {
	if c.fixed != nil {
		return c.fixed.clientset.Discovery(), nil
	}

	contextName := c.CurrentContext()

	c.mu.RLock()
	if discoveryClient, exists := c.discoveryClients[contextName]; exists {
		c.mu.RUnlock()
		return discoveryClient, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.getDiscoveryClientLocked(contextName)
}

// getDiscoveryClientLocked returns a discovery client for the specified
// context. Caller must hold the write lock.
func (c *kubernetesClient) getDiscoveryClientLocked(contextName string) (discovery.DiscoveryInterface, error) {
	if discoveryClient, exists := c.discoveryClients[contextName]; exists {
		return discoveryClient, nil
	}

	restConfig, err := c.getRestConfigLocked(contextName)
	if err != nil {
		return nil, err
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client for context %q: %w", contextName, err)
	}

	c.discoveryClients[contextName] = discoveryClient

	return discoveryClient, nil
}

// getMapper returns the RESTMapper for the active context. Discovery
// results are cached in memory until the mapper is reset.
func (c *kubernetesClient) getMapper() (meta.RESTMapper, string, error) {
	contextName := c.CurrentContext()

	if c.fixed != nil {
		return c.fixed.mapper, contextName, nil
	}

	c.mu.RLock()
	if mapper, exists := c.mappers[contextName]; exists {
		c.mu.RUnlock()
		return mapper, contextName, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if mapper, exists := c.mappers[contextName]; exists {
		return mapper, contextName, nil
	}

	discoveryClient, err := c.getDiscoveryClientLocked(contextName)
	if err != nil {
		return nil, "", err
	}

	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient))
	c.mappers[contextName] = mapper

	return mapper, contextName, nil
}

// spdyExecutor is the default ExecutorFactory.
func (c *kubernetesClient) spdyExecutor(_ context.Context, namespace, podName string, opts *corev1.PodExecOptions) (remotecommand.Executor, error) {
	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	restConfig, err := c.getRestConfig()
	if err != nil {
		return nil, err
	}

	req := clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(podName).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(opts, scheme.ParameterCodec)

	return remotecommand.NewSPDYExecutor(restConfig, "POST", req.URL())
}

func (c *kubernetesClient) logOperation(operation, namespace, resource, name string) {
	c.debug("kubernetes operation",
		"operation", operation,
		"kube_context", c.CurrentContext(),
		"namespace", namespace,
		"resource", resource,
		"name", name,
	)
}

func (c *kubernetesClient) debug(msg string, args ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

func (c *kubernetesClient) logInfo(msg string, args ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, args...)
	}
}

func (c *kubernetesClient) logWarn(msg string, args ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Warn(msg, args...)
	}
}

// ContextManager implementation

// CurrentContext returns the active context name.
func (c *kubernetesClient) CurrentContext() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentContext
}

// InCluster reports whether the client uses in-cluster authentication.
func (c *kubernetesClient) InCluster() bool {
	return c.config.InCluster
}

// ListContexts returns all available Kubernetes contexts, sorted by name.
func (c *kubernetesClient) ListContexts(ctx context.Context) ([]ContextInfo, error) {
	c.logOperation("list-contexts", "", "", "")

	if c.config.InCluster {
		return []ContextInfo{c.inClusterContextInfo()}, nil
	}

	current := c.CurrentContext()
	contexts := make([]ContextInfo, 0, len(c.kubeconfigData.Contexts))

	for contextName, contextInfo := range c.kubeconfigData.Contexts {
		contexts = append(contexts, ContextInfo{
			Name:      contextName,
			Cluster:   contextInfo.Cluster,
			User:      contextInfo.AuthInfo,
			Namespace: contextInfo.Namespace,
			Current:   contextName == current,
		})
	}

	sort.Slice(contexts, func(i, j int) bool {
		return contexts[i].Name < contexts[j].Name
	})

	return contexts, nil
}

// GetCurrentContext returns the currently active context.
func (c *kubernetesClient) GetCurrentContext(ctx context.Context) (*ContextInfo, error) {
	if c.config.InCluster {
		info := c.inClusterContextInfo()
		return &info, nil
	}

	current := c.CurrentContext()

	contextInfo, exists := c.kubeconfigData.Contexts[current]
	if !exists {
		return nil, fmt.Errorf("current context %q does not exist", current)
	}

	return &ContextInfo{
		Name:      current,
		Cluster:   contextInfo.Cluster,
		User:      contextInfo.AuthInfo,
		Namespace: contextInfo.Namespace,
		Current:   true,
	}, nil
}

// SwitchContext changes the active Kubernetes context.
func (c *kubernetesClient) SwitchContext(ctx context.Context, contextName string) error {
	c.logOperation("switch-context", "", "", contextName)

	if c.config.InCluster {
		return ErrInClusterContextSwitch
	}

	if _, exists := c.kubeconfigData.Contexts[contextName]; !exists {
		return fmt.Errorf("context %q does not exist in kubeconfig", contextName)
	}

	c.mu.Lock()
	c.currentContext = contextName
	c.resetCachesLocked()
	c.mu.Unlock()

	c.logInfo("switched kubernetes context", "kube_context", contextName)

	return nil
}

func (c *kubernetesClient) inClusterContextInfo() ContextInfo {
	return ContextInfo{
		Name:      InClusterContext,
		Cluster:   InClusterContext,
		User:      "serviceaccount",
		Namespace: c.getInClusterNamespace(),
		Current:   true,
	}
}

// getInClusterNamespace reads the namespace from the service account namespace file.
func (c *kubernetesClient) getInClusterNamespace() string {
	data, err := os.ReadFile(DefaultNamespacePath)
	if err != nil {
		return "default"
	}
	return strings.TrimSpace(string(data))
}
