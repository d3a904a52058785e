package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/version"
)

// Health states reported by GetClusterHealth.
const (
	HealthHealthy   = "Healthy"
	HealthDegraded  = "Degraded"
	HealthUnhealthy = "Unhealthy"
	HealthUnknown   = "Unknown"
)

// ClusterManager implementation

// ServerVersion returns the API server version. It doubles as the
// connectivity probe for readiness checks.
func (c *kubernetesClient) ServerVersion(ctx context.Context) (*version.Info, error) {
	discoveryClient, err := c.getDiscoveryClient()
	if err != nil {
		return nil, err
	}

	type versionResult struct {
		info *version.Info
		err  error
	}

	// ServerVersion takes no context; bound it by ours.
	done := make(chan versionResult, 1)
	go func() {
		info, err := discoveryClient.ServerVersion()
		done <- versionResult{info: info, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, upstream("discovery", "server version", res.err)
		}
		return res.info, nil
	case <-ctx.Done():
		return nil, upstream("discovery", "server version", ctx.Err())
	}
}

// GetClusterHealth returns the health status of the cluster.
func (c *kubernetesClient) GetClusterHealth(ctx context.Context) (*ClusterHealth, error) {
	c.logOperation("cluster-health", "", "", "")

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	health := &ClusterHealth{
		Status:     HealthUnknown,
		Timestamp:  time.Now().UTC(),
		Components: []ComponentHealth{},
		Nodes:      []NodeHealth{},
	}

	info, err := c.ServerVersion(ctx)
	if err != nil {
		health.Status = HealthUnhealthy
		health.Components = append(health.Components, ComponentHealth{
			Name:    "API Server",
			Status:  HealthUnhealthy,
			Message: fmt.Sprintf("Failed to get server version: %v", err),
		})
		return health, nil
	}

	health.ClusterVersion = info.GitVersion
	health.Components = append(health.Components, ComponentHealth{
		Name:    "API Server",
		Status:  HealthHealthy,
		Message: fmt.Sprintf("Version: %s", info.String()),
	})

	// ComponentStatus is deprecated and absent on many distributions.
	componentStatuses, err := clientset.CoreV1().ComponentStatuses().List(ctx, metav1.ListOptions{})
	if err != nil {
		c.logWarn("failed to get component statuses", "error", err)
	} else {
		for _, component := range componentStatuses.Items {
			componentHealth := ComponentHealth{
				Name:   component.Name,
				Status: HealthUnknown,
			}

			for _, condition := range component.Conditions {
				if condition.Type == corev1.ComponentHealthy {
					if condition.Status == corev1.ConditionTrue {
						componentHealth.Status = HealthHealthy
					} else {
						componentHealth.Status = HealthUnhealthy
						componentHealth.Message = condition.Message
					}
					break
				}
			}

			health.Components = append(health.Components, componentHealth)
		}
	}

	nodes, err := clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		c.logWarn("failed to get nodes", "error", err)
	} else {
		for _, node := range nodes.Items {
			nodeHealth := NodeHealth{
				Name:       node.Name,
				Conditions: node.Status.Conditions,
			}

			for _, condition := range node.Status.Conditions {
				if condition.Type == corev1.NodeReady {
					nodeHealth.Ready = condition.Status == corev1.ConditionTrue
					break
				}
			}

			health.Nodes = append(health.Nodes, nodeHealth)
		}
	}

	health.Status = calculateOverallHealth(health.Components, health.Nodes)

	return health, nil
}

// ListNamespaces returns the namespaces in the cluster.
func (c *kubernetesClient) ListNamespaces(ctx context.Context, opts ListOptions) (*corev1.NamespaceList, error) {
	c.logOperation("list", "", "Namespace", "")

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	namespaces, err := clientset.CoreV1().Namespaces().List(ctx, opts.toMeta())
	if err != nil {
		return nil, upstream("list", "Namespace", err)
	}
	return namespaces, nil
}

// calculateOverallHealth determines the overall cluster health based on components and nodes.
func calculateOverallHealth(components []ComponentHealth, nodes []NodeHealth) string {
	criticalComponents := map[string]bool{
		"etcd":                    true,
		"kube-apiserver":          true,
		"kube-controller-manager": true,
		"kube-scheduler":          true,
	}

	for _, component := range components {
		if criticalComponents[component.Name] && component.Status == HealthUnhealthy {
			return HealthUnhealthy
		}
	}

	// Fewer than half the nodes ready
	if len(nodes) > 0 {
		readyNodes := 0
		for _, node := range nodes {
			if node.Ready {
				readyNodes++
			}
		}

		if readyNodes < len(nodes)/2 {
			return HealthDegraded
		}
	}

	for _, component := range components {
		if component.Status == HealthUnhealthy {
			return HealthDegraded
		}
	}

	return HealthHealthy
}
