// Package k8s is the control-plane client behind every tool.
//
// The Client interface is broken down into focused concerns:
//
//   - ContextManager: kubeconfig context listing and switching
//   - ResourceManager: generic get, list, apply and delete of any kind
//   - SecretManager: typed Secret reads and writes
//   - PodManager: pod listing, events, logs and exec
//   - ClusterManager: server version, health rollup and namespaces
//
// Generic operations take a GroupVersionKind and resolve it through a
// discovery-backed RESTMapper, cached per context. Cluster-scoped kinds
// ignore the namespace they are given. Clients (clientset, dynamic,
// discovery, mapper) are cached per kubeconfig context and dropped when
// the active context changes.
//
// Failures reported by the API server come back as *UpstreamError, which
// unwraps to the client-go error:
//
//	_, err := client.GetSecret(ctx, "default", "db")
//	if apierrors.IsNotFound(err) {
//		// create it
//	}
//
// The client performs no policy checks of its own. Callers run the guard
// engine before any mutating call.
//
// For tests, NewClientFromInterfaces wraps the client-go fakes; the k8stest
// package assembles a ready fixture.
package k8s
