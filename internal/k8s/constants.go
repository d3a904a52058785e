package k8s

import "time"

const (
	// Service account paths - default Kubernetes in-cluster locations
	DefaultServiceAccountPath = "/var/run/secrets/kubernetes.io/serviceaccount"
	DefaultTokenPath          = DefaultServiceAccountPath + "/token"
	DefaultCACertPath         = DefaultServiceAccountPath + "/ca.crt"
	DefaultNamespacePath      = DefaultServiceAccountPath + "/namespace"

	// Default performance settings
	DefaultQPSLimit   = 20.0
	DefaultBurstLimit = 30
	DefaultTimeout    = 30 // seconds

	// In-cluster context name
	InClusterContext = "in-cluster"

	// DefaultFieldManager owns fields written by server-side apply.
	DefaultFieldManager = "mcp-k8s-server"

	// DefaultExecTimeout bounds a pod exec when the caller gives none.
	DefaultExecTimeout = 30 * time.Second

	// MaxPodEvents is how many of the most recent events a pod lookup keeps.
	MaxPodEvents = 10
)
