package instrumentation

import "strings"

// ContextType groups kubeconfig context names into a handful of classes so
// metrics can be labelled without one series per context.
type ContextType string

const (
	ContextTypeInCluster   ContextType = "in-cluster"
	ContextTypeDefault     ContextType = "default"
	ContextTypeLocal       ContextType = "local"
	ContextTypeProduction  ContextType = "production"
	ContextTypeStaging     ContextType = "staging"
	ContextTypeDevelopment ContextType = "development"
	ContextTypeOther       ContextType = "other"
)

// inClusterContextName matches the name the k8s client reports when it runs
// from a service account.
const inClusterContextName = "in-cluster"

// localPrefixes are the context name prefixes written by local cluster tools.
var localPrefixes = []string{"kind-", "k3d-", "minikube", "docker-desktop", "rancher-desktop", "colima"}

// ClassifyContextName classifies a kubeconfig context name, case-insensitively.
//
//	ClassifyContextName("")              // "default"
//	ClassifyContextName("in-cluster")    // "in-cluster"
//	ClassifyContextName("kind-dev")      // "local"
//	ClassifyContextName("prod-eu-1")     // "production"
//	ClassifyContextName("stg-eu-1")      // "staging"
//	ClassifyContextName("team-a-dev")    // "development"
//	ClassifyContextName("my-cluster")    // "other"
//
// Local tool prefixes are checked first since names like kind-prod are
// still local clusters.
func ClassifyContextName(name string) string {
	if name == "" {
		return string(ContextTypeDefault)
	}

	n := strings.ToLower(name)
	if n == inClusterContextName {
		return string(ContextTypeInCluster)
	}

	for _, p := range localPrefixes {
		if strings.HasPrefix(n, p) {
			return string(ContextTypeLocal)
		}
	}

	switch {
	case hasToken(n, "prod", "production", "prd", "live"):
		return string(ContextTypeProduction)
	case hasToken(n, "staging", "stg", "stage", "uat"):
		return string(ContextTypeStaging)
	case hasToken(n, "dev", "development", "test", "demo", "sandbox"):
		return string(ContextTypeDevelopment)
	}
	return string(ContextTypeOther)
}

// hasToken reports whether any of tokens appears as a whole segment of name,
// where segments are separated by '-', '_', '.', '@', ':' or '/'.
func hasToken(name string, tokens ...string) bool {
	segments := strings.FieldsFunc(name, func(r rune) bool {
		switch r {
		case '-', '_', '.', '@', ':', '/':
			return true
		}
		return false
	})
	for _, s := range segments {
		for _, t := range tokens {
			if s == t {
				return true
			}
		}
	}
	return false
}
