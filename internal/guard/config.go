package guard

import (
	"os"
	"strings"
)

// Environment variables read on every check.
const (
	EnvReadOnly           = "MCP_K8S_READONLY"
	EnvNamespaceAllowlist = "MCP_K8S_NAMESPACE_ALLOWLIST"
	EnvKindAllowlist      = "MCP_K8S_KIND_ALLOWLIST"
	EnvDefaultNamespace   = "K8S_NAMESPACE"
)

// DefaultNamespace is used when K8S_NAMESPACE is unset or empty.
const DefaultNamespace = "default"

// envValueTrue is the only value that enables read-only mode.
const envValueTrue = "true"

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Config is a snapshot of the guard configuration.
type Config struct {
	ReadOnly           bool
	NamespaceAllowlist []string
	KindAllowlist      []string
	DefaultNamespace   string
}

// LoadConfig reads the guard configuration through lookup.
// A nil lookup reads the process environment.
func LoadConfig(lookup LookupFunc) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	cfg := Config{
		ReadOnly:           get(EnvReadOnly) == envValueTrue,
		NamespaceAllowlist: ParseList(get(EnvNamespaceAllowlist)),
		KindAllowlist:      ParseList(get(EnvKindAllowlist)),
		DefaultNamespace:   get(EnvDefaultNamespace),
	}
	if cfg.DefaultNamespace == "" {
		cfg.DefaultNamespace = DefaultNamespace
	}
	return cfg
}

// ParseList splits a comma-separated list, trimming whitespace and
// dropping empty entries. It returns nil for an empty input.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
