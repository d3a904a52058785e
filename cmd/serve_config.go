package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
)

// Transport type constants for the MCP server.
const (
	transportStdio          = "stdio"
	transportSSE            = "sse"
	transportStreamableHTTP = "streamable-http"
)

// Environment variables that back serve flags when the flag is not set.
const (
	envKubeconfig  = "KUBECONFIG"
	envContext     = "K8S_CONTEXT"
	envQPS         = "K8S_QPS"
	envBurst       = "K8S_BURST"
	envLogFormat   = "LOG_FORMAT"
	envMetricsAddr = "METRICS_ADDR"
)

// ServeConfig holds all configuration for the serve command.
type ServeConfig struct {
	// Transport settings
	Transport string
	HTTPAddr  string

	// Endpoint paths
	SSEEndpoint     string
	MessageEndpoint string
	HTTPEndpoint    string

	// Kubernetes client settings
	Kubeconfig string
	Context    string
	InCluster  bool
	QPSLimit   float32
	BurstLimit int

	// Logging
	DebugMode bool
	LogFormat string

	// MetricsAddr is where the Prometheus metrics server listens.
	MetricsAddr string
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// loadEnvFallbacks fills settings whose flag was not set explicitly from the
// environment. changed reports whether a flag was given on the command line.
func loadEnvFallbacks(config *ServeConfig, changed func(flag string) bool, lookup LookupFunc) {
	loadString := func(flag, env string, target *string) {
		if changed(flag) {
			return
		}
		if v, ok := lookup(env); ok && v != "" {
			*target = v
		}
	}

	loadString("kubeconfig", envKubeconfig, &config.Kubeconfig)
	loadString("context", envContext, &config.Context)
	loadString("log-format", envLogFormat, &config.LogFormat)
	loadString("metrics-addr", envMetricsAddr, &config.MetricsAddr)

	if !changed("qps-limit") {
		if v, ok := lookup(envQPS); ok {
			if qps, ok := parseFloat32Env(v, envQPS); ok {
				config.QPSLimit = qps
			}
		}
	}
	if !changed("burst-limit") {
		if v, ok := lookup(envBurst); ok {
			if burst, ok := parseIntEnv(v, envBurst); ok {
				config.BurstLimit = burst
			}
		}
	}
}

// parseIntEnv parses an integer from an environment variable value.
// Returns the parsed int and true if successful, or zero and false if parsing fails.
// Logs a warning if the value is present but invalid.
func parseIntEnv(value, envName string) (int, bool) {
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("invalid integer in environment", "env", envName, "value", value, logging.Err(err))
		return 0, false
	}
	return n, true
}

// parseFloat32Env parses a float32 from an environment variable value.
// Returns the parsed float and true if successful, or zero and false if parsing fails.
// Logs a warning if the value is present but invalid.
func parseFloat32Env(value, envName string) (float32, bool) {
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		slog.Warn("invalid float in environment", "env", envName, "value", value, logging.Err(err))
		return 0, false
	}
	return float32(f), true
}

// Validate checks the configuration before anything is started.
func (c ServeConfig) Validate() error {
	switch c.Transport {
	case transportStdio, transportSSE, transportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type %q (supported: %s, %s, %s)",
			c.Transport, transportStdio, transportSSE, transportStreamableHTTP)
	}

	switch c.LogFormat {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unsupported log format %q (supported: %s, %s)", c.LogFormat, logging.FormatText, logging.FormatJSON)
	}

	if c.QPSLimit <= 0 {
		return fmt.Errorf("--qps-limit must be positive, got %v", c.QPSLimit)
	}
	if c.BurstLimit <= 0 {
		return fmt.Errorf("--burst-limit must be positive, got %d", c.BurstLimit)
	}

	if c.InCluster && c.Context != "" {
		return fmt.Errorf("--context cannot be used with --in-cluster")
	}

	if c.Transport == transportStdio {
		return nil
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("--http-addr is required for the %s transport", c.Transport)
	}
	endpoints := map[string]string{"--http-endpoint": c.HTTPEndpoint}
	if c.Transport == transportSSE {
		endpoints = map[string]string{"--sse-endpoint": c.SSEEndpoint, "--message-endpoint": c.MessageEndpoint}
	}
	for flag, path := range endpoints {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with '/', got %q", flag, path)
		}
	}
	if c.Transport == transportSSE && c.SSEEndpoint == c.MessageEndpoint {
		return fmt.Errorf("--sse-endpoint and --message-endpoint must differ")
	}
	return nil
}
