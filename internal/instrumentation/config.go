package instrumentation

import (
	"os"
	"strconv"
	"time"
)

// Exporter and protocol names accepted in Config.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	ProtocolHTTP = "http/protobuf"
	ProtocolGRPC = "grpc"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName defaults to mcp-k8s-guard.
	ServiceName    string
	ServiceVersion string

	// Enabled turns on metrics and tracing. Off by default so an unconfigured
	// process pays nothing.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is the collector URL, e.g. http://localhost:4318.
	OTLPEndpoint string

	// OTLPProtocol is http/protobuf or grpc.
	OTLPProtocol string

	// OTLPInsecure disables TLS towards the collector. Local development only.
	OTLPInsecure bool

	// TraceSamplingRate is the ratio of traces kept, 0.0 to 1.0.
	TraceSamplingRate float64

	// DetailedLabels adds namespace and resource_type labels to Kubernetes
	// operation metrics. Leave off for clusters with many namespaces.
	DetailedLabels bool

	// PrometheusEndpoint is the path the metrics server serves on.
	PrometheusEndpoint string

	// MetricInterval is the export interval for push exporters.
	MetricInterval time.Duration
}

// DefaultConfig returns a Config populated from the environment.
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "mcp-k8s-guard"),
		ServiceVersion:     "unknown",
		Enabled:            getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", false),
		MetricsExporter:    getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPProtocol:       getEnvOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", ProtocolHTTP),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:     getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		MetricInterval:     DefaultMetricInterval,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// Label values shared by metrics and audit records.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDenied  = "denied"

	GuardResultAllowed = "allowed"
	GuardResultDenied  = "denied"

	OperationGet       = "get"
	OperationList      = "list"
	OperationCreate    = "create"
	OperationUpdate    = "update"
	OperationApply     = "apply"
	OperationDelete    = "delete"
	OperationLogs      = "logs"
	OperationExec      = "exec"
	OperationDiscovery = "discovery"

	DefaultMetricInterval = 10 * time.Second
)
