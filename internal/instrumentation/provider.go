package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Provider owns the meter and tracer providers and the objects built on
// them. A disabled provider hands out no-op metrics and a plain audit logger.
type Provider struct {
	config Config

	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	registry       *promclient.Registry

	metrics     *Metrics
	auditLogger *AuditLogger
}

// ProviderOption customizes NewProvider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	reader sdkmetric.Reader
	logger *slog.Logger
}

// WithMetricReader replaces the configured metrics exporter with reader.
// Tests pass sdkmetric.NewManualReader().
func WithMetricReader(reader sdkmetric.Reader) ProviderOption {
	return func(o *providerOptions) { o.reader = reader }
}

// WithAuditLogger sets the slog logger audit records are written to.
func WithAuditLogger(logger *slog.Logger) ProviderOption {
	return func(o *providerOptions) { o.logger = logger }
}

// NewProvider builds the exporters named in cfg and registers the tracer
// provider globally.
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	o := providerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Provider{config: cfg}

	if !cfg.Enabled && o.reader == nil {
		m, err := NewMetrics(noop.NewMeterProvider().Meter(TracerName), false)
		if err != nil {
			return nil, err
		}
		p.metrics = m
		p.auditLogger = NewAuditLogger(o.logger)
		return p, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	reader := o.reader
	if reader == nil {
		reader, err = p.newMetricReader(ctx)
		if err != nil {
			return nil, err
		}
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	if err := p.initTracing(ctx, res); err != nil {
		return nil, err
	}

	p.metrics, err = NewMetrics(p.meterProvider.Meter(TracerName, metric.WithInstrumentationVersion(cfg.ServiceVersion)), cfg.DetailedLabels)
	if err != nil {
		return nil, err
	}
	p.auditLogger = NewAuditLogger(o.logger).WithMetrics(p.metrics)

	return p, nil
}

// newResource describes this service. The semconv package must match the
// schema version of resource.Default, or Merge rejects the pair.
func newResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func (p *Provider) newMetricReader(ctx context.Context) (sdkmetric.Reader, error) {
	interval := p.config.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}

	switch p.config.MetricsExporter {
	case ExporterPrometheus, "":
		p.registry = promclient.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(p.registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		return exporter, nil

	case ExporterOTLP:
		exporter, err := p.newOTLPMetricExporter(ctx)
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil

	case ExporterStdout:
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil

	default:
		return nil, fmt.Errorf("unsupported metrics exporter %q", p.config.MetricsExporter)
	}
}

func (p *Provider) newOTLPMetricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	if p.config.OTLPProtocol == ProtocolGRPC {
		var opts []otlpmetricgrpc.Option
		if p.config.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpointURL(p.config.OTLPEndpoint))
		}
		if p.config.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC metric exporter: %w", err)
		}
		return exporter, nil
	}

	var opts []otlpmetrichttp.Option
	if p.config.OTLPEndpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(p.config.OTLPEndpoint))
	}
	if p.config.OTLPInsecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP HTTP metric exporter: %w", err)
	}
	return exporter, nil
}

func (p *Provider) initTracing(ctx context.Context, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch p.config.TracingExporter {
	case ExporterNone, "":
		return nil
	case ExporterOTLP:
		exporter, err = p.newOTLPTraceExporter(ctx)
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return fmt.Errorf("unsupported tracing exporter %q", p.config.TracingExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.TraceSamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.TraceSamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.TraceSamplingRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) newOTLPTraceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if p.config.OTLPProtocol == ProtocolGRPC {
		var opts []otlptracegrpc.Option
		if p.config.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(p.config.OTLPEndpoint))
		}
		if p.config.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	var opts []otlptracehttp.Option
	if p.config.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(p.config.OTLPEndpoint))
	}
	if p.config.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

// Enabled reports whether instrumentation was turned on.
func (p *Provider) Enabled() bool {
	return p != nil && p.meterProvider != nil
}

// Config returns the configuration the provider was built from.
func (p *Provider) Config() Config {
	return p.config
}

func (p *Provider) Metrics() *Metrics {
	if p == nil {
		return nil
	}
	return p.metrics
}

func (p *Provider) AuditLogger() *AuditLogger {
	if p == nil {
		return nil
	}
	return p.auditLogger
}

// PrometheusHandler serves the registry of the Prometheus exporter. It is
// nil unless the metrics exporter is prometheus.
func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Shutdown flushes and stops the meter and tracer providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
