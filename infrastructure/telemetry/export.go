package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultExportInterval is how often metrics are pushed.
const DefaultExportInterval = 15 * time.Second

var (
	// ErrNoEndpoint is returned when metric export has nowhere to go.
	ErrNoEndpoint = errors.New("metrics export needs an endpoint")
	// ErrUnknownExporter is returned for an unsupported metric exporter.
	ErrUnknownExporter = errors.New("unknown metrics exporter")
)

// ExportConfig configures the SDK meter provider behind a recorder.
type ExportConfig struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP HTTP collector, host:port.
	Endpoint string
	Insecure bool
	Interval time.Duration
	// Reader replaces the OTLP exporter.
	Reader sdkmetric.Reader
}

// Pipeline owns a meter provider that pushes measurements to a collector.
type Pipeline struct {
	provider *sdkmetric.MeterProvider
}

// NewPipeline builds the meter provider. The provider is not installed
// globally; recorders built from the pipeline use it directly.
func NewPipeline(ctx context.Context, cfg ExportConfig) (*Pipeline, error) {
	reader := cfg.Reader
	if reader == nil {
		if cfg.Endpoint == "" {
			return nil, ErrNoEndpoint
		}
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = DefaultExportInterval
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
	return &Pipeline{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
	}, nil
}

// Recorder returns a recorder whose instruments live on this pipeline.
func (p *Pipeline) Recorder(config MetricsConfig) *MetricsProvider {
	config.Provider = p.provider
	return NewMetricsProvider(config)
}

// Shutdown flushes pending measurements and stops the exporter.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
