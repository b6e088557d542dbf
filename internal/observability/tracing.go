// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Traces are exported over OTLP HTTP to a local collector (default
// localhost:4318). The collector handles authentication and forwarding,
// so no vendor credentials ever pass through the app.
//
// # Configuration
//
// Config file (~/.cvforge/config.yaml):
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  service_name: "cvforge"
//	  environment: "dev"
//
// Environment overrides: CVFORGE_TRACING_ENABLED, CVFORGE_TRACING_ENDPOINT.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cvforge/cvforge/internal/log"
)

// DefaultEndpoint is the default OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for trace exporter setup.
type Config struct {
	// Enabled turns tracing on; when false, Setup returns a noop tracer.
	Enabled bool
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318)
	Endpoint string
	// ServiceName is the service name attached to every span
	ServiceName string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
}

// Setup creates a tracer provider exporting to the configured collector.
//
// Returns the tracer to hand to the engine and a shutdown function that
// flushes pending spans. When tracing is disabled or the exporter cannot
// be created, a noop tracer is returned and the app runs untraced - a
// missing collector never blocks the chat client.
func Setup(ctx context.Context, logger log.Logger, cfg Config) (trace.Tracer, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer("cvforge"), noopShutdown, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector doesn't need TLS
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noop.NewTracerProvider().Tracer("cvforge"), noopShutdown, nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	shutdown := func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down tracer provider: %w", err)
		}
		return nil
	}
	return provider.Tracer("cvforge"), shutdown, nil
}
