// Package tracing wires the relay's OpenTelemetry tracer provider
// (spec.md §1, OPENTELEMETRY_URL). Spans cover the inbox pipeline and
// delivery workers; the collector backend is external and configured
// purely by endpoint, matching a relay that ships no bundled tracing UI.
package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures the tracer provider.
type Config struct {
	// Endpoint is OPENTELEMETRY_URL's host[:port], e.g. "collector:4318".
	// Empty disables tracing: Init returns a no-op provider.
	Endpoint    string
	Insecure    bool
	ServiceName string
}

// Init builds a tracer provider from cfg and installs it as the global
// provider, returning a shutdown func to flush and close it on exit. When
// cfg.Endpoint is empty the global provider is left at otel's default
// no-op rather than standing up an exporter nobody configured.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		// otel defaults to a no-op provider until SetTracerProvider is
		// called; leave it alone rather than standing up an exporter
		// nobody configured.
		return func(context.Context) error { return nil }, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "relay"
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	shutdown := func(shutCtx context.Context) error {
		return provider.Shutdown(shutCtx)
	}
	return shutdown, nil
}

var tracer = otel.Tracer("github.com/cuemby/relay")

// Start opens a span named name under ctx's trace and returns a context
// carrying it plus a finish func that records err (if non-nil) and ends
// the span. Callers defer finish(&err) or pass nil when there is none.
func Start(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
