/*
Package tracing is the relay's only entry point onto the global
OpenTelemetry tracer provider. main wires tracing.Init once at startup
from OPENTELEMETRY_URL; every other package calls tracing.Start(ctx, name)
to open a span and never touches the otel SDK packages directly.
*/
package tracing
