package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/haasonsaas/scout"

// SetupTracing installs the tracer provider selected by exporter: "none"
// (or empty) for a no-op tracer, "stdout" for local debugging, "otlp" for a
// gRPC collector at endpoint. Returns the tracer and a shutdown function.
func SetupTracing(ctx context.Context, exporter, endpoint string) (trace.Tracer, func(context.Context) error, error) {
	switch exporter {
	case "", "none":
		return noop.NewTracerProvider().Tracer(tracerName), func(context.Context) error { return nil }, nil

	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		return installProvider(exp)

	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		return installProvider(exp)

	default:
		return nil, nil, fmt.Errorf("unknown telemetry exporter %q", exporter)
	}
}

func installProvider(exp sdktrace.SpanExporter) (trace.Tracer, func(context.Context) error, error) {
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(provider)
	return provider.Tracer(tracerName), provider.Shutdown, nil
}
