package main

import (
	"context"
	"log/slog"
	"time"

	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// setupOTEL installs a global tracer provider when an exporter is
// configured. The returned func flushes and stops it.
func setupOTEL(cctx *cli.Context) (func(), error) {
	env := cctx.String("env")
	if env == "" {
		env = "dev"
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("nestree"),
		attribute.String("env", env),         // DataDog
		attribute.String("environment", env), // Others
	)

	var exp tracesdk.SpanExporter
	if cctx.Bool("jaeger") {
		jaegerUrl := "http://localhost:14268/api/traces"
		j, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerUrl)))
		if err != nil {
			return nil, err
		}
		exp = j
	}

	// For relevant environment variables:
	// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
	if ep := cctx.String("otel-exporter-otlp-endpoint"); ep != "" {
		slog.Info("setting up trace exporter", "endpoint", ep)
		o, err := otlptracehttp.New(cctx.Context)
		if err != nil {
			return nil, err
		}
		exp = o
	}

	if exp == nil {
		return func() {}, nil
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}
