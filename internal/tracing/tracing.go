// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tracing wires the process's OpenTelemetry tracer provider to a
// Jaeger collector endpoint, when one is configured. With no endpoint set,
// Setup installs a no-op provider so span creation stays cheap.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
)

// Config names the service for emitted spans and, optionally, where to
// ship them.
type Config struct {
	ServiceName    string
	JaegerEndpoint string
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Setup installs a global tracer provider. When cfg.JaegerEndpoint is
// empty, spans are created but never exported.
func Setup(cfg Config) (Shutdown, error) {
	if cfg.JaegerEndpoint == "" {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindOther, "build jaeger exporter")
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
