package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/jbuican14/parentPal-06-16"

// Tracer starts spans for ParentPal operations.
type Tracer struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// TracerOption configures NewTracer.
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	exporter sdktrace.SpanExporter
	writer   io.Writer
	global   bool
}

// WithSpanExporter exports spans synchronously to exp instead of the
// configured exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) TracerOption {
	return func(o *tracerOptions) {
		o.exporter = exp
	}
}

// WithStdoutWriter sets the destination of the stdout exporter.
func WithStdoutWriter(w io.Writer) TracerOption {
	return func(o *tracerOptions) {
		o.writer = w
	}
}

// WithGlobal installs the provider as the otel global tracer provider.
func WithGlobal() TracerOption {
	return func(o *tracerOptions) {
		o.global = true
	}
}

// NewTracer builds a tracer from cfg. A disabled config yields a no-op tracer.
func NewTracer(ctx context.Context, cfg TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if !cfg.Enabled {
		return NoopTracer(), nil
	}

	o := tracerOptions{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var processor sdktrace.SpanProcessor
	if o.exporter != nil {
		processor = sdktrace.NewSimpleSpanProcessor(o.exporter)
	} else {
		exporter, err := newExporter(ctx, cfg, o.writer)
		if err != nil {
			return nil, err
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
		sdktrace.WithResource(res),
	)
	if o.global {
		otel.SetTracerProvider(tp)
	}

	return &Tracer{
		tracer:   tp.Tracer(instrumentationName),
		shutdown: tp.Shutdown,
	}, nil
}

func newExporter(ctx context.Context, cfg TracingConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exp, nil
	case ExporterOTLP, "":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

// NoopTracer returns a tracer whose spans are discarded.
func NoopTracer() *Tracer {
	return &Tracer{
		tracer:   noop.NewTracerProvider().Tracer(instrumentationName),
		shutdown: func(context.Context) error { return nil },
	}
}

// Start starts a span. A nil Tracer starts no-op spans.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
