package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records ParentPal metrics through the OpenTelemetry SDK and
// exposes them in Prometheus format.
type Metrics struct {
	registry *prom.Registry
	provider *sdkmetric.MeterProvider

	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	errors       metric.Int64Counter
	cacheHits    metric.Int64Counter
	rateLimited  metric.Int64Counter
	tokens       metric.Int64Counter
	fallbacks    metric.Int64Counter
	agentStates  metric.Int64Counter
	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on a dedicated Prometheus registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	registry := prom.NewRegistry()
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
		otelprom.WithoutScopeInfo(),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(instrumentationName)
	m := &Metrics{registry: registry, provider: provider}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.requests, "requests", "AI requests handled"},
		{&m.errors, "errors", "AI requests that failed"},
		{&m.cacheHits, "cache.hits", "AI requests answered from the response cache"},
		{&m.rateLimited, "rate_limited", "AI requests denied by the rate limiter"},
		{&m.tokens, "tokens.used", "Tokens billed to the usage ledger"},
		{&m.fallbacks, "agent.fallbacks", "Remote agent requests answered locally"},
		{&m.agentStates, "agent.state_changes", "Remote agent connection state changes"},
		{&m.httpRequests, "http.requests", "HTTP requests served"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	m.duration, err = meter.Float64Histogram("request.duration",
		metric.WithDescription("AI request duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	m.httpDuration, err = meter.Float64Histogram("http.request.duration",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return m, nil
}

func ops(operation string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("operation", operation))
}

// RecordRequest records a finished AI request. errType is empty on success.
func (m *Metrics) RecordRequest(ctx context.Context, operation, source string, d time.Duration, errType string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("source", source),
	))
	m.duration.Record(ctx, d.Seconds(), ops(operation))
	if errType != "" {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("type", errType),
		))
	}
}

func (m *Metrics) RecordCacheHit(ctx context.Context, operation string) {
	m.cacheHits.Add(ctx, 1, ops(operation))
}

func (m *Metrics) RecordRateLimited(ctx context.Context, operation string) {
	m.rateLimited.Add(ctx, 1, ops(operation))
}

func (m *Metrics) RecordTokens(ctx context.Context, operation string, tokens int64) {
	if tokens > 0 {
		m.tokens.Add(ctx, tokens, ops(operation))
	}
}

func (m *Metrics) RecordFallback(ctx context.Context, operation string) {
	m.fallbacks.Add(ctx, 1, ops(operation))
}

func (m *Metrics) RecordAgentState(ctx context.Context, state string) {
	m.agentStates.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry backing the exporter.
func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
