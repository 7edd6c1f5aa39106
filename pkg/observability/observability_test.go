package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.Equal(t, ExporterOTLP, cfg.Tracing.Exporter)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.Tracing.Endpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SamplingRate)
	assert.True(t, cfg.Tracing.IsInsecure())
	assert.Equal(t, 10*time.Second, cfg.Tracing.Timeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.Equal(t, "parentpal", cfg.Metrics.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores bad values", Config{Tracing: TracingConfig{Exporter: "zipkin"}}, false},
		{"bad exporter", Config{Tracing: TracingConfig{Enabled: true, Exporter: "zipkin", SamplingRate: 1}}, true},
		{"bad sampling", Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 2}}, true},
		{"otlp needs endpoint", Config{Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SamplingRate: 1}}, true},
		{"stdout", Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 0.5}}, false},
		{"relative metrics path", Config{Metrics: MetricsConfig{Enabled: true, Endpoint: "metrics"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := TracingConfig{Enabled: true}
	cfg.SetDefaults()

	tracer, err := NewTracer(context.Background(), cfg, WithSpanExporter(exp))
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), SpanGatewayRequest)
	tracer.RecordError(span, errors.New("boom"))
	span.End()

	// Shutting down the provider resets the in-memory exporter.
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanGatewayRequest, spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)

	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestTracer_Noop(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracingConfig{})
	require.NoError(t, err)
	_, span := tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	var nilTracer *Tracer
	_, span = nilTracer.Start(context.Background(), "nil")
	span.End()
	assert.NoError(t, nilTracer.Shutdown(context.Background()))
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Namespace: "parentpal"})
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	m.RecordRequest(ctx, "parse_events", "local", 20*time.Millisecond, "")
	m.RecordRequest(ctx, "chat", "local", time.Millisecond, "handler")
	m.RecordCacheHit(ctx, "parse_events")
	m.RecordRateLimited(ctx, "chat")
	m.RecordTokens(ctx, "parse_events", 17)
	m.RecordFallback(ctx, "process_text")
	m.RecordAgentState(ctx, "fallback")

	body := scrape(t, m.Handler())
	for _, name := range []string{
		"parentpal_requests_total",
		"parentpal_errors_total",
		"parentpal_cache_hits_total",
		"parentpal_rate_limited_total",
		"parentpal_tokens_used_total",
		"parentpal_agent_fallbacks_total",
		"parentpal_agent_state_changes_total",
		"parentpal_request_duration_seconds",
	} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, `operation="parse_events"`)
}

func TestManager(t *testing.T) {
	disabled, err := NewManager(context.Background(), Config{})
	require.NoError(t, err)
	assert.False(t, disabled.MetricsEnabled())
	assert.IsType(t, NoopMetrics{}, disabled.Metrics())

	rec := httptest.NewRecorder()
	disabled.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NoError(t, disabled.Shutdown(context.Background()))

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	cfg.SetDefaults()
	enabled, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, enabled.MetricsEnabled())
	assert.NoError(t, enabled.Shutdown(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Namespace: "parentpal"})
	require.NoError(t, err)
	exp := tracetest.NewInMemoryExporter()
	cfg := TracingConfig{Enabled: true, Exporter: ExporterStdout}
	cfg.SetDefaults()
	tracer, err := NewTracer(context.Background(), cfg, WithSpanExporter(exp))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(tracer, m))
	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/123", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := scrape(t, m.Handler())
	assert.Contains(t, body, "parentpal_http_requests_total")
	assert.Contains(t, body, `route="/api/jobs/{id}"`)
	assert.Contains(t, body, `status="404"`)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/jobs/{id}", spans[0].Name)
}
