package observability

import (
	"context"
	"net/http"
	"time"
)

// Recorder defines the interface for recording metrics.
// This allows for dependency injection and easier testing.
type Recorder interface {
	RecordRequest(ctx context.Context, operation, source string, d time.Duration, errType string)
	RecordCacheHit(ctx context.Context, operation string)
	RecordRateLimited(ctx context.Context, operation string)
	RecordTokens(ctx context.Context, operation string, tokens int64)
	RecordFallback(ctx context.Context, operation string)
	RecordAgentState(ctx context.Context, state string)
	RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration)
}

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(context.Context, string, string, time.Duration, string)  {}
func (NoopMetrics) RecordCacheHit(context.Context, string)                                {}
func (NoopMetrics) RecordRateLimited(context.Context, string)                             {}
func (NoopMetrics) RecordTokens(context.Context, string, int64)                           {}
func (NoopMetrics) RecordFallback(context.Context, string)                                {}
func (NoopMetrics) RecordAgentState(context.Context, string)                              {}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}

// Handler returns a handler that returns 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

// Ensure implementations satisfy the interface.
var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
