// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gateway answers AI requests through a fixed pipeline: rate
// limit, response cache, balance check, dispatch, then cache and bill.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jbuican14/parentPal-06-16/pkg/cache"
	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/extract"
	"github.com/jbuican14/parentPal-06-16/pkg/observability"
	"github.com/jbuican14/parentPal-06-16/pkg/ratelimit"
	"github.com/jbuican14/parentPal-06-16/pkg/tokens"
	"github.com/jbuican14/parentPal-06-16/pkg/usage"
)

// SourceLocal labels requests answered by this process.
const SourceLocal = "local"

// Handler produces the output of one operation.
type Handler func(ctx context.Context, in Input) (any, error)

// Options holds the gateway collaborators. Ledger is required; the rest
// default to in-process implementations.
type Options struct {
	Limiter   ratelimit.Limiter
	Cache     cache.Store
	Ledger    *usage.Ledger
	Estimator tokens.Estimator
	Extractor extract.Extractor
	Tracer    *observability.Tracer
	Metrics   observability.Recorder

	// TTL returns the cache lifetime of an operation. Zero disables caching.
	TTL func(op Operation) time.Duration

	// CalendarConnected feeds the chat context.
	CalendarConnected func() bool
}

// Gateway orchestrates AI requests.
type Gateway struct {
	limiter   ratelimit.Limiter
	cache     cache.Store
	ledger    *usage.Ledger
	estimator tokens.Estimator
	extractor extract.Extractor
	tracer    *observability.Tracer
	metrics   observability.Recorder
	ttl       func(Operation) time.Duration
	calendar  func() bool

	mu       sync.RWMutex
	handlers map[Operation]Handler
}

// New creates a gateway with the built-in operations registered.
func New(opts Options) (*Gateway, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("usage ledger is required")
	}

	g := &Gateway{
		limiter:   opts.Limiter,
		cache:     opts.Cache,
		ledger:    opts.Ledger,
		estimator: opts.Estimator,
		extractor: opts.Extractor,
		tracer:    opts.Tracer,
		metrics:   opts.Metrics,
		ttl:       opts.TTL,
		calendar:  opts.CalendarConnected,
		handlers:  make(map[Operation]Handler),
	}
	if g.limiter == nil {
		g.limiter = ratelimit.Unlimited{}
	}
	if g.cache == nil {
		g.cache = cache.NewMemoryStore()
	}
	if g.estimator == nil {
		g.estimator = tokens.CharEstimator{}
	}
	if g.extractor == nil {
		g.extractor = extract.NewRuleExtractor()
	}
	if g.tracer == nil {
		g.tracer = observability.NoopTracer()
	}
	if g.metrics == nil {
		g.metrics = observability.NoopMetrics{}
	}
	if g.ttl == nil {
		defaults := &config.CacheConfig{}
		g.ttl = func(op Operation) time.Duration { return defaults.TTLFor(string(op)) }
	}
	if g.calendar == nil {
		g.calendar = func() bool { return false }
	}

	g.handlers[OpParseEvents] = g.handleParse
	g.handlers[OpChat] = g.handleChat
	g.handlers[OpAnalyzeDocument] = g.handleAnalyze
	g.handlers[OpSuggestions] = g.handleSuggestions
	return g, nil
}

// Register binds h to op, replacing any existing handler.
func (g *Gateway) Register(op Operation, h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[op] = h
}

// Extractor returns the extractor used by the parse operation.
func (g *Gateway) Extractor() extract.Extractor {
	return g.extractor
}

// Ledger returns the usage ledger billed by the gateway.
func (g *Gateway) Ledger() *usage.Ledger {
	return g.ledger
}

// Limiter returns the request limiter.
func (g *Gateway) Limiter() ratelimit.Limiter {
	return g.limiter
}

// Request runs op through the pipeline. Rate limit denials are returned as
// *ratelimit.RateLimitError, unaffordable requests as
// *usage.InsufficientBalanceError and handler failures as *OperationError.
func (g *Gateway) Request(ctx context.Context, op Operation, in Input) (result *Result, err error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, observability.SpanGatewayRequest,
		attribute.String(observability.AttrOperation, string(op)))
	defer func() {
		g.tracer.RecordError(span, err)
		span.End()
		g.metrics.RecordRequest(ctx, string(op), SourceLocal, time.Since(start), errorType(err))
	}()

	g.mu.RLock()
	h, ok := g.handlers[op]
	g.mu.RUnlock()
	if !ok {
		return nil, &OperationError{Operation: op, Err: ErrUnknownOperation}
	}
	if in == nil {
		return nil, &OperationError{Operation: op, Err: fmt.Errorf("%w: missing payload", ErrInvalidPayload)}
	}

	// 1. Rate limit.
	if !g.limiter.CanMakeRequest() {
		wait := g.limiter.TimeUntilNextSlot()
		g.metrics.RecordRateLimited(ctx, string(op))
		slog.Debug("Request rate limited", "operation", op, "retry_after", wait)
		return nil, ratelimit.NewRateLimitError(wait)
	}

	// 2. Cache.
	key, err := cache.Key(string(op), in)
	if err != nil {
		return nil, &OperationError{Operation: op, Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err)}
	}
	if data, hit, cerr := g.cache.Get(ctx, key); cerr != nil {
		slog.Warn("Cache read failed", "operation", op, "error", cerr)
	} else if hit {
		g.metrics.RecordCacheHit(ctx, string(op))
		span.SetAttributes(attribute.Bool(observability.AttrCacheHit, true))
		return &Result{Operation: op, Data: data, Cached: true}, nil
	}

	// 2b. Balance.
	need := g.estimator.Estimate(in.InputText())
	span.SetAttributes(attribute.Int64(observability.AttrTokens, need))
	if err := g.ledger.Check(need); err != nil {
		return nil, err
	}

	// 3. Dispatch.
	out, err := g.dispatch(ctx, h, in)
	if err != nil {
		return nil, &OperationError{Operation: op, Err: err}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, &OperationError{Operation: op, Err: fmt.Errorf("failed to encode result: %w", err)}
	}

	// 4. Cache and bill.
	if ttl := g.ttl(op); ttl > 0 {
		if cerr := g.cache.Set(ctx, key, data, ttl); cerr != nil {
			slog.Warn("Cache write failed", "operation", op, "error", cerr)
		}
	}
	if uerr := g.ledger.RecordUsage(ctx, usage.Record{
		Operation:  string(op),
		TokensUsed: need,
		Timestamp:  time.Now(),
	}); uerr != nil {
		slog.Warn("Failed to record token usage", "operation", op, "tokens", need, "error", uerr)
	}
	g.metrics.RecordTokens(ctx, string(op), need)

	return &Result{Operation: op, Data: data, TokensUsed: need}, nil
}

// dispatch calls h, converting a panic into an error.
func (g *Gateway) dispatch(ctx context.Context, h Handler, in Input) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Operation handler panicked", "panic", r)
			out, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, in)
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case ratelimit.IsRateLimitError(err):
		return "rate_limited"
	case usage.IsInsufficientBalance(err):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrUnknownOperation):
		return "invalid_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "handler"
	}
}

// Do runs op and decodes the result into T.
func Do[T any](ctx context.Context, g *Gateway, op Operation, in Input) (*Response[T], error) {
	res, err := g.Request(ctx, op, in)
	if err != nil {
		return nil, err
	}
	resp := &Response[T]{Operation: res.Operation, Cached: res.Cached, TokensUsed: res.TokensUsed}
	if err := json.Unmarshal(res.Data, &resp.Data); err != nil {
		return nil, &OperationError{Operation: op, Err: fmt.Errorf("failed to decode result: %w", err)}
	}
	return resp, nil
}

// ParseEvents extracts the events in text.
func (g *Gateway) ParseEvents(ctx context.Context, text string) (*Response[ParseResponse], error) {
	return Do[ParseResponse](ctx, g, OpParseEvents, ParseRequest{Text: text})
}

// Chat answers one assistant message.
func (g *Gateway) Chat(ctx context.Context, message string) (*Response[ChatResponse], error) {
	return Do[ChatResponse](ctx, g, OpChat, ChatRequest{Message: message})
}

// AnalyzeDocument summarizes a parsed document.
func (g *Gateway) AnalyzeDocument(ctx context.Context, name, content string) (*Response[DocumentAnalysis], error) {
	return Do[DocumentAnalysis](ctx, g, OpAnalyzeDocument, AnalyzeRequest{Name: name, Content: content})
}

// Suggestions returns scheduling tips for events.
func (g *Gateway) Suggestions(ctx context.Context, events []extract.ParsedEvent) (*Response[SuggestionsResponse], error) {
	return Do[SuggestionsResponse](ctx, g, OpSuggestions, SuggestionsRequest{Events: events})
}
