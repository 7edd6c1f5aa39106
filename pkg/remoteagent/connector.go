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

package remoteagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/extract"
	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/observability"
	"github.com/jbuican14/parentPal-06-16/pkg/ratelimit"
	"github.com/jbuican14/parentPal-06-16/pkg/storage"
	"github.com/jbuican14/parentPal-06-16/pkg/tokens"
	"github.com/jbuican14/parentPal-06-16/pkg/usage"
)

const (
	// ConnectionKey is the storage key of the connection record.
	ConnectionKey = "parentpal_agent_connection"

	// SourceRemote labels results answered by the agent.
	SourceRemote = "remote"

	// SessionHeader carries the session id on the handshake.
	SessionHeader = "X-ParentPal-Session"

	DefaultQueueSize = 100

	reasonNotConnected = "not connected"
)

var (
	ErrNotConnected   = errors.New("agent not connected")
	ErrClosed         = errors.New("connector closed")
	ErrConnectionLost = errors.New("agent connection lost")
	ErrTimeout        = errors.New("agent request timed out")
	ErrFallback       = errors.New("connector is in fallback mode")
)

// ConnectionRecord is persisted under ConnectionKey.
type ConnectionRecord struct {
	SessionID     string    `json:"sessionId"`
	Endpoint      string    `json:"endpoint"`
	LastConnected time.Time `json:"lastConnected"`
}

// Options configures a Connector. Local is required.
type Options struct {
	URL         string
	BaseDelay   time.Duration
	MaxAttempts int
	DialTimeout time.Duration
	Timeouts    config.AgentTimeouts

	// Local answers operations while the agent is not connected.
	Local gateway.Processor

	// Fallback answers ExtractEvents while the agent is not connected.
	// Defaults to the rule extractor.
	Fallback extract.Extractor

	// Ledger receives the token usage reported by the agent. It also
	// gates remote requests together with Limiter.
	Ledger    *usage.Ledger
	Limiter   ratelimit.Limiter
	Estimator tokens.Estimator

	Store   storage.Store
	Tracer  *observability.Tracer
	Metrics observability.Recorder
	Dialer  *websocket.Dialer

	// QueueSize bounds messages queued while disconnected. Oldest are
	// dropped first.
	QueueSize int

	Now func() time.Time
}

// OptionsFromConfig maps the agent section to connector options.
func OptionsFromConfig(cfg *config.AgentConfig) Options {
	return Options{
		URL:         cfg.URL,
		BaseDelay:   cfg.BaseDelay,
		MaxAttempts: cfg.MaxAttempts,
		DialTimeout: cfg.DialTimeout,
		Timeouts:    cfg.Timeouts,
	}
}

func (o *Options) setDefaults() {
	var defaults config.AgentConfig
	defaults.SetDefaults()

	o.URL = strings.TrimSpace(o.URL)

	if o.BaseDelay <= 0 {
		o.BaseDelay = defaults.BaseDelay
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaults.DialTimeout
	}
	if o.Timeouts.Voice <= 0 {
		o.Timeouts.Voice = defaults.Timeouts.Voice
	}
	if o.Timeouts.Document <= 0 {
		o.Timeouts.Document = defaults.Timeouts.Document
	}
	if o.Timeouts.Text <= 0 {
		o.Timeouts.Text = defaults.Timeouts.Text
	}
	if o.Fallback == nil {
		o.Fallback = extract.NewRuleExtractor()
	}
	if o.Estimator == nil {
		o.Estimator = tokens.CharEstimator{}
	}
	if o.Tracer == nil {
		o.Tracer = observability.NoopTracer()
	}
	if o.Metrics == nil {
		o.Metrics = observability.NoopMetrics{}
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.DialTimeout,
		}
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Status is a snapshot of the connector for status endpoints.
type Status struct {
	State         State      `json:"state"`
	Endpoint      string     `json:"endpoint,omitempty"`
	Configured    bool       `json:"configured"`
	Reason        string     `json:"reason,omitempty"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	Queued        int        `json:"queued"`
	Pending       int        `json:"pending"`
	SessionID     string     `json:"session_id,omitempty"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
}

type reply struct {
	env *Envelope
	err error
}

// waiter is a request awaiting its response. selfBilled requests are
// charged by the caller, so their remote token usage is not recorded.
type waiter struct {
	ch         chan reply
	selfBilled bool
}

// Connector talks to the remote agent and falls back to local processing.
// It implements gateway.Processor and extract.Extractor.
type Connector struct {
	opts        Options
	endpointErr error
	ctx         context.Context
	cancel      context.CancelFunc
	events      emitter

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	attempts int
	timer    *time.Timer
	queue    []*Envelope
	record   ConnectionRecord
	closed   bool

	// writeMu serializes writes to conn. Held across the queue flush so
	// flushed messages precede any new ones.
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*waiter
}

// NewConnector creates a connector. An absent, placeholder or malformed
// URL puts it straight into fallback mode; it never dials in that case.
func NewConnector(opts Options) (*Connector, error) {
	if opts.Local == nil {
		return nil, fmt.Errorf("local processor is required")
	}
	opts.setDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connector{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateDisconnected,
		pending: make(map[string]*waiter),
	}
	c.loadRecord()

	if err := CheckEndpoint(opts.URL); err != nil {
		c.endpointErr = err
		c.state = StateFallback
		slog.Info("Remote agent disabled, using local processing", "reason", err)
	}
	c.opts.Metrics.RecordAgentState(ctx, string(c.state))
	return c, nil
}

// MaxBackoff caps the reconnect delay.
const MaxBackoff = time.Hour

// Backoff returns the delay before reconnect attempt n (1-based), capped at
// MaxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d >= MaxBackoff/2 {
			return MaxBackoff
		}
		d *= 2
	}
	return min(d, MaxBackoff)
}

// On registers a listener for events of typ.
func (c *Connector) On(typ EventType, fn Listener) ListenerID {
	return c.events.on(typ, fn)
}

// Off removes a listener. It reports whether the listener existed.
func (c *Connector) Off(id ListenerID) bool {
	return c.events.off(id)
}

// State returns the current connection state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether requests are sent to the agent.
func (c *Connector) IsConnected() bool {
	return c.State() == StateConnected
}

// Status returns a snapshot of the connector.
func (c *Connector) Status() Status {
	c.mu.Lock()
	st := Status{
		State:       c.state,
		Endpoint:    c.opts.URL,
		Configured:  c.endpointErr == nil,
		Attempts:    c.attempts,
		MaxAttempts: c.opts.MaxAttempts,
		Queued:      len(c.queue),
		SessionID:   c.record.SessionID,
	}
	if !c.record.LastConnected.IsZero() {
		t := c.record.LastConnected
		st.LastConnected = &t
	}
	c.mu.Unlock()

	if c.endpointErr != nil {
		st.Reason = c.endpointErr.Error()
	}
	c.pendingMu.Lock()
	st.Pending = len(c.pending)
	c.pendingMu.Unlock()
	return st
}

// Start dials the agent in the background. It does nothing in fallback mode.
func (c *Connector) Start() {
	if c.endpointErr != nil {
		return
	}
	go func() { _ = c.dial(c.ctx) }()
}

// Connect dials the agent and waits for the handshake. A failed attempt
// schedules the backoff retries and returns the dial error.
func (c *Connector) Connect(ctx context.Context) error {
	if c.endpointErr != nil {
		return c.endpointErr
	}
	return c.dial(ctx)
}

// Reconnect resets the attempt counter and dials again. It is the only way
// out of fallback mode after the retries are exhausted.
func (c *Connector) Reconnect(ctx context.Context) error {
	if c.endpointErr != nil {
		return c.endpointErr
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.attempts = 0
	prev := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	c.stateChanged(prev, StateDisconnected)
	slog.Info("Reconnecting to remote agent", "endpoint", c.opts.URL)
	return c.dial(ctx)
}

func (c *Connector) dial(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state == StateFallback:
		c.mu.Unlock()
		return ErrFallback
	case c.state == StateConnected || c.state == StateConnecting:
		c.mu.Unlock()
		return nil
	}
	prev := c.state
	c.state = StateConnecting
	c.timer = nil
	session := c.record.SessionID
	c.mu.Unlock()
	c.stateChanged(prev, StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set(SessionHeader, session)

	conn, resp, err := c.opts.Dialer.DialContext(dialCtx, c.opts.URL, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		slog.Warn("Remote agent connection failed", "endpoint", c.opts.URL, "error", err)
		c.scheduleRetry()
		return fmt.Errorf("failed to connect to agent: %w", err)
	}

	c.connected(conn)
	return nil
}

func (c *Connector) connected(conn *websocket.Conn) {
	c.writeMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.writeMu.Unlock()
		conn.Close()
		return
	}
	prev := c.state
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.record.Endpoint = c.opts.URL
	c.record.LastConnected = c.opts.Now()
	record := c.record
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	flushed := 0
	for i, env := range queued {
		if err := conn.WriteJSON(env); err != nil {
			slog.Warn("Failed to flush queued agent message", "id", env.ID, "error", err)
			c.mu.Lock()
			c.queue = append(append([]*Envelope(nil), queued[i:]...), c.queue...)
			c.mu.Unlock()
			break
		}
		flushed++
	}
	c.writeMu.Unlock()

	go c.readLoop(conn)

	c.saveRecord(record)
	slog.Info("Connected to remote agent", "endpoint", c.opts.URL, "flushed", flushed)
	c.stateChanged(prev, StateConnected)
}

// scheduleRetry arms the next reconnect, or enters fallback once the
// attempts are exhausted.
func (c *Connector) scheduleRetry() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.state

	if c.attempts >= c.opts.MaxAttempts {
		c.state = StateFallback
		attempts := c.attempts
		c.mu.Unlock()

		slog.Warn("Remote agent unreachable, using local processing", "endpoint", c.opts.URL, "attempts", attempts)
		c.stateChanged(prev, StateFallback)
		c.events.emit(Event{Type: EventFallback, State: StateFallback, Attempt: attempts, Reason: "reconnect attempts exhausted"})
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := Backoff(c.opts.BaseDelay, attempt)
	c.state = StateDisconnected
	c.mu.Unlock()

	slog.Debug("Scheduling agent reconnect", "attempt", attempt, "delay", delay)
	c.stateChanged(prev, StateDisconnected)
	c.events.emit(Event{Type: EventReconnectScheduled, State: StateDisconnected, Attempt: attempt, Delay: delay})

	c.mu.Lock()
	if !c.closed && c.state == StateDisconnected && c.timer == nil {
		c.timer = time.AfterFunc(delay, func() { _ = c.dial(c.ctx) })
	}
	c.mu.Unlock()
}

func (c *Connector) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(conn, err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Ignoring malformed agent message", "error", err)
			continue
		}
		c.handle(&env)
	}
}

func (c *Connector) handle(env *Envelope) {
	if env.TokenUsage != nil && c.billable(env) {
		c.recordTokens(env)
	}

	switch env.Type {
	case TypeResponse, TypeError:
		c.settle(env.ID, reply{env: env})
	case TypeTokenUpdate:
	default:
		slog.Debug("Ignoring agent message", "type", env.Type, "id", env.ID)
	}
}

func (c *Connector) recordTokens(env *Envelope) {
	n := env.TokenUsage.TokensUsed
	if c.opts.Ledger != nil {
		rec := usage.Record{
			Operation:  env.Operation,
			TokensUsed: n,
			Timestamp:  env.Timestamp,
			Cost:       env.TokenUsage.Cost,
		}
		if err := c.opts.Ledger.RecordUsage(c.ctx, rec); err != nil {
			slog.Warn("Failed to record agent token usage", "operation", env.Operation, "error", err)
		}
	}
	c.opts.Metrics.RecordTokens(c.ctx, env.Operation, n)
	c.events.emit(Event{Type: EventTokenUpdate, Operation: env.Operation, Tokens: n})
}

// billable reports whether env's token usage goes to the ledger. Responses
// count only while their request is pending; a late response was already
// answered locally. Usage for self-billed requests is left to the caller.
func (c *Connector) billable(env *Envelope) bool {
	c.pendingMu.Lock()
	w, ok := c.pending[env.ID]
	c.pendingMu.Unlock()

	switch {
	case ok && w.selfBilled:
		slog.Debug("Skipping agent token usage billed by caller", "id", env.ID, "operation", env.Operation)
		return false
	case env.Type == TypeTokenUpdate:
		return true
	case env.Type == TypeResponse && ok:
		return true
	case env.Type == TypeResponse:
		slog.Debug("Skipping token usage of late agent response", "id", env.ID, "operation", env.Operation)
	}
	return false
}

func (c *Connector) settle(id string, r reply) {
	c.pendingMu.Lock()
	w, ok := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if !ok {
		slog.Debug("Dropping agent response with no pending request", "id", id)
		return
	}
	w.ch <- r
}

func (c *Connector) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]*waiter)
	c.pendingMu.Unlock()

	for _, w := range pending {
		w.ch <- reply{err: err}
	}
}

func (c *Connector) connectionLost(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	closed := c.closed
	c.mu.Unlock()

	conn.Close()
	c.failPending(ErrConnectionLost)
	if closed {
		return
	}

	slog.Warn("Remote agent connection lost", "error", err)
	c.scheduleRetry()
}

func (c *Connector) write(env *Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Operation, err)
	}
	return nil
}

// Send delivers a fire-and-forget request. While not connected the message
// is queued and flushed in order on the next successful connect.
func (c *Connector) Send(ctx context.Context, operation string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	env, err := NewRequest(uuid.NewString(), operation, data, c.opts.Now())
	if err != nil {
		return "", err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.state == StateConnected && c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		err := conn.WriteJSON(env)
		if err == nil {
			return env.ID, nil
		}
		slog.Warn("Failed to send agent message, queueing", "operation", operation, "error", err)
		c.mu.Lock()
	}
	c.enqueueLocked(env)
	c.mu.Unlock()
	return env.ID, nil
}

func (c *Connector) enqueueLocked(env *Envelope) {
	if len(c.queue) >= c.opts.QueueSize {
		dropped := c.queue[0]
		c.queue = c.queue[1:]
		slog.Warn("Agent queue full, dropping oldest message", "id", dropped.ID, "operation", dropped.Operation)
	}
	c.queue = append(c.queue, env)
}

// request sends a request and waits for the matching response. When
// selfBilled is set the caller records token usage itself.
func (c *Connector) request(ctx context.Context, operation string, data any, timeout time.Duration, selfBilled bool) (*Envelope, error) {
	env, err := NewRequest(uuid.NewString(), operation, data, c.opts.Now())
	if err != nil {
		return nil, err
	}

	ch := make(chan reply, 1)
	c.pendingMu.Lock()
	c.pending[env.ID] = &waiter{ch: ch, selfBilled: selfBilled}
	c.pendingMu.Unlock()
	defer c.forget(env.ID)

	if err := c.write(env); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.env.Type == TypeError {
			return nil, r.env.remoteError()
		}
		return r.env, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, operation, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connector) forget(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// admit applies the local rate limit and balance check to a remote request.
func (c *Connector) admit(ctx context.Context, operation, text string) error {
	if c.opts.Limiter != nil && !c.opts.Limiter.CanMakeRequest() {
		c.opts.Metrics.RecordRateLimited(ctx, operation)
		return ratelimit.NewRateLimitError(c.opts.Limiter.TimeUntilNextSlot())
	}
	if c.opts.Ledger != nil {
		if err := c.opts.Ledger.Check(c.opts.Estimator.Estimate(text)); err != nil {
			return err
		}
	}
	return nil
}

type localFunc func(ctx context.Context) (*gateway.ProcessResult, error)

// ProcessText parses events from text.
func (c *Connector) ProcessText(ctx context.Context, text string) (*gateway.ProcessResult, error) {
	return c.process(ctx, gateway.KindText, OpProcessText, c.opts.Timeouts.Text, text, textPayload{Text: text},
		func(ctx context.Context) (*gateway.ProcessResult, error) {
			return c.opts.Local.ProcessText(ctx, text)
		})
}

// ProcessVoice parses events from a voice transcript.
func (c *Connector) ProcessVoice(ctx context.Context, transcript string) (*gateway.ProcessResult, error) {
	return c.process(ctx, gateway.KindVoice, OpProcessVoice, c.opts.Timeouts.Voice, transcript, voicePayload{Transcript: transcript},
		func(ctx context.Context) (*gateway.ProcessResult, error) {
			return c.opts.Local.ProcessVoice(ctx, transcript)
		})
}

// ProcessDocument analyzes the text content of a document.
func (c *Connector) ProcessDocument(ctx context.Context, name, content string) (*gateway.ProcessResult, error) {
	return c.process(ctx, gateway.KindDocument, OpProcessDocument, c.opts.Timeouts.Document, content, documentPayload{Name: name, Content: content},
		func(ctx context.Context) (*gateway.ProcessResult, error) {
			return c.opts.Local.ProcessDocument(ctx, name, content)
		})
}

func (c *Connector) process(ctx context.Context, kind, operation string, timeout time.Duration, text string, payload any, local localFunc) (*gateway.ProcessResult, error) {
	ctx, span := c.opts.Tracer.Start(ctx, observability.SpanAgentRequest,
		attribute.String(observability.AttrOperation, operation))
	defer span.End()

	if !c.IsConnected() {
		return c.fallback(ctx, span, operation, reasonNotConnected, local)
	}
	if err := c.admit(ctx, operation, text); err != nil {
		c.opts.Tracer.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	env, err := c.request(ctx, operation, payload, timeout, false)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.opts.Tracer.RecordError(span, ctxErr)
			return nil, ctxErr
		}
		return c.fallback(ctx, span, operation, err.Error(), local)
	}

	var res gateway.ProcessResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return c.fallback(ctx, span, operation, "malformed response: "+err.Error(), local)
	}
	res.Kind = kind
	res.Source = SourceRemote
	res.Fallback = false
	if res.Events == nil {
		res.Events = []extract.ParsedEvent{}
	}
	if env.TokenUsage != nil {
		res.TokensUsed = env.TokenUsage.TokensUsed
	}

	span.SetAttributes(
		attribute.String(observability.AttrSource, SourceRemote),
		attribute.String(observability.AttrRequestID, env.ID),
		attribute.Int(observability.AttrEventCount, len(res.Events)),
	)
	c.opts.Metrics.RecordRequest(ctx, operation, SourceRemote, time.Since(start), "")
	return &res, nil
}

func (c *Connector) fallback(ctx context.Context, span trace.Span, operation, reason string, local localFunc) (*gateway.ProcessResult, error) {
	span.SetAttributes(
		attribute.String(observability.AttrSource, gateway.SourceLocal),
		attribute.Bool(observability.AttrFallback, true),
	)
	if reason != reasonNotConnected {
		slog.Warn("Remote agent request failed, using local processing", "operation", operation, "reason", reason)
	}
	c.opts.Metrics.RecordFallback(ctx, operation)
	c.events.emit(Event{Type: EventFallback, State: c.State(), Operation: operation, Reason: reason})

	res, err := local(ctx)
	if err != nil {
		c.opts.Tracer.RecordError(span, err)
		return nil, err
	}
	res.Source = gateway.SourceLocal
	res.Fallback = true
	return res, nil
}

// ExtractEvents asks the agent for events, using the fallback extractor
// when it is unavailable.
func (c *Connector) ExtractEvents(ctx context.Context, text string) ([]extract.ParsedEvent, error) {
	if !c.IsConnected() {
		return c.opts.Fallback.ExtractEvents(ctx, text)
	}

	// The gateway calling ExtractEvents bills the request with its own
	// estimate.
	env, err := c.request(ctx, OpExtractEvents, textPayload{Text: text}, c.opts.Timeouts.Text, true)
	if err == nil {
		var out struct {
			Events []extract.ParsedEvent `json:"events"`
		}
		if err = json.Unmarshal(env.Data, &out); err == nil {
			if out.Events == nil {
				out.Events = []extract.ParsedEvent{}
			}
			return out.Events, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	slog.Warn("Remote extraction failed, using rule extractor", "error", err)
	c.opts.Metrics.RecordFallback(ctx, OpExtractEvents)
	c.events.emit(Event{Type: EventFallback, State: c.State(), Operation: OpExtractEvents, Reason: err.Error()})
	return c.opts.Fallback.ExtractEvents(ctx, text)
}

func (c *Connector) stateChanged(prev, next State) {
	if prev == next {
		return
	}
	slog.Debug("Agent state changed", "from", prev, "to", next)
	c.opts.Metrics.RecordAgentState(c.ctx, string(next))
	c.events.emit(Event{Type: EventStateChanged, State: next, Previous: prev})
}

func (c *Connector) loadRecord() {
	if c.opts.Store != nil {
		data, err := c.opts.Store.Get(c.ctx, ConnectionKey)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &c.record); err != nil {
				slog.Warn("Discarding unreadable agent connection record", "error", err)
				c.record = ConnectionRecord{}
			}
		case !errors.Is(err, storage.ErrNotFound):
			slog.Warn("Failed to load agent connection record", "error", err)
		}
	}
	if c.record.SessionID == "" {
		c.record.SessionID = uuid.NewString()
	}
}

func (c *Connector) saveRecord(rec ConnectionRecord) {
	if c.opts.Store == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("Failed to encode agent connection record", "error", err)
		return
	}
	if err := c.opts.Store.Put(c.ctx, ConnectionKey, data); err != nil {
		slog.Warn("Failed to save agent connection record", "error", err)
	}
}

// Close stops retries, closes the connection and fails pending requests.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	prev := c.state
	if c.state != StateFallback {
		c.state = StateDisconnected
	}
	next := c.state
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}
	c.failPending(ErrClosed)
	c.stateChanged(prev, next)
	return nil
}

var (
	_ gateway.Processor = (*Connector)(nil)
	_ extract.Extractor = (*Connector)(nil)
)
