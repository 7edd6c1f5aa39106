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
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
)

// Server is the agent side of the protocol. It upgrades HTTP requests to
// WebSocket and answers request envelopes with a Processor. Requests on
// one connection are handled concurrently.
type Server struct {
	processor gateway.Processor
	upgrader  websocket.Upgrader
	now       func() time.Time

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCheckOrigin sets the origin check of the upgrader. All origins are
// accepted by default.
func WithCheckOrigin(fn func(r *http.Request) bool) ServerOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithServerClock sets the clock used for envelope timestamps.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates an agent server backed by p.
func NewServer(p gateway.Processor, opts ...ServerOption) *Server {
	s := &Server{
		processor: p,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now:   time.Now,
		conns: make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP handles one agent connection until the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Agent upgrade failed", "error", err)
		return
	}
	session := r.Header.Get(SessionHeader)
	slog.Info("Agent client connected", "session", session, "remote", r.RemoteAddr)

	s.track(conn, true)
	defer s.track(conn, false)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	send := func(env *Envelope) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(env); err != nil {
			slog.Debug("Failed to write agent response", "id", env.ID, "error", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Agent client read failed", "session", session, "error", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			send(s.errorEnvelope("", "", fmt.Errorf("malformed envelope: %w", err)))
			continue
		}
		if env.Type != TypeRequest {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			send(s.answer(ctx, &env))
		}()
	}

	cancel()
	wg.Wait()
	conn.Close()
	slog.Info("Agent client disconnected", "session", session)
}

func (s *Server) track(conn *websocket.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close closes every open client connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	return nil
}

func (s *Server) answer(ctx context.Context, req *Envelope) *Envelope {
	out, tokensUsed, err := s.dispatch(ctx, req)
	if err != nil {
		slog.Warn("Agent request failed", "operation", req.Operation, "id", req.ID, "error", err)
		return s.errorEnvelope(req.ID, req.Operation, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return s.errorEnvelope(req.ID, req.Operation, fmt.Errorf("failed to encode result: %w", err))
	}

	env := &Envelope{
		ID:        req.ID,
		Type:      TypeResponse,
		Operation: req.Operation,
		Data:      data,
		Timestamp: s.now(),
	}
	if tokensUsed > 0 {
		env.TokenUsage = &TokenUsage{TokensUsed: tokensUsed}
	}
	return env
}

func (s *Server) dispatch(ctx context.Context, req *Envelope) (any, int64, error) {
	switch req.Operation {
	case OpProcessText, OpExtractEvents:
		var p textPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, 0, err
		}
		res, err := s.processor.ProcessText(ctx, p.Text)
		if err != nil {
			return nil, 0, err
		}
		if req.Operation == OpExtractEvents {
			return map[string]any{"events": res.Events}, res.TokensUsed, nil
		}
		return res, res.TokensUsed, nil

	case OpProcessVoice:
		var p voicePayload
		if err := decodePayload(req, &p); err != nil {
			return nil, 0, err
		}
		res, err := s.processor.ProcessVoice(ctx, p.Transcript)
		if err != nil {
			return nil, 0, err
		}
		return res, res.TokensUsed, nil

	case OpProcessDocument:
		var p documentPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, 0, err
		}
		res, err := s.processor.ProcessDocument(ctx, p.Name, p.Content)
		if err != nil {
			return nil, 0, err
		}
		return res, res.TokensUsed, nil

	default:
		return nil, 0, fmt.Errorf("unknown operation %q", req.Operation)
	}
}

func decodePayload(req *Envelope, v any) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%s request has no data", req.Operation)
	}
	if err := json.Unmarshal(req.Data, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", req.Operation, err)
	}
	return nil
}

func (s *Server) errorEnvelope(id, operation string, err error) *Envelope {
	data, _ := json.Marshal(ErrorData{Message: err.Error()})
	return &Envelope{
		ID:        id,
		Type:      TypeError,
		Operation: operation,
		Data:      data,
		Timestamp: s.now(),
	}
}
