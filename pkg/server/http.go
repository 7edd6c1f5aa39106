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

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/document"
	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/job"
	"github.com/jbuican14/parentPal-06-16/pkg/observability"
	"github.com/jbuican14/parentPal-06-16/pkg/remoteagent"
	"github.com/jbuican14/parentPal-06-16/pkg/voice"
)

// Deps are the components served by the HTTP API. Gateway is required.
type Deps struct {
	Gateway *gateway.Gateway

	// Processor answers text, voice and document submissions. Defaults to
	// the gateway's LocalProcessor.
	Processor gateway.Processor

	Documents *document.Registry
	Jobs      *job.Tracker
	Recorder  *voice.Recorder

	// Connector backs the agent status and reconnect routes. Optional.
	Connector *remoteagent.Connector

	// Agent is mounted at /agent/ws when the server config exposes it.
	Agent http.Handler
}

func (d *Deps) setDefaults() error {
	if d.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}
	if d.Processor == nil {
		d.Processor = gateway.NewLocalProcessor(d.Gateway)
	}
	if d.Documents == nil {
		d.Documents = document.NewRegistry()
	}
	if d.Jobs == nil {
		d.Jobs = job.NewTracker()
	}
	if d.Recorder == nil {
		d.Recorder = voice.NewRecorder()
	}
	return nil
}

// HTTPServer is the ParentPal HTTP server.
type HTTPServer struct {
	cfg    *config.ServerConfig
	server *http.Server

	observability *observability.Manager

	mu         sync.RWMutex
	deps       Deps
	handler    http.Handler
	recordings map[string]*voice.Recording
}

// HTTPServerOption configures the HTTP server.
type HTTPServerOption func(*HTTPServer)

// WithObservability sets the observability manager for tracing and metrics.
func WithObservability(obs *observability.Manager) HTTPServerOption {
	return func(s *HTTPServer) {
		s.observability = obs
	}
}

// NewHTTPServer creates the HTTP server for deps.
func NewHTTPServer(cfg *config.ServerConfig, deps Deps, opts ...HTTPServerOption) (*HTTPServer, error) {
	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	cfg.SetDefaults()
	if err := deps.setDefaults(); err != nil {
		return nil, err
	}

	s := &HTTPServer{
		cfg:        cfg,
		deps:       deps,
		recordings: make(map[string]*voice.Recording),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observability == nil {
		s.observability = observability.NoopManager()
	}

	s.handler = s.setupRoutes()
	return s, nil
}

// ServeHTTP routes a request through the current handler.
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	h.ServeHTTP(w, r)
}

// UpdateDeps swaps the served components (for hot-reload).
func (s *HTTPServer) UpdateDeps(deps Deps) error {
	if err := deps.setDefaults(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps = deps
	s.handler = s.setupRoutes()
	slog.Debug("HTTP dependencies updated")
	return nil
}

func (s *HTTPServer) current() Deps {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deps
}

// setupRoutes builds the router for the current deps.
func (s *HTTPServer) setupRoutes() http.Handler {
	r := chi.NewRouter()

	// Order: observability -> logging -> cors -> body limit -> routes
	r.Use(observability.HTTPMiddleware(s.observability.Tracer(), s.observability.Metrics()))
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.limitBody)

	r.Get("/health", s.handleHealth)

	if s.observability.MetricsEnabled() {
		endpoint := s.observability.MetricsEndpoint()
		r.Handle(endpoint, s.observability.MetricsHandler())
		slog.Info("Metrics endpoint enabled", "path", endpoint)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/events/parse", s.handleParse)
		r.Post("/voice", s.handleVoice)
		r.Post("/documents", s.handleDocument)
		r.Post("/chat", s.handleChat)
		r.Post("/suggestions", s.handleSuggestions)

		r.Post("/voice/recordings", s.handleStartRecording)
		r.Post("/voice/recordings/{id}/stop", s.handleStopRecording)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)

		r.Get("/usage", s.handleUsage)
		r.Get("/usage/history", s.handleUsageHistory)
		r.Get("/usage/stats", s.handleUsageStats)
		r.Post("/usage/reset", s.handleUsageReset)

		r.Get("/agent/status", s.handleAgentStatus)
		r.Post("/agent/reconnect", s.handleAgentReconnect)
	})

	if s.cfg.ExposeAgent && s.deps.Agent != nil {
		r.Get("/agent/ws", s.deps.Agent.ServeHTTP)
		slog.Info("Agent endpoint enabled", "path", "/agent/ws")
	}

	return r
}

// Start starts the HTTP server and blocks until ctx is done or the
// listener fails.
func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server and stops open recordings.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	var err error
	if s.server != nil {
		slog.Info("HTTP server shutting down")
		if shutdownErr := s.server.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("HTTP shutdown error: %w", shutdownErr)
		}
	}
	s.current().Recorder.Close()
	return err
}

// Address returns the configured listen address.
func (s *HTTPServer) Address() string {
	return s.cfg.Address()
}

// corsMiddleware adds CORS headers.
func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	cors := s.cfg.CORS
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cors == nil {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin := r.Header.Get("Origin"); origin != "" {
			for _, allowed := range cors.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					break
				}
			}
			if config.BoolValue(cors.AllowCredentials, false) {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests without wrapping the ResponseWriter, so
// the WebSocket upgrade keeps its Hijacker.
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *HTTPServer) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && s.cfg.MaxBodySize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}
