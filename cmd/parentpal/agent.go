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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/runtime"
)

// AgentCmd serves the remote agent protocol with the local pipeline.
type AgentCmd struct {
	Listen string `help:"Address to listen on (overrides agent.listen)."`
}

func (c *AgentCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Listen != "" {
		cfg.Agent.Listen = c.Listen
	}
	// The agent answers locally; it never dials another agent.
	cfg.AI.Mode = config.AIModeLocal

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","connections":%d}`, rt.Agent().Connections())
	})
	r.Get("/agent/ws", rt.Agent().ServeHTTP)

	httpSrv := &http.Server{
		Addr:              cfg.Agent.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Agent server starting", "address", cfg.Agent.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown.
		if err := rt.Agent().Close(); err != nil {
			slog.Warn("Failed to close agent connections", "error", err)
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	fmt.Printf("\nParentPal agent ready\n")
	fmt.Printf("   Endpoint:    ws://%s/agent/ws\n", cfg.Agent.Listen)
	fmt.Println("\nPress Ctrl+C to stop")
	return g.Wait()
}
