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
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/observability"
	"github.com/jbuican14/parentPal-06-16/pkg/runtime"
	"github.com/jbuican14/parentPal-06-16/pkg/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides server.port)."`
	Watch bool `help:"Reload the configuration when the file changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reload func(*config.Config)
	cfg, loader, err := cli.loadConfig(ctx, config.WithOnChange(func(next *config.Config) {
		if reload != nil {
			reload(next)
		}
	}))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	// One manager for the process so reloads keep the metrics registry.
	obs, err := observability.NewManager(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown error", "error", err)
		}
	}()

	rt, err := runtime.New(ctx, cfg, runtime.WithObservability(obs))
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}

	srv, err := server.NewHTTPServer(&cfg.Server, rt.ServerDeps(), server.WithObservability(obs))
	if err != nil {
		rt.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}
	rt.Start()

	var mu sync.Mutex
	current := rt
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if err := current.Close(); err != nil {
			slog.Warn("Runtime cleanup error", "error", err)
		}
	}()

	// Listener and observability settings need a restart; everything else
	// is rebuilt and swapped in.
	reload = func(next *config.Config) {
		next.Server = cfg.Server
		next.Observability = cfg.Observability

		nrt, err := runtime.New(ctx, next, runtime.WithObservability(obs))
		if err != nil {
			slog.Error("Failed to rebuild runtime, keeping previous configuration", "error", err)
			return
		}
		if err := srv.UpdateDeps(nrt.ServerDeps()); err != nil {
			slog.Error("Failed to apply reloaded configuration", "error", err)
			nrt.Close()
			return
		}
		nrt.Start()

		mu.Lock()
		old := current
		current = nrt
		mu.Unlock()
		if err := old.Close(); err != nil {
			slog.Warn("Previous runtime cleanup error", "error", err)
		}
		slog.Info("Configuration applied", "mode", next.AI.Mode)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if c.Watch && loader != nil {
		g.Go(func() error {
			if err := loader.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("config watch: %w", err)
			}
			return nil
		})
	}

	printReady(cfg, srv, obs, c.Watch && loader != nil)
	return g.Wait()
}

func printReady(cfg *config.Config, srv *server.HTTPServer, obs *observability.Manager, watching bool) {
	fmt.Printf("\nParentPal server ready\n")
	fmt.Printf("   API:         http://%s/api\n", srv.Address())
	fmt.Printf("   Health:      http://%s/health\n", srv.Address())
	if obs.MetricsEnabled() {
		fmt.Printf("   Metrics:     http://%s%s\n", srv.Address(), obs.MetricsEndpoint())
	}
	if cfg.Server.ExposeAgent {
		fmt.Printf("   Agent:       ws://%s/agent/ws\n", srv.Address())
	}
	fmt.Printf("   Mode:        %s\n", cfg.AI.Mode)
	if cfg.AI.Mode == config.AIModeRemote {
		fmt.Printf("   Remote:      %s\n", displayOr(cfg.Agent.URL, "(not configured, local fallback)"))
	}
	fmt.Printf("   Storage:     %s\n", cfg.Storage.Backend)
	if watching {
		fmt.Printf("   Watching:    configuration changes\n")
	}
	fmt.Println("\nPress Ctrl+C to stop")
}

func displayOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
