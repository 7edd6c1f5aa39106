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

// Package runtime assembles the ParentPal processing core from a
// configuration.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jbuican14/parentPal-06-16/pkg/cache"
	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/document"
	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/job"
	"github.com/jbuican14/parentPal-06-16/pkg/observability"
	"github.com/jbuican14/parentPal-06-16/pkg/remoteagent"
	"github.com/jbuican14/parentPal-06-16/pkg/server"
	"github.com/jbuican14/parentPal-06-16/pkg/storage"
	"github.com/jbuican14/parentPal-06-16/pkg/usage"
	"github.com/jbuican14/parentPal-06-16/pkg/voice"
)

// Runtime owns every component built from one configuration.
type Runtime struct {
	config *config.Config

	pool          *config.DBPool
	observability *observability.Manager
	ownsObs       bool

	store  storage.Store
	cache  cache.Store
	ledger *usage.Ledger

	gateway   *gateway.Gateway
	processor gateway.Processor
	connector *remoteagent.Connector
	agent     *remoteagent.Server

	documents *document.Registry
	jobs      *job.Tracker
	recorder  *voice.Recorder
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithObservability shares obs instead of building one from the config.
// The caller keeps ownership and shuts it down.
func WithObservability(obs *observability.Manager) Option {
	return func(r *Runtime) {
		r.observability = obs
	}
}

// New builds the runtime for cfg. cfg must have been processed by
// config.ProcessConfigPipeline.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	r := &Runtime{config: cfg, pool: config.NewDBPool()}
	for _, opt := range opts {
		opt(r)
	}
	defer func() {
		if err != nil {
			if cerr := r.Close(); cerr != nil {
				slog.Warn("Failed to clean up runtime after error", "error", cerr)
			}
		}
	}()

	if r.observability == nil {
		obs, err := observability.NewManager(ctx, cfg.Observability)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize observability: %w", err)
		}
		r.observability = obs
		r.ownsObs = true
	}

	if r.store, err = storage.NewFromConfig(ctx, cfg, r.pool); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if r.cache, err = cache.NewFromConfig(ctx, &cfg.Cache); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	r.ledger = usage.NewLedger(ctx, r.store, usage.OptionsFromConfig(&cfg.Usage))
	if reset, err := r.ledger.ResetIfDue(ctx); err != nil {
		slog.Warn("Failed to persist usage reset", "error", err)
	} else if reset {
		slog.Info("Token balance reset", "limit", r.ledger.Balance().Limit)
	}

	if err := r.buildProcessing(); err != nil {
		return nil, err
	}

	r.documents = document.NewFromConfig(&cfg.Document)
	r.jobs = job.NewTracker()
	r.recorder = voice.NewRecorder()

	slog.Info("Runtime initialized",
		"mode", cfg.AI.Mode,
		"storage", cfg.Storage.Backend,
		"cache", cfg.Cache.Backend,
		"estimator", cfg.AI.TokenEstimator,
	)
	return r, nil
}

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *config.Config {
	return r.config
}

// Gateway returns the request gateway.
func (r *Runtime) Gateway() *gateway.Gateway {
	return r.gateway
}

// Processor returns the text, voice and document processor. In remote
// mode it is the agent connector.
func (r *Runtime) Processor() gateway.Processor {
	return r.processor
}

// Connector returns the agent connector, or nil in local mode.
func (r *Runtime) Connector() *remoteagent.Connector {
	return r.connector
}

// Agent returns the WebSocket handler that serves the agent protocol with
// the local pipeline.
func (r *Runtime) Agent() *remoteagent.Server {
	return r.agent
}

// Ledger returns the token ledger.
func (r *Runtime) Ledger() *usage.Ledger {
	return r.ledger
}

// Documents returns the document parser registry.
func (r *Runtime) Documents() *document.Registry {
	return r.documents
}

// Jobs returns the job tracker.
func (r *Runtime) Jobs() *job.Tracker {
	return r.jobs
}

// Observability returns the observability manager in use.
func (r *Runtime) Observability() *observability.Manager {
	return r.observability
}

// Start begins background work. In remote mode the connector dials the
// agent.
func (r *Runtime) Start() {
	if r.connector != nil {
		r.connector.Start()
	}
}

// ServerDeps returns the components served over HTTP.
func (r *Runtime) ServerDeps() server.Deps {
	deps := server.Deps{
		Gateway:   r.gateway,
		Processor: r.processor,
		Documents: r.documents,
		Jobs:      r.jobs,
		Recorder:  r.recorder,
		Connector: r.connector,
	}
	if r.agent != nil {
		deps.Agent = r.agent
	}
	return deps
}

// Close releases every component. It is safe on a partially built runtime.
func (r *Runtime) Close() error {
	var errs []error

	if r.connector != nil {
		if err := r.connector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("agent connector: %w", err))
		}
	}
	if r.agent != nil {
		if err := r.agent.Close(); err != nil {
			errs = append(errs, fmt.Errorf("agent server: %w", err))
		}
	}
	if r.recorder != nil {
		r.recorder.Close()
	}
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if r.pool != nil {
		if err := r.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database pool: %w", err))
		}
	}
	if r.ownsObs && r.observability != nil {
		if err := r.observability.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("observability: %w", err))
		}
	}
	return errors.Join(errs...)
}
