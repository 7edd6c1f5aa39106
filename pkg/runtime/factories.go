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

package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/extract"
	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/ratelimit"
	"github.com/jbuican14/parentPal-06-16/pkg/remoteagent"
	"github.com/jbuican14/parentPal-06-16/pkg/tokens"
)

// buildProcessing wires the gateways, the connector and the agent server.
//
// The local gateway always extracts with the rule engine; it answers the
// agent endpoint and the connector's fallback. In remote mode the public
// gateway extracts through the connector so chat and document analysis
// reach the agent too.
func (r *Runtime) buildProcessing() error {
	cfg := r.config

	estimator, err := tokens.NewFromConfig(&cfg.AI)
	if err != nil {
		return fmt.Errorf("failed to initialize token estimator: %w", err)
	}
	limiter := ratelimit.NewFromConfig(cfg.RateLimiting)

	local, err := r.newGateway(limiter, estimator, extract.NewRuleExtractor())
	if err != nil {
		return err
	}
	localProcessor := gateway.NewLocalProcessor(local)
	r.agent = remoteagent.NewServer(localProcessor)

	if cfg.AI.Mode != config.AIModeRemote {
		r.gateway = local
		r.processor = localProcessor
		return nil
	}

	opts := remoteagent.OptionsFromConfig(&cfg.Agent)
	opts.Local = localProcessor
	opts.Ledger = r.ledger
	opts.Limiter = limiter
	opts.Estimator = estimator
	opts.Store = r.store
	opts.Tracer = r.observability.Tracer()
	opts.Metrics = r.observability.Metrics()

	conn, err := remoteagent.NewConnector(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize agent connector: %w", err)
	}
	r.connector = conn

	remote, err := r.newGateway(limiter, estimator, extract.ExtractorFunc(
		func(ctx context.Context, text string) ([]extract.ParsedEvent, error) {
			return conn.ExtractEvents(ctx, text)
		}))
	if err != nil {
		return err
	}
	r.gateway = remote
	r.processor = conn
	return nil
}

func (r *Runtime) newGateway(limiter ratelimit.Limiter, estimator tokens.Estimator, extractor extract.Extractor) (*gateway.Gateway, error) {
	cfg := r.config
	gw, err := gateway.New(gateway.Options{
		Limiter:           limiter,
		Cache:             r.cache,
		Ledger:            r.ledger,
		Estimator:         estimator,
		Extractor:         extractor,
		Tracer:            r.observability.Tracer(),
		Metrics:           r.observability.Metrics(),
		TTL:               func(op gateway.Operation) time.Duration { return cfg.Cache.TTLFor(string(op)) },
		CalendarConnected: func() bool { return cfg.Calendar.Connected },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}
	return gw, nil
}
