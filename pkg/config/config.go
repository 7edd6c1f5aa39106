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

// Package config defines the ParentPal configuration tree.
//
// Configuration is read from YAML (or JSON), environment variables are
// expanded, defaults are applied section by section and the result is
// validated before any component is built.
package config

import (
	"fmt"
	"sort"

	"github.com/jbuican14/parentPal-06-16/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	// Logger configures logging.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Databases holds named SQL connections referenced by other sections.
	Databases map[string]*DatabaseConfig `yaml:"databases,omitempty" json:"databases,omitempty"`

	// Storage configures durable key/value records (usage ledger, agent connection).
	Storage StorageConfig `yaml:"storage,omitempty" json:"storage,omitempty"`

	// RateLimiting configures the request gate.
	RateLimiting *RateLimitConfig `yaml:"rate_limiting,omitempty" json:"rate_limiting,omitempty"`

	// Cache configures response memoization.
	Cache CacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`

	// Usage configures token accounting.
	Usage UsageConfig `yaml:"usage,omitempty" json:"usage,omitempty"`

	// AI configures request processing.
	AI AIConfig `yaml:"ai,omitempty" json:"ai,omitempty"`

	// Agent configures the optional remote processing agent.
	Agent AgentConfig `yaml:"agent,omitempty" json:"agent,omitempty"`

	// Document configures uploaded document parsing.
	Document DocumentConfig `yaml:"document,omitempty" json:"document,omitempty"`

	// Calendar reports calendar connectivity to the assistant.
	Calendar CalendarConfig `yaml:"calendar,omitempty" json:"calendar,omitempty"`

	// Observability configures tracing and metrics.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// ProcessConfigPipeline applies defaults and validates the configuration.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	if c.Databases == nil {
		c.Databases = make(map[string]*DatabaseConfig)
	}
	for _, db := range c.Databases {
		if db != nil {
			db.SetDefaults()
		}
	}
	if c.RateLimiting == nil {
		c.RateLimiting = &RateLimitConfig{}
	}

	c.Logger.SetDefaults()
	c.Server.SetDefaults()
	c.Storage.SetDefaults()
	c.RateLimiting.SetDefaults()
	c.Cache.SetDefaults()
	c.Usage.SetDefaults()
	c.AI.SetDefaults()
	c.Agent.SetDefaults()
	c.Document.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and cross references.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	for _, name := range c.ListDatabases() {
		db := c.Databases[name]
		if db == nil {
			return fmt.Errorf("databases.%s: definition is empty", name)
		}
		if err := db.Validate(); err != nil {
			return fmt.Errorf("databases.%s: %w", name, err)
		}
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.Storage.Backend == StorageBackendSQL {
		if _, ok := c.GetDatabase(c.Storage.Database); !ok {
			return fmt.Errorf("storage: database %q not found", c.Storage.Database)
		}
	}
	if err := c.RateLimiting.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Usage.Validate(); err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Document.Validate(); err != nil {
		return fmt.Errorf("document: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// GetDatabase returns a named database configuration.
func (c *Config) GetDatabase(name string) (*DatabaseConfig, bool) {
	db, ok := c.Databases[name]
	return db, ok && db != nil
}

// ListDatabases returns database names in sorted order.
func (c *Config) ListDatabases() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a processed configuration with no file input.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
