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

package config

import (
	"fmt"
	"time"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Default cache lifetimes per gateway operation.
var defaultCacheTTL = map[string]time.Duration{
	"parse_events":     60 * time.Minute,
	"chat":             15 * time.Minute,
	"analyze_document": 120 * time.Minute,
	"suggestions":      30 * time.Minute,
}

// CacheConfig configures response memoization.
//
//	cache:
//	  backend: redis
//	  redis:
//	    addr: localhost:6379
//	  ttl:
//	    chat: 5m
type CacheConfig struct {
	// Backend is "memory" or "redis". Default: memory.
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=memory,enum=redis"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`

	// TTL overrides the lifetime of cached results per operation.
	TTL map[string]time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// RedisConfig configures a redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`

	// Prefix scopes every key written by ParentPal. Default: parentpal:cache:.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// SetDefaults applies default values to CacheConfig.
func (c *CacheConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = CacheBackendMemory
	}
	if c.Backend == CacheBackendRedis {
		if c.Redis.Addr == "" {
			c.Redis.Addr = "localhost:6379"
		}
		if c.Redis.Prefix == "" {
			c.Redis.Prefix = "parentpal:cache:"
		}
	}
	if c.TTL == nil {
		c.TTL = make(map[string]time.Duration, len(defaultCacheTTL))
	}
	for op, ttl := range defaultCacheTTL {
		if _, ok := c.TTL[op]; !ok {
			c.TTL[op] = ttl
		}
	}
}

// Validate checks the cache configuration.
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid backend %q (valid: memory, redis)", c.Backend)
	}
	for op, ttl := range c.TTL {
		if ttl <= 0 {
			return fmt.Errorf("ttl.%s must be positive", op)
		}
	}
	return nil
}

// TTLFor returns the cache lifetime for an operation.
func (c *CacheConfig) TTLFor(operation string) time.Duration {
	if ttl, ok := c.TTL[operation]; ok {
		return ttl
	}
	return defaultCacheTTL[operation]
}
