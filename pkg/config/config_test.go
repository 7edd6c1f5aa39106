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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, StorageBackendFile, cfg.Storage.Backend)
	assert.True(t, cfg.RateLimiting.IsEnabled())
	assert.Equal(t, 60, cfg.RateLimiting.RequestsPerMinute)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, int64(10000), cfg.Usage.DefaultLimit)
	assert.Equal(t, 720*time.Hour, cfg.Usage.ResetPeriod)
	assert.Equal(t, 1000, cfg.Usage.HistoryLimit)
	assert.Equal(t, AIModeLocal, cfg.AI.Mode)
	assert.Equal(t, EstimatorChars, cfg.AI.TokenEstimator)
	assert.Equal(t, 5, cfg.Agent.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Agent.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Agent.Timeouts.Voice)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeouts.Document)
	assert.Equal(t, 15*time.Second, cfg.Agent.Timeouts.Text)
	assert.Equal(t, int64(DefaultMaxDocumentSize), cfg.Document.MaxSize)
}

func TestCacheConfig_TTLFor(t *testing.T) {
	cfg := CacheConfig{TTL: map[string]time.Duration{"chat": 5 * time.Minute}}
	cfg.SetDefaults()

	assert.Equal(t, 5*time.Minute, cfg.TTLFor("chat"))
	assert.Equal(t, 60*time.Minute, cfg.TTLFor("parse_events"))
	assert.Equal(t, 120*time.Minute, cfg.TTLFor("analyze_document"))
	assert.Equal(t, 30*time.Minute, cfg.TTLFor("suggestions"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logger.Level = "loud" },
			wantErr: "logger",
		},
		{
			name:    "bad storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "s3" },
			wantErr: "storage",
		},
		{
			name: "sql storage without database entry",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendSQL
				c.Storage.Database = "missing"
			},
			wantErr: `database "missing" not found`,
		},
		{
			name:    "bad cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: "cache",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Cache.TTL["chat"] = -time.Second },
			wantErr: "ttl.chat",
		},
		{
			name:    "bad ai mode",
			mutate:  func(c *Config) { c.AI.Mode = "cloud" },
			wantErr: "ai",
		},
		{
			name:    "bad estimator",
			mutate:  func(c *Config) { c.AI.TokenEstimator = "words" },
			wantErr: "token_estimator",
		},
		{
			name: "zero quota while enabled",
			mutate: func(c *Config) {
				c.RateLimiting.RequestsPerMinute = -1
			},
			wantErr: "requests_per_minute",
		},
		{
			name: "invalid database driver",
			mutate: func(c *Config) {
				c.Databases["main"] = &DatabaseConfig{Driver: "oracle", Database: "x"}
			},
			wantErr: "databases.main",
		},
		{
			name:   "placeholder agent url is allowed",
			mutate: func(c *Config) { c.Agent.URL = "your-agent-url-here" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := &DatabaseConfig{Driver: "postgres", Host: "db", Database: "pp", Username: "u", Password: "p"}
	pg.SetDefaults()
	require.NoError(t, pg.Validate())
	assert.Equal(t, "host=db port=5432 dbname=pp user=u password=p sslmode=disable", pg.DSN())
	assert.Equal(t, "postgres", pg.Dialect())

	my := &DatabaseConfig{Driver: "mysql", Host: "db", Database: "pp", Username: "u", Password: "p"}
	my.SetDefaults()
	assert.Equal(t, "u:p@tcp(db:3306)/pp?parseTime=true", my.DSN())

	lite := &DatabaseConfig{Driver: "SQLite", Database: "/tmp/pp.db"}
	lite.SetDefaults()
	require.NoError(t, lite.Validate())
	assert.Equal(t, "sqlite3", lite.DriverName())
	assert.Equal(t, "sqlite", lite.Dialect())
	assert.Equal(t, "/tmp/pp.db", lite.DSN())

	missingHost := &DatabaseConfig{Driver: "postgres", Database: "pp"}
	assert.Error(t, missingHost.Validate())
}

func TestProcessConfigPipeline_Nil(t *testing.T) {
	_, err := ProcessConfigPipeline(nil)
	assert.Error(t, err)
}
