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

// UsageConfig configures token accounting.
type UsageConfig struct {
	// DefaultLimit is the token quota of a fresh ledger. Default: 10000.
	DefaultLimit int64 `yaml:"default_limit,omitempty" json:"default_limit,omitempty"`

	// ResetPeriod advances the reset date on every reset. Default: 720h.
	ResetPeriod time.Duration `yaml:"reset_period,omitempty" json:"reset_period,omitempty"`

	// HistoryLimit caps retained usage records. Default: 1000.
	HistoryLimit int `yaml:"history_limit,omitempty" json:"history_limit,omitempty"`
}

// SetDefaults applies default values to UsageConfig.
func (c *UsageConfig) SetDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10000
	}
	if c.ResetPeriod == 0 {
		c.ResetPeriod = 30 * 24 * time.Hour
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 1000
	}
}

// Validate checks the usage configuration.
func (c *UsageConfig) Validate() error {
	if c.DefaultLimit < 0 {
		return fmt.Errorf("default_limit must be non-negative")
	}
	if c.ResetPeriod < 0 {
		return fmt.Errorf("reset_period must be non-negative")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must be non-negative")
	}
	return nil
}
