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

// AgentConfig configures the remote processing agent.
//
// The connector side uses URL and the retry settings. The agent side
// (parentpal agent) listens on Listen.
//
//	agent:
//	  url: ws://agent.internal:8090/agent/ws
//	  max_attempts: 5
//	  base_delay: 1s
//	  timeouts:
//	    text: 15s
type AgentConfig struct {
	// URL is the WebSocket endpoint of the remote agent. Empty disables it.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// BaseDelay is the first reconnect delay; later delays double. Default: 1s.
	BaseDelay time.Duration `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`

	// MaxAttempts is the number of reconnect attempts before fallback. Default: 5.
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`

	// DialTimeout bounds the WebSocket handshake. Default: 10s.
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`

	// Timeouts bound each remote operation before falling back locally.
	Timeouts AgentTimeouts `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`

	// Listen is the address served by the agent command. Default: :8090.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// AgentTimeouts holds per-operation remote timeouts.
type AgentTimeouts struct {
	Voice    time.Duration `yaml:"voice,omitempty" json:"voice,omitempty"`
	Document time.Duration `yaml:"document,omitempty" json:"document,omitempty"`
	Text     time.Duration `yaml:"text,omitempty" json:"text,omitempty"`
}

// SetDefaults applies default values to AgentConfig.
func (c *AgentConfig) SetDefaults() {
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.Timeouts.Voice == 0 {
		c.Timeouts.Voice = 10 * time.Second
	}
	if c.Timeouts.Document == 0 {
		c.Timeouts.Document = 30 * time.Second
	}
	if c.Timeouts.Text == 0 {
		c.Timeouts.Text = 15 * time.Second
	}
	if c.Listen == "" {
		c.Listen = ":8090"
	}
}

// Validate checks the agent configuration. A missing or placeholder URL is
// not an error: the connector runs in fallback mode.
func (c *AgentConfig) Validate() error {
	if c.BaseDelay < 0 {
		return fmt.Errorf("base_delay must be non-negative")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be non-negative")
	}
	if c.Timeouts.Voice < 0 || c.Timeouts.Document < 0 || c.Timeouts.Text < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	return nil
}
