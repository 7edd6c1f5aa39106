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
	"net"
	"strconv"
	"time"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Host to bind to. Default: 0.0.0.0.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port to listen on. Default: 8080.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// ExposeAgent mounts the remote agent endpoint at /agent/ws on the same listener.
	ExposeAgent bool `yaml:"expose_agent,omitempty" json:"expose_agent,omitempty"`

	// ReadTimeout bounds reading a request, including the body. Default: 30s.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`

	// MaxBodySize bounds request bodies, uploads included. Default: 12 MiB.
	MaxBodySize int64 `yaml:"max_body_size,omitempty" json:"max_body_size,omitempty"`

	// CORS configures cross-origin access. Nil allows any origin.
	CORS *CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty"`
}

// CORSConfig restricts cross-origin requests.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`
	AllowCredentials *bool    `yaml:"allow_credentials,omitempty" json:"allow_credentials,omitempty"`
}

// SetDefaults applies default values to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = 12 << 20
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max_body_size must be non-negative")
	}
	if c.CORS != nil && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins must not be empty when cors is set")
	}
	return nil
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
