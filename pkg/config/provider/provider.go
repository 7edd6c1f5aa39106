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

// Package provider defines the config source abstraction.
//
// Providers load raw configuration bytes and signal when the source
// changes. The file provider is the only source ParentPal ships.
package provider

import (
	"context"
	"fmt"
)

// Type identifies the config source type.
type Type string

const (
	// TypeFile reads a local YAML or JSON file.
	TypeFile Type = "file"

	// TypeStatic serves bytes held in memory; it never changes.
	TypeStatic Type = "static"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "static":
		return TypeStatic, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Type returns the provider type for logging/debugging.
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch starts watching for changes and signals via the returned channel.
	// The channel receives a value when config changes.
	// Cancel the context to stop watching.
	// Returns nil channel if watching is not supported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ProviderConfig configures provider creation.
type ProviderConfig struct {
	// Type specifies the provider type (file, static).
	Type Type

	// Path is the config file path.
	Path string

	// Data is the content served by the static provider.
	Data []byte
}

// New creates a Provider based on ProviderConfig.
func New(opts ProviderConfig) (Provider, error) {
	switch opts.Type {
	case TypeFile, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("config path is required")
		}
		return NewFileProvider(opts.Path)
	case TypeStatic:
		return NewStaticProvider(opts.Data), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", opts.Type)
	}
}

// StaticProvider serves fixed bytes. Watch is not supported.
type StaticProvider struct {
	data []byte
}

// NewStaticProvider creates a provider over data.
func NewStaticProvider(data []byte) *StaticProvider {
	return &StaticProvider{data: data}
}

// Type returns TypeStatic.
func (p *StaticProvider) Type() Type { return TypeStatic }

// Load returns the configured bytes.
func (p *StaticProvider) Load(context.Context) ([]byte, error) { return p.data, nil }

// Watch returns a nil channel.
func (p *StaticProvider) Watch(context.Context) (<-chan struct{}, error) { return nil, nil }

// Close is a no-op.
func (p *StaticProvider) Close() error { return nil }

var _ Provider = (*StaticProvider)(nil)
