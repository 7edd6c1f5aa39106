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

import "fmt"

// DefaultMaxDocumentSize is the upload limit for parsed documents.
const DefaultMaxDocumentSize = 10 << 20

// DocumentConfig configures document parsing.
type DocumentConfig struct {
	// MaxSize is the largest accepted document in bytes. Default: 10 MiB.
	MaxSize int64 `yaml:"max_size,omitempty" json:"max_size,omitempty"`
}

// SetDefaults applies default values to DocumentConfig.
func (c *DocumentConfig) SetDefaults() {
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxDocumentSize
	}
}

// Validate checks the document configuration.
func (c *DocumentConfig) Validate() error {
	if c.MaxSize < 0 {
		return fmt.Errorf("max_size must be non-negative")
	}
	return nil
}

// CalendarConfig reports calendar connectivity. The core never talks to the
// calendar provider; the flag only feeds the assistant's chat context.
type CalendarConfig struct {
	Connected bool `yaml:"connected,omitempty" json:"connected,omitempty"`
}
