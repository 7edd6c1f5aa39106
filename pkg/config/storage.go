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

// StorageBackend identifies a key/value storage backend.
type StorageBackend string

const (
	// StorageBackendFile stores one JSON file per key (default).
	StorageBackendFile StorageBackend = "file"

	// StorageBackendSQL stores records in a SQL table.
	StorageBackendSQL StorageBackend = "sql"
)

// StorageConfig configures durable records such as the usage ledger.
//
//	storage:
//	  backend: sql
//	  database: local
type StorageConfig struct {
	// Backend is "file" or "sql". Default: file.
	Backend StorageBackend `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=file,enum=sql"`

	// Path is the directory for the file backend. Default: .parentpal/state.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Database references an entry in the databases section (sql backend).
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
}

// SetDefaults applies default values to StorageConfig.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StorageBackendFile
	}
	if c.Backend == StorageBackendFile && c.Path == "" {
		c.Path = ".parentpal/state"
	}
}

// Validate checks the storage configuration.
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case StorageBackendFile:
		if c.Path == "" {
			return fmt.Errorf("path is required for the file backend")
		}
	case StorageBackendSQL:
		if c.Database == "" {
			return fmt.Errorf("database is required for the sql backend")
		}
	default:
		return fmt.Errorf("invalid backend %q (valid: file, sql)", c.Backend)
	}
	return nil
}
