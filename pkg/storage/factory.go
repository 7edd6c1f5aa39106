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

package storage

import (
	"context"
	"fmt"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

// NewFromConfig builds the store selected by cfg.Storage. SQL handles come
// from pool so components sharing a database share a connection.
func NewFromConfig(ctx context.Context, cfg *config.Config, pool *config.DBPool) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendFile, "":
		return NewFileStore(cfg.Storage.Path)
	case config.StorageBackendSQL:
		dbCfg, ok := cfg.GetDatabase(cfg.Storage.Database)
		if !ok {
			return nil, fmt.Errorf("storage database %q not found", cfg.Storage.Database)
		}
		db, err := pool.Get(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage database: %w", err)
		}
		return NewSQLStore(ctx, db, dbCfg.Dialect())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
