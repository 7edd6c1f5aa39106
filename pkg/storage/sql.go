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
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps records in the kv_records table.
// It supports Postgres, MySQL, and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore creates the kv_records table if needed.
// Supported dialects: "postgres", "mysql", "sqlite".
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// The usage ledger outgrows MySQL's 64 KiB TEXT.
	valueType := "TEXT"
	if s.dialect == "mysql" {
		valueType = "MEDIUMTEXT"
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS kv_records (
    record_key VARCHAR(255) NOT NULL PRIMARY KEY,
    value %s NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`, valueType)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create kv_records table: %w", err)
	}
	return nil
}

// Get returns the record for key.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv_records WHERE record_key = ?`
	if s.dialect == "postgres" {
		query = `SELECT value FROM kv_records WHERE record_key = $1`
	}

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put upserts the record for key.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	var query string
	switch s.dialect {
	case "postgres":
		query = `
			INSERT INTO kv_records (record_key, value, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (record_key)
			DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`
	case "mysql":
		query = `
			INSERT INTO kv_records (record_key, value, updated_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)
		`
	default:
		query = `INSERT OR REPLACE INTO kv_records (record_key, value, updated_at) VALUES (?, ?, ?)`
	}

	if _, err := s.db.ExecContext(ctx, query, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_records WHERE record_key = ?`
	if s.dialect == "postgres" {
		query = `DELETE FROM kv_records WHERE record_key = $1`
	}

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close does not close the database: the handle belongs to the shared pool.
func (s *SQLStore) Close() error {
	return nil
}

// Dialect returns the SQL dialect.
func (s *SQLStore) Dialect() string {
	return s.dialect
}

var _ Store = (*SQLStore)(nil)
