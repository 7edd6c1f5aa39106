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

// Package cache memoizes gateway responses for a bounded time.
//
// An entry is visible until its age exceeds its TTL. Expired entries are
// removed when read and never come back.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store is a TTL key/value cache.
type Store interface {
	// Get returns the value and true, or false when absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Key derives a deterministic cache key for an operation and its payload.
// Strings in the payload are trimmed and inner whitespace collapsed before
// hashing, so inputs differing only in spacing share an entry.
func Key(operation string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache payload: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("failed to decode cache payload: %w", err)
	}

	// encoding/json sorts map keys, which makes the encoding canonical.
	normalized, err := json.Marshal(normalize(generic))
	if err != nil {
		return "", fmt.Errorf("failed to encode cache payload: %w", err)
	}

	sum := sha256.Sum256(normalized)
	return operation + ":" + hex.EncodeToString(sum[:]), nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case string:
		return strings.Join(strings.Fields(val), " ")
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}
