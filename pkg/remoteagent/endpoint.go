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

package remoteagent

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNoEndpoint is returned when no agent URL is configured.
	ErrNoEndpoint = errors.New("no agent endpoint configured")

	// ErrPlaceholderEndpoint is returned for template URLs left unedited.
	ErrPlaceholderEndpoint = errors.New("agent endpoint is a placeholder")

	// ErrInvalidEndpoint is returned for URLs that cannot be dialed.
	ErrInvalidEndpoint = errors.New("invalid agent endpoint")
)

var placeholderMarkers = []string{
	"your-", "your_", "placeholder", "changeme", "example.com", "<", "{",
}

// CheckEndpoint reports whether raw is a dialable WebSocket URL.
func CheckEndpoint(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrNoEndpoint
	}

	lower := strings.ToLower(raw)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: %s", ErrPlaceholderEndpoint, raw)
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme must be ws or wss, got %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	return nil
}
