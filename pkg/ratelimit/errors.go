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

package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimitExceeded is returned when the request quota is exhausted.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitError carries the wait before the next slot opens.
type RateLimitError struct {
	// Message is a human-readable error message.
	Message string

	// RetryAfter is how long the caller should wait before retrying.
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *RateLimitError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

// NewRateLimitError creates a RateLimitError for the given wait.
func NewRateLimitError(retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Message:    fmt.Sprintf("rate limit exceeded, retry in %s", retryAfter.Round(time.Second)),
		RetryAfter: retryAfter,
	}
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	return errors.Is(err, ErrRateLimitExceeded)
}

// RetryAfter extracts the wait from a rate limit error.
// Returns 0 if the error is not a RateLimitError.
func RetryAfter(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}
	return 0
}
