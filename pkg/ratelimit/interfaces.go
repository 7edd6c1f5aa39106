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

import "time"

// Limiter is the request gate consulted before every AI request.
//
// Implementations must be thread-safe and support concurrent access.
type Limiter interface {
	// CanMakeRequest reports whether a request may proceed now.
	// An admitted call is recorded against the quota.
	CanMakeRequest() bool

	// TimeUntilNextSlot returns how long a denied caller should wait.
	// Returns 0 when a slot is free.
	TimeUntilNextSlot() time.Duration

	// Status returns the current usage snapshot.
	Status() Status

	// Reset forgets all recorded requests.
	Reset()
}

// Ensure interface compliance at compile time.
var (
	_ Limiter = (*SlidingWindow)(nil)
	_ Limiter = Unlimited{}
)
