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

// Package ratelimit gates AI requests with a sliding-window request quota.
//
// The limiter keeps the timestamps of admitted requests. Every check drops
// timestamps older than the window and admits the call only while the
// retained count is below the quota.
//
// # Basic Usage
//
//	limiter := ratelimit.NewSlidingWindow(ratelimit.Config{Quota: 60})
//
//	if !limiter.CanMakeRequest() {
//	    return ratelimit.NewRateLimitError(limiter.TimeUntilNextSlot())
//	}
//
// # Configuration
//
//	rate_limiting:
//	  enabled: true
//	  requests_per_minute: 60
//
// State is process local and resets on restart.
package ratelimit
