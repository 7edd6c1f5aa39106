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
	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

// NewFromConfig creates a Limiter from configuration.
// If rate limiting is disabled, every request is admitted.
//
// Example config:
//
//	rate_limiting:
//	  enabled: true
//	  requests_per_minute: 60
func NewFromConfig(cfg *config.RateLimitConfig) Limiter {
	if cfg == nil || !cfg.IsEnabled() {
		return Unlimited{}
	}
	return NewSlidingWindow(Config{
		Quota:  cfg.RequestsPerMinute,
		Window: DefaultWindow,
	})
}
