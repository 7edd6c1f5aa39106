package ratelimit

import (
	"time"
)

const (
	// DefaultWindow is the sliding window length.
	DefaultWindow = time.Minute

	// DefaultQuota is the number of requests admitted per window.
	DefaultQuota = 60
)

// Config configures a sliding window limiter.
type Config struct {
	// Quota is the maximum number of admitted requests per window.
	Quota int

	// Window is the sliding window length. Default: one minute.
	Window time.Duration

	// Now overrides the clock (tests).
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.Quota <= 0 {
		c.Quota = DefaultQuota
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Status is a snapshot of the limiter state.
type Status struct {
	Quota      int           `json:"quota"`
	Used       int           `json:"used"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
}
