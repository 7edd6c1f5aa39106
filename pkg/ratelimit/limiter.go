package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow admits at most Quota requests in any Window-long interval.
type SlidingWindow struct {
	quota  int
	window time.Duration
	now    func() time.Time

	mu         sync.Mutex
	timestamps []time.Time // oldest first
}

// NewSlidingWindow creates a limiter. Zero values in cfg take defaults.
func NewSlidingWindow(cfg Config) *SlidingWindow {
	cfg.setDefaults()
	return &SlidingWindow{
		quota:      cfg.Quota,
		window:     cfg.Window,
		now:        cfg.Now,
		timestamps: make([]time.Time, 0, cfg.Quota),
	}
}

// CanMakeRequest drops expired timestamps and admits the call if the
// retained count is below the quota.
func (l *SlidingWindow) CanMakeRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.trimUnlocked(now)

	if len(l.timestamps) >= l.quota {
		return false
	}

	l.timestamps = append(l.timestamps, now)
	return true
}

// TimeUntilNextSlot returns window - (now - oldest), floored at zero.
func (l *SlidingWindow) TimeUntilNextSlot() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.trimUnlocked(now)
	return l.waitUnlocked(now)
}

// Status returns the current usage snapshot.
func (l *SlidingWindow) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.trimUnlocked(now)

	used := len(l.timestamps)
	remaining := l.quota - used
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		Quota:      l.quota,
		Used:       used,
		Remaining:  remaining,
		RetryAfter: l.waitUnlocked(now),
	}
}

// Reset forgets all recorded requests.
func (l *SlidingWindow) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = l.timestamps[:0]
}

// trimUnlocked removes timestamps that left the window.
func (l *SlidingWindow) trimUnlocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(l.timestamps, l.timestamps[i:])
	l.timestamps = l.timestamps[:n]
}

func (l *SlidingWindow) waitUnlocked(now time.Time) time.Duration {
	if len(l.timestamps) < l.quota {
		return 0
	}
	wait := l.window - now.Sub(l.timestamps[0])
	if wait < 0 {
		return 0
	}
	return wait
}

// Unlimited admits every request. Used when rate limiting is disabled.
type Unlimited struct{}

func (Unlimited) CanMakeRequest() bool             { return true }
func (Unlimited) TimeUntilNextSlot() time.Duration { return 0 }
func (Unlimited) Status() Status                   { return Status{} }
func (Unlimited) Reset()                           {}
