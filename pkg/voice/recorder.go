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

// Package voice manages voice recording sessions.
//
// Start returns an owned *Recording handle that the caller passes back to
// Stop. A recording that reaches its maximum duration stops itself.
package voice

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxDuration caps a recording when Start is given zero.
const DefaultMaxDuration = 2 * time.Minute

// ErrNotFound is returned for unknown recording ids.
var ErrNotFound = errors.New("recording not found")

// Recording is a handle to one recording session.
type Recording struct {
	ID        string
	StartedAt time.Time
	Max       time.Duration

	mu      sync.Mutex
	now     func() time.Time
	timer   *time.Timer
	done    chan struct{}
	elapsed time.Duration
	stopped bool
	auto    bool
}

// Remaining returns the time left before the recording stops itself.
func (r *Recording) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return 0
	}
	left := r.Max - r.now().Sub(r.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Elapsed returns the recorded duration so far, or the final duration once
// stopped.
func (r *Recording) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return r.elapsed
	}
	return min(r.now().Sub(r.StartedAt), r.Max)
}

// Stopped reports whether the recording has ended.
func (r *Recording) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// AutoStopped reports whether the recording ended by reaching Max.
func (r *Recording) AutoStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auto
}

// Done is closed when the recording stops.
func (r *Recording) Done() <-chan struct{} {
	return r.done
}

// stop ends the recording once and reports whether this call ended it.
func (r *Recording) stop(auto bool) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return r.elapsed, false
	}
	r.stopped = true
	r.auto = auto
	r.timer.Stop()
	if auto {
		r.elapsed = r.Max
	} else {
		r.elapsed = min(r.now().Sub(r.StartedAt), r.Max)
	}
	close(r.done)
	return r.elapsed, true
}

// Recorder owns the active recordings.
type Recorder struct {
	mu         sync.Mutex
	recordings map[string]*Recording
	now        func() time.Time
	onStop     func(*Recording)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source used for elapsed and remaining time.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithOnStop registers a callback run after a recording ends, manually or
// by reaching its maximum.
func WithOnStop(fn func(*Recording)) Option {
	return func(r *Recorder) {
		r.onStop = fn
	}
}

// NewRecorder creates a recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		recordings: make(map[string]*Recording),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a recording limited to max.
func (r *Recorder) Start(limit time.Duration) *Recording {
	if limit <= 0 {
		limit = DefaultMaxDuration
	}
	rec := &Recording{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
		Max:       limit,
		now:       r.now,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.recordings[rec.ID] = rec
	r.mu.Unlock()

	// Lock the handle so the timer cannot fire before it is assigned.
	rec.mu.Lock()
	rec.timer = time.AfterFunc(limit, func() {
		if _, ended := rec.stop(true); ended {
			slog.Debug("Recording reached maximum duration", "id", rec.ID, "max", limit)
			r.finish(rec)
		}
	})
	rec.mu.Unlock()

	slog.Debug("Recording started", "id", rec.ID, "max", limit)
	return rec
}

// Stop ends rec and returns the recorded duration. Stopping a recording
// that already ended returns its final duration.
func (r *Recorder) Stop(rec *Recording) (time.Duration, error) {
	if rec == nil {
		return 0, fmt.Errorf("%w: nil handle", ErrNotFound)
	}
	elapsed, ended := rec.stop(false)
	if ended {
		slog.Debug("Recording stopped", "id", rec.ID, "elapsed", elapsed)
		r.finish(rec)
	}
	return elapsed, nil
}

func (r *Recorder) finish(rec *Recording) {
	r.mu.Lock()
	delete(r.recordings, rec.ID)
	r.mu.Unlock()
	if r.onStop != nil {
		r.onStop(rec)
	}
}

// Get returns the active recording with id.
func (r *Recorder) Get(id string) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recordings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Active returns the number of recordings in progress.
func (r *Recorder) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recordings)
}

// Close stops every active recording.
func (r *Recorder) Close() {
	r.mu.Lock()
	active := make([]*Recording, 0, len(r.recordings))
	for _, rec := range r.recordings {
		active = append(active, rec)
	}
	r.mu.Unlock()

	for _, rec := range active {
		_, _ = r.Stop(rec)
	}
}
