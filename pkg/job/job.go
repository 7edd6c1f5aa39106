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

// Package job tracks the lifecycle of UI-facing processing jobs.
//
// A job moves pending → processing exactly once and processing → completed
// or error exactly once. Terminal jobs are never reopened.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the input modality of a job.
type Kind string

const (
	KindVoice    Kind = "voice"
	KindDocument Kind = "document"
	KindText     Kind = "text"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindVoice, KindDocument, KindText:
		return true
	}
	return false
}

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job was created but not started.
	StatusPending Status = "pending"

	// StatusProcessing means the job is running.
	StatusProcessing Status = "processing"

	// StatusCompleted means the job produced output.
	StatusCompleted Status = "completed"

	// StatusError means the job failed.
	StatusError Status = "error"
)

// IsTerminal returns whether this status allows no more transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a job cannot move to the
	// requested status.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Job is a snapshot of one processing job.
type Job struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Input       string     `json:"input"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DefaultCapacity is the number of jobs a Tracker retains.
const DefaultCapacity = 500

// Tracker holds jobs in memory. Once capacity is reached the oldest
// terminal job is dropped.
type Tracker struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	order    []string
	capacity int
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCapacity sets how many jobs are retained.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		jobs:     make(map[string]*Job),
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create registers a pending job.
func (t *Tracker) Create(kind Kind, input string) (Job, error) {
	if !kind.Valid() {
		return Job{}, fmt.Errorf("unknown job kind %q", kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	j := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		Input:     input,
		CreatedAt: t.now(),
	}
	t.jobs[j.ID] = j
	t.order = append(t.order, j.ID)
	t.evict()
	return *j, nil
}

// evict drops the oldest terminal jobs beyond capacity. Must hold mu.
func (t *Tracker) evict() {
	for i := 0; len(t.order) > t.capacity && i < len(t.order); {
		id := t.order[i]
		if t.jobs[id].Status.IsTerminal() {
			delete(t.jobs, id)
			t.order = append(t.order[:i], t.order[i+1:]...)
			continue
		}
		i++
	}
}

// Start moves a pending job to processing.
func (t *Tracker) Start(id string) (Job, error) {
	return t.transition(id, StatusPending, StatusProcessing, func(j *Job, now time.Time) {
		j.StartedAt = &now
	})
}

// Complete moves a processing job to completed with output.
func (t *Tracker) Complete(id string, output any) (Job, error) {
	return t.transition(id, StatusProcessing, StatusCompleted, func(j *Job, now time.Time) {
		j.Output = output
		j.CompletedAt = &now
	})
}

// Fail moves a processing job to error.
func (t *Tracker) Fail(id string, cause error) (Job, error) {
	return t.transition(id, StatusProcessing, StatusError, func(j *Job, now time.Time) {
		if cause != nil {
			j.Error = cause.Error()
		}
		j.CompletedAt = &now
	})
}

func (t *Tracker) transition(id string, from, to Status, apply func(*Job, time.Time)) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status != from {
		return *j, fmt.Errorf("%w: %s is %s, cannot move to %s", ErrInvalidTransition, id, j.Status, to)
	}
	j.Status = to
	apply(j, t.now())
	return *j, nil
}

// Get returns a snapshot of the job.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *j, nil
}

// List returns up to limit jobs, most recently created first. A limit of
// zero or less returns every job.
func (t *Tracker) List(limit int) []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Job, 0, n)
	for i := len(t.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *t.jobs[t.order[i]])
	}
	return out
}

// Run creates a job, executes fn and records its outcome. The returned
// error is fn's error, joined with ErrInvalidTransition when the job was
// settled elsewhere while fn ran. The job is returned in every case once
// it exists.
func (t *Tracker) Run(ctx context.Context, kind Kind, input string, fn func(context.Context) (any, error)) (Job, error) {
	j, err := t.Create(kind, input)
	if err != nil {
		return Job{}, err
	}
	started, err := t.Start(j.ID)
	if err != nil {
		return t.snapshot(j), err
	}
	j = started

	output, runErr := fn(ctx)
	if runErr != nil {
		failed, err := t.Fail(j.ID, runErr)
		if err != nil {
			return t.snapshot(j), errors.Join(runErr, err)
		}
		return failed, runErr
	}
	done, err := t.Complete(j.ID, output)
	if err != nil {
		return t.snapshot(j), err
	}
	return done, nil
}

// snapshot returns the tracked state of j, or j itself if it is gone.
func (t *Tracker) snapshot(j Job) Job {
	if cur, err := t.Get(j.ID); err == nil {
		return cur
	}
	return j
}
