package voice

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRecorder_StartStop(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)}
	r := NewRecorder(WithClock(clock.Now))

	rec := r.Start(time.Minute)
	assert.Equal(t, 1, r.Active())
	assert.Equal(t, time.Minute, rec.Remaining())

	clock.Advance(20 * time.Second)
	assert.Equal(t, 40*time.Second, rec.Remaining())
	assert.Equal(t, 20*time.Second, rec.Elapsed())

	got, err := r.Get(rec.ID)
	require.NoError(t, err)
	assert.Same(t, rec, got)

	elapsed, err := r.Stop(rec)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, elapsed)
	assert.True(t, rec.Stopped())
	assert.False(t, rec.AutoStopped())
	assert.Zero(t, rec.Remaining())
	assert.Zero(t, r.Active())

	// A second stop reports the same duration.
	clock.Advance(time.Hour)
	again, err := r.Stop(rec)
	require.NoError(t, err)
	assert.Equal(t, elapsed, again)

	_, err = r.Get(rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecorder_AutoStop(t *testing.T) {
	stopped := make(chan *Recording, 1)
	r := NewRecorder(WithOnStop(func(rec *Recording) { stopped <- rec }))

	rec := r.Start(20 * time.Millisecond)
	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recording did not stop itself")
	}

	assert.True(t, rec.AutoStopped())
	assert.Equal(t, 20*time.Millisecond, rec.Elapsed())

	select {
	case got := <-stopped:
		assert.Same(t, rec, got)
	case <-time.After(2 * time.Second):
		t.Fatal("stop callback not called")
	}
	assert.Zero(t, r.Active())

	elapsed, err := r.Stop(rec)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, elapsed)
}

func TestRecorder_IndependentHandles(t *testing.T) {
	r := NewRecorder()
	a := r.Start(time.Minute)
	b := r.Start(0)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, DefaultMaxDuration, b.Max)

	_, err := r.Stop(a)
	require.NoError(t, err)
	assert.False(t, b.Stopped())

	r.Close()
	assert.True(t, b.Stopped())
	assert.Zero(t, r.Active())

	_, err = r.Stop(nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
