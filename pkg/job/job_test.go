package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker(WithClock(fixedClock()))

	j, err := tr.Create(KindText, "newsletter.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, StatusPending, j.Status)
	assert.Nil(t, j.StartedAt)

	j, err = tr.Start(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, j.Status)
	require.NotNil(t, j.StartedAt)

	j, err = tr.Complete(j.ID, []string{"Picture Day"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, []string{"Picture Day"}, j.Output)
	require.NotNil(t, j.CompletedAt)
	assert.True(t, j.CompletedAt.After(*j.StartedAt))

	got, err := tr.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, j, got)
}

func TestTracker_InvalidTransitions(t *testing.T) {
	tr := NewTracker()

	j, err := tr.Create(KindVoice, "recording")
	require.NoError(t, err)

	_, err = tr.Complete(j.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = tr.Fail(j.ID, errors.New("boom"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = tr.Start(j.ID)
	require.NoError(t, err)
	_, err = tr.Start(j.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	failed, err := tr.Fail(j.ID, errors.New("boom"))
	require.NoError(t, err)
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "boom", failed.Error)

	// Terminal jobs are never reopened.
	_, err = tr.Start(j.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = tr.Complete(j.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := tr.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Nil(t, got.Output)
}

func TestTracker_Unknown(t *testing.T) {
	tr := NewTracker()
	_, err := tr.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tr.Start("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tr.Create(Kind("fax"), "x")
	assert.Error(t, err)
}

func TestTracker_List(t *testing.T) {
	tr := NewTracker(WithClock(fixedClock()))
	var ids []string
	for i := 0; i < 4; i++ {
		j, err := tr.Create(KindDocument, "doc")
		require.NoError(t, err)
		ids = append(ids, j.ID)
	}

	all := tr.List(0)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID)
	assert.Equal(t, ids[0], all[3].ID)

	two := tr.List(2)
	require.Len(t, two, 2)
	assert.Equal(t, ids[3], two[0].ID)
	assert.Equal(t, ids[2], two[1].ID)
}

func TestTracker_CapacityEvictsTerminal(t *testing.T) {
	tr := NewTracker(WithCapacity(2))

	done, err := tr.Run(context.Background(), KindText, "a", func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)
	pending, err := tr.Create(KindText, "b")
	require.NoError(t, err)
	_, err = tr.Create(KindText, "c")
	require.NoError(t, err)

	_, err = tr.Get(done.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tr.Get(pending.ID)
	assert.NoError(t, err)
	assert.Len(t, tr.List(0), 2)
}

func TestTracker_Run(t *testing.T) {
	tr := NewTracker()

	j, err := tr.Run(context.Background(), KindText, "hello", func(context.Context) (any, error) {
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 3, j.Output)

	cause := errors.New("extractor failed")
	j, err = tr.Run(context.Background(), KindText, "hello", func(context.Context) (any, error) {
		return nil, cause
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StatusError, j.Status)
	assert.Equal(t, "extractor failed", j.Error)
}

func TestTracker_RunSettledElsewhere(t *testing.T) {
	tr := NewTracker()

	j, err := tr.Run(context.Background(), KindVoice, "hello", func(context.Context) (any, error) {
		_, ferr := tr.Fail(tr.List(1)[0].ID, errors.New("recording cancelled"))
		require.NoError(t, ferr)
		return "late", nil
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, StatusError, j.Status)
	assert.Equal(t, "recording cancelled", j.Error)

	cause := errors.New("extractor failed")
	j, err = tr.Run(context.Background(), KindText, "again", func(context.Context) (any, error) {
		_, cerr := tr.Complete(tr.List(1)[0].ID, 1)
		require.NoError(t, cerr)
		return nil, cause
	})
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusCompleted, j.Status)
}
