package usage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuican14/parentPal-06-16/pkg/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

type failingStore struct{ storage.Store }

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func TestNewLedger_Defaults(t *testing.T) {
	clock := newClock()
	l := NewLedger(context.Background(), newStore(t), Options{Now: clock.Now})

	b := l.Balance()
	assert.Equal(t, int64(DefaultLimit), b.Limit)
	assert.Equal(t, int64(DefaultLimit), b.Available)
	assert.Zero(t, b.Used)
	assert.Equal(t, clock.Now().Add(DefaultResetPeriod), b.ResetDate)
	assert.Empty(t, l.History(0))
}

func TestRecordUsage_AvailableInvariant(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, newStore(t), Options{DefaultLimit: 500})

	rng := rand.New(rand.NewSource(7))
	var sum int64
	for i := 0; i < 200; i++ {
		n := int64(rng.Intn(20))
		sum += n
		require.NoError(t, l.RecordUsage(ctx, Record{Operation: "parse_events", TokensUsed: n}))

		b := l.Balance()
		assert.Equal(t, max(0, 500-sum), b.Available)
		assert.Equal(t, sum, b.Used)
	}
}

func TestRecordUsage_RejectsNegative(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, nil, Options{})

	err := l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: -1})
	assert.ErrorIs(t, err, ErrNegativeTokens)
	assert.Empty(t, l.History(0))
}

func TestRecordUsage_HistoryCap(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, nil, Options{})

	for i := 0; i < DefaultHistoryLimit+25; i++ {
		require.NoError(t, l.RecordUsage(ctx, Record{Operation: fmt.Sprintf("op-%d", i), TokensUsed: 1}))
		assert.LessOrEqual(t, len(l.History(0)), DefaultHistoryLimit)
	}

	h := l.History(0)
	assert.Len(t, h, DefaultHistoryLimit)
	assert.Equal(t, fmt.Sprintf("op-%d", DefaultHistoryLimit+24), h[0].Operation, "most recent first")
	assert.Equal(t, "op-25", h[len(h)-1].Operation, "oldest entries dropped first")
}

func TestHistory_Limit(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := NewLedger(ctx, nil, Options{Now: clock.Now})

	for _, op := range []string{"a", "b", "c"} {
		require.NoError(t, l.RecordUsage(ctx, Record{Operation: op, TokensUsed: 1}))
		clock.Advance(time.Second)
	}

	h := l.History(2)
	require.Len(t, h, 2)
	assert.Equal(t, "c", h[0].Operation)
	assert.Equal(t, "b", h[1].Operation)
	assert.Equal(t, clock.Now().Add(-time.Second), h[0].Timestamp)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := NewLedger(ctx, nil, Options{Now: clock.Now})

	assert.Equal(t, Stats{TopOperations: []OperationStat{}}, l.Stats())

	usage := []struct {
		op     string
		tokens int64
	}{
		{"parse_events", 40}, {"chat", 10}, {"parse_events", 20},
		{"analyze_document", 100}, {"suggestions", 5}, {"voice", 7},
		{"text", 3}, {"chat", 10},
	}
	for _, u := range usage {
		require.NoError(t, l.RecordUsage(ctx, Record{Operation: u.op, TokensUsed: u.tokens}))
	}

	// 2.5 days after the first record rounds up to 3 days.
	clock.Advance(60 * time.Hour)

	s := l.Stats()
	assert.Equal(t, int64(195), s.TotalUsed)
	assert.InDelta(t, 65.0, s.AveragePerDay, 1e-9)
	require.Len(t, s.TopOperations, 5)
	assert.Equal(t, OperationStat{Operation: "analyze_document", Tokens: 100, Count: 1}, s.TopOperations[0])
	assert.Equal(t, OperationStat{Operation: "parse_events", Tokens: 60, Count: 2}, s.TopOperations[1])
	assert.Equal(t, OperationStat{Operation: "chat", Tokens: 20, Count: 2}, s.TopOperations[2])
	assert.Equal(t, "voice", s.TopOperations[3].Operation)
	assert.Equal(t, "suggestions", s.TopOperations[4].Operation)
}

func TestStats_SameDay(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, nil, Options{Now: newClock().Now})
	require.NoError(t, l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: 30}))

	assert.InDelta(t, 30.0, l.Stats().AveragePerDay, 1e-9)
}

func TestCanAffordAndCheck(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, nil, Options{DefaultLimit: 10})
	require.NoError(t, l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: 8}))

	assert.True(t, l.CanAfford(2))
	assert.False(t, l.CanAfford(3))
	assert.NoError(t, l.Check(2))

	err := l.Check(3)
	require.Error(t, err)
	assert.True(t, IsInsufficientBalance(err))
	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, int64(3), balErr.Required)
	assert.Equal(t, int64(2), balErr.Available)

	// Overspending clamps available at zero.
	require.NoError(t, l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: 50}))
	assert.Zero(t, l.Balance().Available)
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	clock := newClock()

	l := NewLedger(ctx, store, Options{Now: clock.Now})
	require.NoError(t, l.RecordUsage(ctx, Record{Operation: "parse_events", TokensUsed: 17}))
	require.NoError(t, l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: 3}))

	reloaded := NewLedger(ctx, store, Options{Now: clock.Now})
	assert.Equal(t, l.Balance(), reloaded.Balance())
	assert.Equal(t, l.History(0), reloaded.History(0))
}

func TestPersistence_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, raw := range []string{`{not json`, `{"balance":{"limit":-5,"used":1}}`} {
		require.NoError(t, store.Put(ctx, StorageKey, []byte(raw)))
		l := NewLedger(ctx, store, Options{DefaultLimit: 300})
		assert.Equal(t, int64(300), l.Balance().Available, raw)
		assert.Empty(t, l.History(0), raw)
	}
}

func TestPersistence_Unreadable(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, failingStore{}, Options{DefaultLimit: 300})
	assert.Equal(t, int64(300), l.Balance().Available)

	// The charge is applied even when persisting fails.
	err := l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: 1})
	assert.Error(t, err)
	assert.Equal(t, int64(299), l.Balance().Available)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := NewLedger(ctx, newStore(t), Options{DefaultLimit: 100, ResetPeriod: 24 * time.Hour, Now: clock.Now})
	require.NoError(t, l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: 60}))

	first := l.Balance().ResetDate
	require.NoError(t, l.Reset(ctx))

	b := l.Balance()
	assert.Zero(t, b.Used)
	assert.Equal(t, int64(100), b.Available)
	assert.Equal(t, first.Add(24*time.Hour), b.ResetDate)
	assert.Len(t, l.History(0), 1, "history survives resets")
}

func TestResetIfDue(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := NewLedger(ctx, nil, Options{DefaultLimit: 100, ResetPeriod: 24 * time.Hour, Now: clock.Now})
	require.NoError(t, l.RecordUsage(ctx, Record{Operation: "chat", TokensUsed: 60}))

	done, err := l.ResetIfDue(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, int64(60), l.Balance().Used)

	// Three days later: one reset lands the next date in the future.
	clock.Advance(72 * time.Hour)
	done, err = l.ResetIfDue(ctx)
	require.NoError(t, err)
	assert.True(t, done)
	b := l.Balance()
	assert.Zero(t, b.Used)
	assert.True(t, b.ResetDate.After(clock.Now()))
}
