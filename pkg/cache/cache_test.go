package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	// Still visible at exactly the TTL.
	clock.Advance(time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry is purged on read")

	// A second read does not resurrect it.
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value, time.Hour))
	value[0] = 'x'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStore_DeleteClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Hour))

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
	assert.NoError(t, s.Close())
}

func TestKey(t *testing.T) {
	a, err := Key("parse_events", map[string]string{"text": "  Soccer   practice\ttomorrow "})
	require.NoError(t, err)
	b, err := Key("parse_events", map[string]string{"text": "Soccer practice tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "parse_events:")

	c, err := Key("chat", map[string]string{"text": "Soccer practice tomorrow"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "operation is part of the key")

	d, err := Key("parse_events", map[string]string{"text": "Soccer practice friday"})
	require.NoError(t, err)
	assert.NotEqual(t, a, d)

	_, err = Key("parse_events", make(chan int))
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	s, err := NewFromConfig(context.Background(), &config.CacheConfig{Backend: config.CacheBackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewFromConfig(context.Background(), &config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}

func TestRedisStoreIntegration(t *testing.T) {
	addr := os.Getenv("PARENTPAL_REDIS_ADDR")
	if addr == "" {
		t.Skip("set PARENTPAL_REDIS_ADDR to run Redis integration tests")
	}
	ctx := context.Background()
	prefix := "parentpal:test:" + strconv.FormatInt(time.Now().UnixNano(), 10) + ":"
	s, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Prefix: prefix})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	require.NoError(t, s.Set(ctx, "short", []byte("v"), 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)
	_, ok, err = s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
