package cache

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(size, ttl, nil)
	c.now = clock.now
	return c, clock
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(4, time.Minute)

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("payload")
	require.NoError(t, c.Set(ctx, "a", value, 0))
	value[0] = 'X'

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Backend: "memory", Entries: 1, Hits: 1, Misses: 1}, stats)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(4, time.Minute)

	require.NoError(t, c.Set(ctx, "short", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))

	clock.t = clock.t.Add(2 * time.Minute)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "long")
	assert.NoError(t, err)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(2, 0)

	require.NoError(t, c.Set(ctx, "a", []byte("a"), 0))
	clock.t = clock.t.Add(time.Second)
	require.NoError(t, c.Set(ctx, "b", []byte("b"), 0))
	clock.t = clock.t.Add(time.Second)
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	clock.t = clock.t.Add(time.Second)

	require.NoError(t, c.Set(ctx, "c", []byte("c"), 0))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryCacheDeleteAndClose(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(2, 0)

	require.NoError(t, c.Set(ctx, "a", []byte("a"), 0))
	require.NoError(t, c.Delete(ctx, "a"))
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "b", []byte("b"), 0))
	require.NoError(t, c.Close())
	stats, _ := c.Stats(ctx)
	assert.Zero(t, stats.Entries)
}

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key("q", "a", "b"), Key("q", "a", "b"))
	assert.NotEqual(t, Key("q", "a", "b"), Key("q", "ab"))
	assert.Contains(t, Key("bhtraffic", "x"), "bhtraffic:")
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("BHTRAFFIC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BHTRAFFIC_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, "", 0, time.Minute, nil)
	require.NoError(t, err)
	defer c.Close()

	key := Key("bhtraffic-test", t.Name())
	defer c.Delete(ctx, key)

	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, []byte("v"), 0))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
