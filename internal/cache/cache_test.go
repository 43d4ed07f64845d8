package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Ping(ctx))
}

func TestMemory(t *testing.T) {
	c := NewMemory("classlink", time.Minute)
	exercise(t, c)

	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Driver)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", 0)
	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), Config{Driver: "redis", Addr: mr.Addr(), Prefix: "classlink"})
	require.NoError(t, err)
	defer c.Close()

	exercise(t, c)

	require.NoError(t, c.Set(context.Background(), "ttl", "x", time.Minute))
	assert.True(t, mr.Exists("classlink:ttl"))
	mr.FastForward(2 * time.Minute)
	_, err = c.Get(context.Background(), "ttl")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "memcached"})
	assert.Error(t, err)
}
