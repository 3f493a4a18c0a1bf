package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetDel(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "session:1", "user-1", 0))
	value, err := c.Get(ctx, "session:1")
	require.NoError(t, err)
	require.Equal(t, "user-1", value)

	require.NoError(t, c.Del(ctx, "session:1"))
	_, err = c.Get(ctx, "session:1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.SetClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	now = now.Add(59 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_IncrAndExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.SetClock(func() time.Time { return now })

	for i := int64(1); i <= 3; i++ {
		value, err := c.Incr(ctx, "counter")
		require.NoError(t, err)
		require.Equal(t, i, value)
	}
	require.NoError(t, c.Expire(ctx, "counter", time.Second))
	now = now.Add(time.Second)

	value, err := c.Incr(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(1), value)

	require.NoError(t, c.Set(ctx, "text", "abc", 0))
	_, err = c.Incr(ctx, "text")
	require.Error(t, err)
}
