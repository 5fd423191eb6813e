//go:build integration

package counter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulwark/pkg/testutil/containers"
)

func TestRedisStore_FixedWindow(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := NewRedisStore(rc.Client)

	// Counter increments within the window.
	for i := int64(1); i <= 5; i++ {
		n, err := store.IncrBy(ctx, "rate_limit:user:u1:minute", 1, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := store.Get(ctx, "rate_limit:user:u1:minute")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// TTL is set only on the first increment of a fresh key.
	ttl, err := rc.Client.TTL(ctx, "rate_limit:user:u1:minute").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_ShortWindowExpires(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := NewRedisStore(rc.Client)

	n, err := store.IncrBy(ctx, "k", 3, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	time.Sleep(700 * time.Millisecond)

	n, err = store.IncrBy(ctx, "k", 1, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "count resets after the TTL elapses")
}

func TestRedisStore_Reset(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := NewRedisStore(rc.Client)

	_, err := store.IncrBy(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	_, err = store.IncrBy(ctx, "b", 1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "a", "b"))

	n, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
