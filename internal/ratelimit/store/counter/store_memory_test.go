package counter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_IncrBy(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewInMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := store.IncrBy(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
}

func TestInMemoryStore_WindowExpiryResetsCount(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewInMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := store.IncrBy(ctx, "k", 5, time.Minute)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	n, err := store.IncrBy(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n, "still inside the window")

	now = now.Add(2 * time.Second) // first window has expired
	n, err = store.IncrBy(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "fresh window starts at the increment amount")
}

func TestInMemoryStore_GetExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewInMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := store.IncrBy(ctx, "k", 3, time.Minute)
	require.NoError(t, err)

	n, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	now = now.Add(2 * time.Minute)
	n, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestInMemoryStore_Reset(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.IncrBy(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	_, err = store.IncrBy(ctx, "b", 1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "a", "b"))

	n, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
