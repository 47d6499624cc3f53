package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), s
}

func TestSetGetExpire(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", map[string]int{"total": 3}, time.Minute))

	var got map[string]int
	require.True(t, store.Get(ctx, "k", &got))
	assert.Equal(t, 3, got["total"])

	mr.FastForward(2 * time.Minute)
	assert.False(t, store.Get(ctx, "k", &got))
}

func TestVersionBump(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	assert.Equal(t, int64(0), store.Version(ctx, "products"))
	require.NoError(t, store.Bump(ctx, "products"))
	require.NoError(t, store.Bump(ctx, "products"))
	assert.Equal(t, int64(2), store.Version(ctx, "products"))
}

func TestNilStoreIsNoop(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	assert.False(t, store.Enabled())
	assert.NoError(t, store.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.False(t, store.Get(ctx, "k", &v))
	assert.NoError(t, store.Bump(ctx, "products"))
	assert.Zero(t, store.Version(ctx, "products"))
}
