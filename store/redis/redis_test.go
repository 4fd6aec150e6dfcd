package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetflow-ai/sheetflow/store"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	cache := NewResultCacheWithClient(client, "", ttl)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestResultCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	result := &store.FileResult{
		RunID: "run-1", File: "a.xlsx", Template: "SAMS_2", Rows: 12,
		ProcessedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cache.Put(ctx, result))

	got, err := cache.Get(ctx, "a.xlsx")
	require.NoError(t, err)
	assert.Equal(t, result, got)
}

func TestResultCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	_, err := cache.Get(context.Background(), "missing.xlsx")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestResultCache_Contains(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	ok, err := cache.Contains(ctx, "a.xlsx")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, &store.FileResult{File: "a.xlsx"}))

	ok, err = cache.Contains(ctx, "a.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResultCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, &store.FileResult{File: "a.xlsx"}))
	require.NoError(t, cache.Invalidate(ctx, "a.xlsx"))

	_, err := cache.Get(ctx, "a.xlsx")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestResultCache_TTL(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, &store.FileResult{File: "a.xlsx"}))

	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "a.xlsx")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
