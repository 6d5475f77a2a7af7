package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/internal/model"
)

func setupTestCache(t *testing.T) (*QueryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueryCache(client, &QueryCacheConfig{TTL: 10 * time.Minute, KeyPrefix: "test:rag:"}), mr
}

func TestNewQueryCache_Defaults(t *testing.T) {
	cache := NewQueryCache(nil, nil)
	assert.Equal(t, time.Hour, cache.config.TTL)
	assert.Equal(t, "exambot:query:", cache.config.KeyPrefix)
}

func TestQueryCache_Key(t *testing.T) {
	cache, _ := setupTestCache(t)

	k1 := cache.cacheKey("What is the femur?")
	k2 := cache.cacheKey("What is the femur?")
	k3 := cache.cacheKey("What is the tibia?")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, len("test:rag:")+64)
}

func TestQueryCache_MissThenHit(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	got, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := &model.QueryResult{
		Answer:  "The femur.",
		Sources: []model.ChunkSource{{DocumentName: "bones.md", Section: "Legs", Content: "femur", Score: 0.8}},
	}
	require.NoError(t, cache.Set(ctx, "q", want))

	got, err = cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 10*time.Minute, mr.TTL(cache.cacheKey("q")))
}

func TestQueryCache_CorruptEntryIsDropped(t *testing.T) {
	cache, mr := setupTestCache(t)
	key := cache.cacheKey("q")
	require.NoError(t, mr.Set(key, "{not json"))

	got, err := cache.Get(context.Background(), "q")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(key))
}

func TestQueryCache_ClearAndStats(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "keep"))

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(ctx, q, &model.QueryResult{Answer: q}))
	}

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats["key_count"])
	assert.Equal(t, "test:rag:", stats["key_prefix"])

	deleted, err := cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.True(t, mr.Exists("other:key"))
}

func TestQueryCache_HitMissCounters(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "q", &model.QueryResult{Answer: "a"}))
	for range 3 {
		_, err = cache.Get(ctx, "q")
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set(cache.cacheKey("bad"), "{not json"))
	_, err = cache.Get(ctx, "bad")
	require.NoError(t, err)

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["hits"])
	assert.Equal(t, int64(2), stats["misses"])
	assert.InDelta(t, 0.6, stats["hit_rate"], 1e-9)
}
