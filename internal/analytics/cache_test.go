package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return Dashboard{Revenue: 100}, nil
	}

	key, err := cache.BuildKey(ctx, "analytics", "dashboard", "test")
	require.NoError(t, err)

	var first Dashboard
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.InDelta(t, 100.0, first.Revenue, 0.001)
	require.Equal(t, 1, calls)

	var second Dashboard
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 1, calls, "second read must come from cache")
}

func TestBumpInvalidatesOldKeys(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "analytics", "dashboard", "test")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "analytics", "dashboard", "test")
	require.NoError(t, err)
	require.NotEqual(t, before, after, "bump must rotate the key version")
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)

	calls := 0
	var out Dashboard
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return Dashboard{Revenue: 5}, nil
	}
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 2, calls, "nil cache recomputes every time")
	require.NoError(t, cache.Bump(ctx))
}
