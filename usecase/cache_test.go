package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	domainCache "github.com/JarvisJ/plex-ai/domains/cache"
	"github.com/JarvisJ/plex-ai/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_KeyShape(t *testing.T) {
	cache := NewCacheService(memstore.New(), "plex", time.Hour)

	userKey := cache.MakeKey("library_items", 42, "Home", "1", 0, 50)
	parts := strings.Split(userKey, ":")
	require.Len(t, parts, 4)
	assert.Equal(t, []string{"plex", "library_items", "42"}, parts[:3])
	assert.Len(t, parts[3], 8)

	assert.Equal(t, userKey, cache.MakeKey("library_items", 42, "Home", "1", 0, 50))
	assert.NotEqual(t, userKey, cache.MakeKey("library_items", 42, "Home", "1", 50, 50))
	assert.NotEqual(t, userKey, cache.MakeKey("library_items", 7, "Home", "1", 0, 50))

	shared := cache.MakeSharedKey("thumb", "Home", "/library/metadata/1/thumb")
	parts = strings.Split(shared, ":")
	require.Len(t, parts, 4)
	assert.Equal(t, "shared", parts[2])
	assert.Len(t, parts[3], 16)
}

func TestCacheService_JSONRoundTripAndDefaultTTL(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cache := NewCacheService(store, "plex", time.Hour)

	key := cache.MakeKey("servers", 1)
	found, err := cache.Get(ctx, key, &[]string{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, key, []string{"Home", "Cabin"}, 0))
	var out []string
	found, err = cache.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"Home", "Cabin"}, out)

	ttl, err := store.TTL(ctx, key)
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 1)
}

func TestCacheService_CorruptEntryIsDeserializationError(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cache := NewCacheService(store, "plex", time.Hour)

	key := cache.MakeKey("servers", 1)
	require.NoError(t, store.Set(ctx, key, []byte("{not json"), 0))

	var out []string
	found, err := cache.Get(ctx, key, &out)
	assert.False(t, found)
	assert.ErrorIs(t, err, domainCache.ErrDeserialization)
}

func TestCacheService_ClearUserCacheKeepsOthers(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cache := NewCacheService(store, "plex", time.Hour)

	require.NoError(t, cache.Set(ctx, cache.MakeKey("servers", 1), "a", 0))
	require.NoError(t, cache.Set(ctx, cache.MakeKey("libraries", 1, "Home"), "b", 0))
	require.NoError(t, cache.Set(ctx, cache.MakeKey("servers", 2), "c", 0))
	require.NoError(t, cache.SetBinary(ctx, cache.MakeSharedKey("thumb", "Home", "/t"), []byte{1, 2}, 0))

	stats, err := cache.UserStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Keys)
	assert.NotEmpty(t, stats.HumanSize)

	deleted, err := cache.ClearUserCache(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 2, store.Len())

	deleted, err = cache.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 0, store.Len())
}

func TestCacheService_ClearUserCacheAcrossManyPages(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cache := NewCacheService(store, "plex", time.Hour)

	for i := 0; i < 250; i++ {
		require.NoError(t, cache.Set(ctx, cache.MakeKey("items", 7, i), i, 0))
	}
	require.NoError(t, cache.Set(ctx, cache.MakeKey("items", 8, 1), "other user", 0))
	require.NoError(t, cache.SetBinary(ctx, cache.MakeSharedKey("thumb", "Home", "/t"), []byte{1}, 0))

	deleted, err := cache.ClearUserCache(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(250), deleted)
	assert.Equal(t, 2, store.Len())

	stats, err := cache.UserStats(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, stats.Keys)
}

func TestCacheService_BinaryAndDelete(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(memstore.New(), "", 0)
	assert.Equal(t, 7*24*time.Hour, cache.DefaultTTL())

	key := cache.MakeSharedKey("thumb", "Home", "/t")
	_, found, err := cache.GetBinary(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.SetBinary(ctx, key, []byte{0xff, 0xd8}, time.Minute))
	data, found, err := cache.GetBinary(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	deleted, err := cache.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = cache.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)
}
