package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/campusops/devtrack/pkg/tracker"
)

func newTestCache(t *testing.T) (*AssetCache, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	return New(client, time.Minute, zerolog.Nop()), mini
}

func sampleRecord() tracker.AssetRecord {
	owner := "U1"
	return tracker.AssetRecord{
		AssetID:      "42",
		Tag:          "W12-0042",
		OwnerRef:     &owner,
		CustomFields: map[string]string{"serial": "SN1", "type": "chromebook"},
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, hit := cache.Get(ctx, "42")
	require.False(t, hit)

	cache.Put(ctx, "42", sampleRecord(), 0)

	record, hit := cache.Get(ctx, "42")
	require.True(t, hit)
	require.Equal(t, "W12-0042", record.Tag)
	require.Equal(t, "U1", *record.OwnerRef)
	require.Equal(t, "SN1", record.CustomFields["serial"])
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	cache, mini := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "42", sampleRecord(), 30*time.Second)
	_, hit := cache.Get(ctx, "42")
	require.True(t, hit)

	mini.FastForward(31 * time.Second)

	_, hit = cache.Get(ctx, "42")
	require.False(t, hit)
}

func TestInvalidateDropsEntry(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "42", sampleRecord(), 0)
	require.NoError(t, cache.Invalidate(ctx, "42"))

	_, hit := cache.Get(ctx, "42")
	require.False(t, hit)
}

func TestGetByTagResolvesThroughAlias(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "42", sampleRecord(), 0)

	record, hit := cache.Get(ctx, "W12-0042")
	require.True(t, hit)
	require.Equal(t, "42", record.AssetID)
}

func TestInvalidateAlsoCoversTagLookups(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "42", sampleRecord(), 0)
	require.NoError(t, cache.Invalidate(ctx, "42"))

	// The alias may linger but must not resurrect the dropped record.
	_, hit := cache.Get(ctx, "W12-0042")
	require.False(t, hit)
}

func TestCorruptEntryIsDroppedNotServed(t *testing.T) {
	cache, mini := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mini.Set("asset:42", "{not json"))
	_, hit := cache.Get(ctx, "42")
	require.False(t, hit)
	require.False(t, mini.Exists("asset:42"))
}

func TestNilClientAlwaysMisses(t *testing.T) {
	cache := New(nil, time.Minute, zerolog.Nop())
	ctx := context.Background()

	cache.Put(ctx, "42", sampleRecord(), 0)
	_, hit := cache.Get(ctx, "42")
	require.False(t, hit)
	require.NoError(t, cache.Invalidate(ctx, "42"))
}
