package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campusops/devtrack/pkg/tracker"
)

// DefaultTTL bounds staleness even when a mutation's invalidation is missed.
const DefaultTTL = 5 * time.Minute

// AssetCache is a TTL'd cache of tracker asset records. Entries are
// immutable per version; a mutation replaces or drops the whole entry, so
// concurrent readers never observe a partially updated record. A nil redis
// client degrades to a cache that always misses.
type AssetCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New builds an asset cache with the given default TTL.
func New(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *AssetCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AssetCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "asset_cache").Logger(),
	}
}

func key(assetID string) string {
	return fmt.Sprintf("asset:%s", assetID)
}

func tagKey(tag string) string {
	return fmt.Sprintf("tag:%s", tag)
}

// Get returns the cached record and whether it was present. The reference
// may be an asset ID or a tag; tags resolve through an alias entry to the
// record keyed by asset ID, so invalidating the asset ID drops both views.
func (c *AssetCache) Get(ctx context.Context, ref string) (tracker.AssetRecord, bool) {
	if c.client == nil {
		return tracker.AssetRecord{}, false
	}

	if record, ok := c.get(ctx, key(ref)); ok {
		return record, true
	}

	assetID, err := c.client.Get(ctx, tagKey(ref)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("ref", ref).Msg("asset cache alias read failed")
		}
		return tracker.AssetRecord{}, false
	}
	return c.get(ctx, key(assetID))
}

func (c *AssetCache) get(ctx context.Context, cacheKey string) (tracker.AssetRecord, bool) {
	cached, err := c.client.Get(ctx, cacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("key", cacheKey).Msg("asset cache read failed")
		}
		return tracker.AssetRecord{}, false
	}

	var record tracker.AssetRecord
	if err := json.Unmarshal([]byte(cached), &record); err != nil {
		// Undecodable entries are dropped rather than served.
		_ = c.client.Del(ctx, cacheKey).Err()
		return tracker.AssetRecord{}, false
	}

	c.logger.Debug().Str("key", cacheKey).Msg("asset cache hit")
	return record, true
}

// Put stores the record under the given TTL; ttl<=0 uses the default.
func (c *AssetCache) Put(ctx context.Context, assetID string, record tracker.AssetRecord, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	payload, err := json.Marshal(record)
	if err != nil {
		c.logger.Warn().Err(err).Str("asset_id", assetID).Msg("asset cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key(assetID), payload, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("asset_id", assetID).Msg("asset cache write failed")
	}
	// A tag alias lets a tag scan hit the same entry. The alias only maps
	// tag to asset ID, so it never goes stale when the record is dropped.
	if record.Tag != "" {
		if err := c.client.Set(ctx, tagKey(record.Tag), assetID, ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("tag", record.Tag).Msg("asset cache alias write failed")
		}
	}
}

// Invalidate drops the entry. It satisfies tracker.CacheInvalidator.
func (c *AssetCache) Invalidate(ctx context.Context, assetID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key(assetID)).Err()
}
