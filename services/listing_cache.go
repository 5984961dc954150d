package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	listingCacheVersionKey = "listings:ver"
	listingCacheTTL        = 60 * time.Second
)

// RedisCmdable covers the Redis calls the listing cache issues. Satisfied by
// *redis.Client; a stub suffices in tests.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// listingCache is a best-effort Redis cache over the active-listing query.
// Invalidation bumps a version counter instead of scanning keys, so stale
// entries just age out under their TTL. Any cache failure degrades to a
// plain repository read.
type listingCache struct {
	rdb    RedisCmdable
	logger *zap.Logger
}

func newListingCache(rdb RedisCmdable, logger *zap.Logger) *listingCache {
	return &listingCache{rdb: rdb, logger: logger}
}

type cachedListings struct {
	Listings []models.Listing `json:"listings"`
	Total    int64            `json:"total"`
}

func (c *listingCache) key(ctx context.Context, filter models.ListingFilter, page, limit int) (string, error) {
	ver, err := c.rdb.Get(ctx, listingCacheVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("listings:%d:%s:%s:%d:%d", ver, filter.Country, filter.Category, page, limit), nil
}

// Get returns the cached result for a filter, or ok=false on miss or any
// cache failure.
func (c *listingCache) Get(ctx context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, bool) {
	if c == nil || c.rdb == nil {
		return nil, 0, false
	}

	key, err := c.key(ctx, filter, page, limit)
	if err != nil {
		c.logger.Warn("listing cache read failed", zap.Error(err))
		return nil, 0, false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("listing cache read failed", zap.Error(err))
		}
		return nil, 0, false
	}

	var entry cachedListings
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, 0, false
	}
	return entry.Listings, entry.Total, true
}

// Set stores a query result under the current cache version.
func (c *listingCache) Set(ctx context.Context, filter models.ListingFilter, page, limit int, listings []models.Listing, total int64) {
	if c == nil || c.rdb == nil {
		return
	}

	key, err := c.key(ctx, filter, page, limit)
	if err != nil {
		return
	}

	raw, err := json.Marshal(cachedListings{Listings: listings, Total: total})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, listingCacheTTL).Err(); err != nil {
		c.logger.Warn("listing cache write failed", zap.Error(err))
	}
}

// Invalidate bumps the version counter, orphaning every cached query.
func (c *listingCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, listingCacheVersionKey).Err(); err != nil {
		c.logger.Warn("listing cache invalidation failed", zap.Error(err))
	}
}
