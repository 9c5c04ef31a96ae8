package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"xstock-options/internal/application/oracle"
	"xstock-options/internal/domain"

	"github.com/redis/go-redis/v9"
)

const feedTTL = 5 * time.Minute

// PriceCache keeps the latest published feed per asset.
//
// Key schema:
//
//	feed:{asset} - hash with field "data" containing JSON
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func feedKey(asset string) string { return "feed:" + asset }

// SetFeed stores the feed with a 5-minute TTL.
func (pc *PriceCache) SetFeed(ctx context.Context, feed *domain.PriceFeed) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("redis: marshal feed %s: %w", feed.Asset, err)
	}
	key := feedKey(feed.Asset)

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, feedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set feed %s: %w", feed.Asset, err)
	}
	return nil
}

// GetFeed returns domain.ErrNotFound when the asset is not cached.
func (pc *PriceCache) GetFeed(ctx context.Context, asset string) (*domain.PriceFeed, error) {
	data, err := pc.rdb.HGet(ctx, feedKey(asset), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get feed %s: %w", asset, err)
	}
	var feed domain.PriceFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("redis: unmarshal feed %s: %w", asset, err)
	}
	return &feed, nil
}

// Compile-time interface check.
var _ oracle.PriceCache = (*PriceCache)(nil)
