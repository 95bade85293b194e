package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/cogs"
)

const (
	cacheVersionKey = "ledger:catalog:version"
	// BumpChannel carries catalog invalidation events.
	BumpChannel = "ledger.catalog.bump"
)

// CatalogCache serves the item cost catalog from Redis with versioned keys.
// It implements CatalogSource and falls through to the wrapped source on a miss.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
	source CatalogSource
}

// NewCatalogCache wraps source with a Redis cache.
func NewCatalogCache(client *redis.Client, ttl time.Duration, source CatalogSource) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl, source: source}
}

// ItemCatalog returns the cached catalog for the company.
func (c *CatalogCache) ItemCatalog(ctx context.Context, companyID int64) ([]cogs.CatalogItem, error) {
	if c == nil || c.source == nil {
		return nil, errors.New("cache: catalog source required")
	}
	key, err := c.BuildKey(ctx, "ledger", "catalog", strconv.FormatInt(companyID, 10))
	if err != nil {
		return c.source.ItemCatalog(ctx, companyID)
	}
	var items []cogs.CatalogItem
	err = c.FetchJSON(ctx, key, &items, func(ctx context.Context) (interface{}, error) {
		return c.source.ItemCatalog(ctx, companyID)
	})
	return items, err
}

// Version returns the current cache version, initialising when missing.
func (c *CatalogCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *CatalogCache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	if c == nil || c.client == nil {
		return strings.Join(parts, ":"), nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", strings.Join(parts, ":"), ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *CatalogCache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached catalog by incrementing the version and
// publishing the new version.
func (c *CatalogCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// advanceScript moves the version forward only. A stale bump never rolls it back.
var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local ver = tonumber(ARGV[1])
if ver > cur then
  redis.call('SET', KEYS[1], ver)
  return ver
end
return cur
`)

// AdvanceVersion raises the cache version to at least ver and returns the result.
func (c *CatalogCache) AdvanceVersion(ctx context.Context, ver int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	return advanceScript.Run(ctx, c.client, []string{cacheVersionKey}, ver).Int64()
}

// ListenForInvalidation follows version bumps published by other instances.
// Messages that are not a version number are ignored.
func (c *CatalogCache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					_, _ = c.AdvanceVersion(ctx, ver)
				}
			}
		}
	}()
	return nil
}

func roundTrip(value, dest interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
