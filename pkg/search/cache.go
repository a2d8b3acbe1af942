package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

// redisCmdable is the slice of the Redis client the cache uses.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedProvider wraps a search provider with a Redis query cache.
// Identical queries within the TTL are served from Redis without
// hitting the upstream API. Cache failures fall through to the
// provider; they never fail a search.
type CachedProvider struct {
	inner  research.SearchProvider
	client redisCmdable
	ttl    time.Duration
}

func NewCachedProvider(inner research.SearchProvider, client redisCmdable, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedProvider{inner: inner, client: client, ttl: ttl}
}

func (c *CachedProvider) Name() string { return c.inner.Name() }

func (c *CachedProvider) cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "search:" + c.inner.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedProvider) Search(ctx context.Context, query string) ([]research.SourceDoc, error) {
	key := c.cacheKey(query)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var docs []research.SourceDoc
		if jsonErr := json.Unmarshal([]byte(cached), &docs); jsonErr == nil {
			slog.Debug("Search cache hit", "provider", c.inner.Name(), "query", query)
			return docs, nil
		}
		slog.Warn("Discarding corrupt search cache entry", "key", key)
	} else if err != redis.Nil {
		slog.Warn("Search cache read failed", "error", err)
	}

	docs, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(docs); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			slog.Warn("Search cache write failed", "error", setErr)
		}
	}
	return docs, nil
}
