// Package search implements the web search providers the research
// engine retrieves sources through, plus an optional Redis cache that
// wraps any provider.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/research"
)

// New returns the provider selected by SEARCH_API. When REDIS_URL is
// configured and reachable the provider is wrapped in a query cache;
// an unreachable Redis only disables caching, it never fails startup.
func New(ctx context.Context, cfg *config.Config) (research.SearchProvider, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL == "" {
		return provider, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unreachable, search caching disabled", "error", err)
		return provider, nil
	}

	slog.Info("Search caching enabled", "provider", provider.Name(), "ttl", cfg.SearchCacheTTL)
	return NewCachedProvider(provider, client, cfg.SearchCacheTTL), nil
}

func newProvider(ctx context.Context, cfg *config.Config) (research.SearchProvider, error) {
	switch cfg.SearchAPI {
	case config.SearchAPITavily:
		return NewTavilyProvider(cfg.TavilyAPIKey, cfg.SearchMaxResults), nil
	case config.SearchAPIPerplexity:
		return NewPerplexityProvider(cfg.PerplexityAPIKey), nil
	case config.SearchAPIYouTube:
		return NewYouTubeProvider(ctx, cfg.YouTubeAPIKey, cfg.SearchMaxResults)
	case config.SearchAPIArxiv:
		return NewArxivProvider(cfg.SearchMaxResults), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %q", cfg.SearchAPI)
	}
}
