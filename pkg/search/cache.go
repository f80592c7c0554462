package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikeboe/research-bot/pkg/failure"
)

const cacheKeyPrefix = "research-bot:search:"

// CachedProvider keeps provider responses in Redis for a while so repeated
// queries do not spend rate-limited search calls. Only raw search results
// are cached.
type CachedProvider struct {
	Provider Provider
	Client   *redis.Client
	TTL      time.Duration
	Logger   *slog.Logger
}

// NewCachedProvider wraps p with a Redis cache at redisURL.
func NewCachedProvider(p Provider, redisURL string, ttl time.Duration) (*CachedProvider, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &CachedProvider{
		Provider: p,
		Client:   redis.NewClient(opts),
		TTL:      ttl,
		Logger:   slog.Default(),
	}, nil
}

// Search returns cached results when present. Cache errors never fail the
// search.
func (c *CachedProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	key := cacheKey(query, opts)

	cached, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var results []Result
		if jsonErr := json.Unmarshal(cached, &results); jsonErr == nil {
			return results, nil
		}
	case !errors.Is(err, redis.Nil):
		c.Logger.Warn("Search cache read failed", "error", err)
	}

	results, err := c.Provider.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		if err := c.Client.Set(ctx, key, data, c.TTL).Err(); err != nil {
			c.Logger.Warn("Search cache write failed", "error", err)
		}
	}
	return results, nil
}

// ClassifyFailure delegates to the wrapped provider.
func (c *CachedProvider) ClassifyFailure(err error) failure.Class {
	return failure.Classify(c.Provider, err)
}

// Close releases the Redis connection.
func (c *CachedProvider) Close() error {
	return c.Client.Close()
}

func cacheKey(query string, opts SearchOptions) string {
	sum := sha256.Sum256([]byte(query + "\x00" + strconv.Itoa(opts.Limit) + "\x00" + opts.SearchDepth))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
