// Package redis implements a cache of extraction results keyed by input
// file. Pipelines consult it to skip files already processed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sheetflow-ai/sheetflow/store"
)

// ErrCacheMiss is returned when no cached result exists for a file.
var ErrCacheMiss = errors.New("cache miss")

// ResultCache caches per-file extraction results in Redis.
type ResultCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Options configuration for the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix is the key prefix, default "sheetflow:".
	Prefix string
	// TTL is the expiration for cached results, default 0 (no expiration).
	TTL time.Duration
}

// NewResultCache creates a cache with its own Redis client.
func NewResultCache(opts Options) *ResultCache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewResultCacheWithClient(client, opts.Prefix, opts.TTL)
}

// NewResultCacheWithClient creates a cache over an existing client.
func NewResultCacheWithClient(client *redis.Client, prefix string, ttl time.Duration) *ResultCache {
	if prefix == "" {
		prefix = "sheetflow:"
	}
	return &ResultCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ResultCache) key(file string) string {
	return fmt.Sprintf("%sresult:%s", c.prefix, file)
}

// Put caches the result of a file.
func (c *ResultCache) Put(ctx context.Context, result *store.FileResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := c.client.Set(ctx, c.key(result.File), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Get returns the cached result of a file, or ErrCacheMiss.
func (c *ResultCache) Get(ctx context.Context, file string) (*store.FileResult, error) {
	data, err := c.client.Get(ctx, c.key(file)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var result store.FileResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &result, nil
}

// Contains reports whether a file has a cached result.
func (c *ResultCache) Contains(ctx context.Context, file string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(file)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cache: %w", err)
	}
	return n > 0, nil
}

// Invalidate removes the cached result of a file.
func (c *ResultCache) Invalidate(ctx context.Context, file string) error {
	if err := c.client.Del(ctx, c.key(file)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *ResultCache) Close() error {
	return c.client.Close()
}
