package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Cache provides Redis caching functionality
type Cache struct {
	client      *redis.Client
	defaultTTL  time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
}

// defaultLoadTimeout bounds a shared load when none is configured
const defaultLoadTimeout = 10 * time.Second

// NewCache creates a new Cache instance
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	client, err := Connect(redisURL)
	if err != nil {
		return nil, err
	}
	return &Cache{
		client:      client,
		defaultTTL:  ttl,
		loadTimeout: defaultLoadTimeout,
	}, nil
}

// SetLoadTimeout bounds how long a shared load in Remember may run
func (c *Cache) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		c.loadTimeout = d
	}
}

// Connect parses redisURL and pings the server
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 只记录地址，不记录完整 URL（可能包含密码）
	log.Info().Str("addr", opt.Addr).Msg("✅ Redis connected")
	return client, nil
}

// Client exposes the underlying Redis client for stores sharing the connection
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("redis get error: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

// Set stores a value in cache
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error {
	expiration := c.defaultTTL
	if len(ttl) > 0 {
		expiration = ttl[0]
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Remember returns the cached value for key, or runs load once for all
// concurrent callers with the same key and caches its result. Load errors
// are never cached. hit reports whether the value came from Redis.
//
// The shared load runs detached from every caller's context and is bounded
// by the load timeout instead; a caller whose own ctx ends stops waiting
// without failing the others.
func (c *Cache) Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(context.Context) (interface{}, error)) (hit bool, err error) {
	if err := c.Get(ctx, key, dest); err == nil {
		return true, nil
	} else if !IsCacheMiss(err) {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value: %w", err)
		}
		if err := c.client.Set(loadCtx, key, data, ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		if err := json.Unmarshal(res.Val.([]byte), dest); err != nil {
			return false, fmt.Errorf("failed to unmarshal loaded value: %w", err)
		}
		return false, nil
	}
}

// Delete removes a value from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

// DeletePattern deletes all keys matching a pattern
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis del error: %w", err)
		}
		deleted += n
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan error: %w", err)
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// ErrCacheMiss is returned when a cache key is not found
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
