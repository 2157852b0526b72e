// Package cache provides a Redis-backed cache for resolved display names.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "wa-archive:name:"

// DefaultTTL applies when Config.TTL is zero.
const DefaultTTL = 10 * time.Minute

// Config holds configuration for the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Names caches display names keyed by identifier.
type Names struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewNames connects to Redis and checks it answers.
func NewNames(cfg Config) (*Names, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Names{rdb: rdb, ttl: ttl}, nil
}

// Get returns the cached name for id.
func (n *Names) Get(ctx context.Context, id string) (string, bool, error) {
	v, err := n.rdb.Get(ctx, KeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set caches name for id.
func (n *Names) Set(ctx context.Context, id, name string) error {
	return n.rdb.Set(ctx, KeyPrefix+id, name, n.ttl).Err()
}

// Delete drops the cached names for ids.
func (n *Names) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = KeyPrefix + id
	}
	return n.rdb.Del(ctx, keys...).Err()
}

// Ping checks if Redis is reachable.
func (n *Names) Ping(ctx context.Context) error {
	return n.rdb.Ping(ctx).Err()
}

// Close closes the connection.
func (n *Names) Close() error {
	return n.rdb.Close()
}
