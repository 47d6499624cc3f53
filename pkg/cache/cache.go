// Package cache is a small JSON-over-Redis cache. A Store with no client is
// valid and behaves as a permanent miss, so the app runs without Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/opsipintar/catalog/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const driver = "redis"

// Store wraps a Redis client.
type Store struct {
	rdb *redis.Client
}

// Default is the process-wide store set by Connect. Until then it is a no-op.
var Default = &Store{}

// New wraps rdb. A nil client yields a no-op store.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Connect dials REDIS_ADDR and installs the client into Default. On failure
// Default stays a no-op and the error is returned for the caller to log.
func Connect(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	Default = New(rdb)
	return nil
}

// Enabled reports whether a Redis client is attached.
func (s *Store) Enabled() bool { return s != nil && s.rdb != nil }

// Get unmarshals the value at key into dest. It returns true on a hit.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}

	val, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WithCtx(ctx).Warn("cache: get failed", "key", key, "error", err)
		}
		metrics.CacheMisses.WithLabelValues(driver).Inc()
		return false
	}

	if err := json.Unmarshal(val, dest); err != nil {
		metrics.CacheMisses.WithLabelValues(driver).Inc()
		return false
	}

	metrics.CacheHits.WithLabelValues(driver).Inc()
	return true
}

// Set stores value as JSON under key for ttl.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	return s.rdb.Set(ctx, key, data, ttl).Err()
}

// Version returns the current generation counter of namespace ns. Keys built
// with it are invalidated wholesale by Bump.
func (s *Store) Version(ctx context.Context, ns string) int64 {
	if !s.Enabled() {
		return 0
	}
	v, err := s.rdb.Get(ctx, versionKey(ns)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// Bump advances the generation counter of ns.
func (s *Store) Bump(ctx context.Context, ns string) error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Incr(ctx, versionKey(ns)).Err()
}

func versionKey(ns string) string { return "opsipintar:" + ns + ":version" }
