// Package redis provides a Redis implementation of kv.Store. An optional
// TTL expires conversation records, which keeps long-running deployments
// from accumulating stale fingerprint mappings indefinitely.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/difygate/difygate/pkg/kv"
)

// keyPrefix namespaces gateway records within a shared Redis instance.
const keyPrefix = "difygate:conversation:"

// Config holds Redis connection settings.
type Config struct {
	// URL is a redis:// connection URL (required).
	URL string

	// TTL expires records after the given duration. Zero means no expiry.
	// A record's TTL is refreshed on every Set.
	TTL time.Duration

	// DialTimeout bounds the initial connectivity check (default: 5s).
	DialTimeout time.Duration
}

// Store is a Redis-backed kv.Store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Ensure Store implements kv.Store at compile time.
var _ kv.Store = (*Store)(nil)

// New connects to Redis and verifies connectivity before returning.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis: URL is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{client: client, ttl: cfg.TTL}, nil
}

// Get retrieves the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores value under key, refreshing the TTL when one is configured.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// HealthCheck verifies the Redis connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
