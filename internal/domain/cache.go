package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. It backs the fast-path
// velocity counters, the IP blocklist, and cached profile reads. A cache is
// always an optimization: correctness never depends on a hit.
type Cache interface {
	// Get retrieves a value. Returns nil, nil if the key is not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// IncrementCounter atomically increments a windowed counter and returns
	// the new value. Used for transaction frequency detection.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings: check local first, then Redis
	EnableTwoPhase bool
}

// Cache key prefixes.
const (
	CacheKeyProfile   = "profile:"      // + customerID -> JSON RiskProfile
	CacheKeyVelocity  = "velocity:"     // + customerID -> windowed counter
	CacheKeyBlockedIP = "blocklist:ip:" // + address -> any value marks the IP blocked
)
