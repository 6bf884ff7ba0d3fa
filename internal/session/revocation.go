package session

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/medvault-api/pkg/circuitbreaker"
)

// Revoker remembers ended sessions until their tokens would have expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type memoryRevoker struct {
	cache *cache.Cache
}

// NewMemoryRevoker keeps revocations in process memory. Sessions ended here
// are unknown to other instances.
func NewMemoryRevoker(cleanupInterval time.Duration) Revoker {
	return &memoryRevoker{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (r *memoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	r.cache.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, found := r.cache.Get(tokenID)
	return found, nil
}

const redisKeyPrefix = "medvault:revoked:"

type redisRevoker struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
}

// NewRedisRevoker shares revocations between instances through Redis.
func NewRedisRevoker(ctx context.Context, url string) (Revoker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisRevoker(client), nil
}

func newRedisRevoker(client *redis.Client) *redisRevoker {
	return &redisRevoker{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-revocation",
			MaxFailures: 5,
			Timeout:     5 * time.Second,
		}),
	}
}

func (r *redisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.cb.Execute(func() error {
		return r.client.Set(ctx, redisKeyPrefix+tokenID, 1, ttl).Err()
	})
}

func (r *redisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int64
	err := r.cb.Execute(func() error {
		var err error
		n, err = r.client.Exists(ctx, redisKeyPrefix+tokenID).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

func (r *redisRevoker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisRevoker) Close() error {
	return r.client.Close()
}
