// Package circuitbreaker provides circuit breaker implementations for key-value store operations.
// This file implements a Redis-specific wrapper that protects cache backend calls from cascading failures.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// KVCommands is the subset of Redis commands the cache backend needs.
// *redis.Client satisfies this interface.
type KVCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// KVCircuitBreaker wraps a Redis client with circuit breaker protection.
// It prevents cascading failures when the store becomes unavailable or slow.
type KVCircuitBreaker struct {
	cb     *CircuitBreaker
	client KVCommands
}

// KVConfig returns configuration optimized for the Redis circuit breaker.
// Opens after 5 consecutive failures, 30 second timeout.
func KVConfig() Config {
	return Config{
		Name:             "redis",
		MaxRequests:      3, // Allow 3 test requests in half-open state
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0, // Open on 100% failure (5+ consecutive failures)
		MinRequests:      5,   // Require 5 failures before tripping
	}
}

// NewKVCircuitBreaker creates a new Redis circuit breaker.
// It wraps the provided client with circuit breaker protection.
func NewKVCircuitBreaker(client KVCommands) *KVCircuitBreaker {
	return &KVCircuitBreaker{
		cb:     New(KVConfig()),
		client: client,
	}
}

// NewKVCircuitBreakerWithConfig creates a new Redis circuit breaker with custom configuration.
func NewKVCircuitBreakerWithConfig(client KVCommands, cfg Config) *KVCircuitBreaker {
	return &KVCircuitBreaker{
		cb:     New(cfg),
		client: client,
	}
}

type kvGetResult struct {
	value string
	found bool
}

// Get reads a key with circuit breaker protection.
// A missing key is a healthy response, not a backend failure, so it reports
// found=false without counting against the breaker.
// If the circuit is open, it returns ErrOpenState immediately without hitting the store.
func (kcb *KVCircuitBreaker) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := kcb.cb.Execute(func() (interface{}, error) {
		val, err := kcb.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return kvGetResult{}, nil
		}
		if err != nil {
			return nil, err
		}
		return kvGetResult{value: val, found: true}, nil
	})

	if err != nil {
		return "", false, err
	}

	r := result.(kvGetResult)
	return r.value, r.found, nil
}

// Set writes a key with circuit breaker protection.
// If the circuit is open, it returns ErrOpenState immediately without hitting the store.
func (kcb *KVCircuitBreaker) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := kcb.cb.Execute(func() (interface{}, error) {
		return nil, kcb.client.Set(ctx, key, value, ttl).Err()
	})
	return err
}

// Del removes keys with circuit breaker protection.
// If the circuit is open, it returns ErrOpenState immediately without hitting the store.
func (kcb *KVCircuitBreaker) Del(ctx context.Context, keys ...string) error {
	_, err := kcb.cb.Execute(func() (interface{}, error) {
		return nil, kcb.client.Del(ctx, keys...).Err()
	})
	return err
}

// Ping checks store reachability with circuit breaker protection.
// While the circuit is open the ping short-circuits; once the breaker's
// timeout elapses the half-open state lets the probe through, so recovery
// is detected without hammering a down store.
func (kcb *KVCircuitBreaker) Ping(ctx context.Context) error {
	_, err := kcb.cb.Execute(func() (interface{}, error) {
		return nil, kcb.client.Ping(ctx).Err()
	})
	return err
}

// State returns the current state of the circuit breaker.
func (kcb *KVCircuitBreaker) State() gobreaker.State {
	return kcb.cb.State()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (kcb *KVCircuitBreaker) IsOpen() bool {
	return kcb.cb.IsOpen()
}

// Client returns the underlying Redis client.
// This should only be used for operations that don't need circuit breaker protection.
func (kcb *KVCircuitBreaker) Client() KVCommands {
	return kcb.client
}
