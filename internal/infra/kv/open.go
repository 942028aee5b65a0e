// Package kv provides the Redis client factory and connection configuration.
package kv

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectionConfig holds Redis connection pool configuration.
type ConnectionConfig struct {
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		PoolSize:     10,              // Maximum number of socket connections
		MinIdleConns: 2,               // Connections kept ready for bursts
		MaxRetries:   1,               // Retries are handled by callers, keep client-level low
		DialTimeout:  5 * time.Second, // Connection establishment timeout
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Open creates and configures a new Redis client.
// It reads REDIS_ADDR, REDIS_PASSWORD, and REDIS_DB from environment and
// applies connection pool settings.
//
// Unlike a database handle, an unreachable Redis is not fatal: the cache
// store runs in degraded mode until the backend recovers, so Open only
// logs a warning when the initial ping fails and returns the client anyway.
func Open() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if val, err := strconv.Atoi(dbStr); err == nil && val >= 0 {
			db = val
		}
	}

	cfg := getConnectionConfigFromEnv()
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           db,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	slog.Info("redis connection pool configured",
		slog.String("addr", addr),
		slog.Int("pool_size", cfg.PoolSize),
		slog.Int("min_idle_conns", cfg.MinIdleConns),
		slog.Duration("dial_timeout", cfg.DialTimeout))

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable at startup, cache will start degraded",
			slog.String("addr", addr),
			slog.String("error", err.Error()))
		return client
	}

	slog.Info("redis connection established successfully")
	return client
}

// getConnectionConfigFromEnv reads connection pool configuration from environment variables.
// Falls back to default values if not set.
func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()

	if poolSize := os.Getenv("REDIS_POOL_SIZE"); poolSize != "" {
		if val, err := strconv.Atoi(poolSize); err == nil && val > 0 {
			cfg.PoolSize = val
		}
	}

	if minIdle := os.Getenv("REDIS_MIN_IDLE_CONNS"); minIdle != "" {
		if val, err := strconv.Atoi(minIdle); err == nil && val >= 0 {
			cfg.MinIdleConns = val
		}
	}

	if maxRetries := os.Getenv("REDIS_MAX_RETRIES"); maxRetries != "" {
		if val, err := strconv.Atoi(maxRetries); err == nil && val >= 0 {
			cfg.MaxRetries = val
		}
	}

	if dialTimeout := os.Getenv("REDIS_DIAL_TIMEOUT"); dialTimeout != "" {
		if val, err := time.ParseDuration(dialTimeout); err == nil && val > 0 {
			cfg.DialTimeout = val
		}
	}

	if readTimeout := os.Getenv("REDIS_READ_TIMEOUT"); readTimeout != "" {
		if val, err := time.ParseDuration(readTimeout); err == nil && val > 0 {
			cfg.ReadTimeout = val
		}
	}

	if writeTimeout := os.Getenv("REDIS_WRITE_TIMEOUT"); writeTimeout != "" {
		if val, err := time.ParseDuration(writeTimeout); err == nil && val > 0 {
			cfg.WriteTimeout = val
		}
	}

	return cfg
}
