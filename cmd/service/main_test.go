package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/config"
)

func TestNewCache_Backends(t *testing.T) {
	c, closer, err := newCache(&config.Config{CacheBackend: config.BackendInMemory})
	require.NoError(t, err)
	require.Nil(t, closer)
	require.IsType(t, &cache.InMemoryCache{}, c)

	c, closer, err = newCache(&config.Config{CacheBackend: config.BackendMemcached, MemcachedAddrs: "localhost:11211"})
	require.NoError(t, err)
	require.IsType(t, &cache.MemcachedCache{}, c)
	require.NoError(t, closer.Close())

	c, closer, err = newCache(&config.Config{CacheBackend: config.BackendRedis, RedisURL: "redis://localhost:6379/0"})
	require.NoError(t, err)
	require.IsType(t, &cache.RedisCache{}, c)
	require.NoError(t, closer.Close())

	_, _, err = newCache(&config.Config{CacheBackend: config.BackendRedis, RedisURL: "http://not-redis"})
	require.Error(t, err)
}

func TestNewCircuitBreaker(t *testing.T) {
	require.Nil(t, newCircuitBreaker(&config.Config{CircuitBreakerEnabled: false}))

	cb := newCircuitBreaker(&config.Config{
		CircuitBreakerEnabled:          true,
		CircuitBreakerFailureThreshold: 1,
		CircuitBreakerSuccessThreshold: 1,
		CircuitBreakerTimeout:          time.Minute,
	})
	require.NotNil(t, cb)
	require.Equal(t, weatherComponent, cb.Component())

	// Cancellation does not trip the breaker; a real failure does.
	_ = cb.Call(context.Background(), func() error { return fmt.Errorf("request timeout: %w", context.Canceled) })
	require.Equal(t, circuitbreaker.StateClosed, cb.State())
	_ = cb.Call(context.Background(), func() error { return errors.New("connection refused") })
	require.Equal(t, circuitbreaker.StateOpen, cb.State())
}
