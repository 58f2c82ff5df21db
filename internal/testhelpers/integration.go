//go:build integration
// +build integration

// Package testhelpers wires the live stack for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	WeatherURL        string
	GeocoderURL       string
	GeocoderUserAgent string
	CacheBackend      string // "in_memory", "memcached" or "redis"
	MemcachedAddr     string
	RedisURL          string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless LIVE_UPSTREAM is set, since every call reaches the public providers.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("LIVE_UPSTREAM") == "" {
		t.Skip("LIVE_UPSTREAM not set, skipping integration test")
	}

	cfg := IntegrationTestConfig{
		WeatherURL:        os.Getenv("WEATHER_API_URL"),
		GeocoderURL:       os.Getenv("GEOCODER_URL"),
		GeocoderUserAgent: os.Getenv("GEOCODER_USER_AGENT"),
		CacheBackend:      os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr:     os.Getenv("MEMCACHED_ADDRS"),
		RedisURL:          os.Getenv("REDIS_URL"),
	}
	if cfg.MemcachedAddr == "" {
		cfg.MemcachedAddr = "localhost:11211"
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379/0"
	}
	return cfg
}

// SetupIntegrationService creates a service over the live providers.
// A cache backend that cannot be reached falls back to in-memory.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Cache, func()) {
	t.Helper()
	weatherClient, err := client.NewOpenMeteoClient(cfg.WeatherURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	geocoder := client.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, 10*time.Second, 1, nil)

	cacheSvc, cleanup := setupCache(t, cfg)
	svc := service.NewWeatherService(weatherClient, geocoder, cacheSvc, service.Options{TTL: 5 * time.Minute})
	return svc, cacheSvc, cleanup
}

func setupCache(t *testing.T, cfg IntegrationTestConfig) (cache.Cache, func()) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
			return mc, func() { _ = mc.Close() }
		}
		t.Logf("Memcached not available at %s, using in-memory cache", cfg.MemcachedAddr)
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisURL, 500*time.Millisecond)
		if err == nil && rc.Ping() == nil {
			t.Logf("Using Redis cache at %s", cfg.RedisURL)
			return rc, func() { _ = rc.Close() }
		}
		t.Logf("Redis not available at %s, using in-memory cache", cfg.RedisURL)
	}
	return cache.NewInMemoryCache(), func() {}
}
