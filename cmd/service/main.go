package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/locator"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/service"
)

const weatherComponent = "weather_api"

var version = "dev"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenMeteoClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		Version:          version,
	}
	if cb := newCircuitBreaker(cfg); cb != nil {
		weatherClient.SetCircuitBreaker(cb)
		healthConfig.CircuitState = func() string { return cb.State().String() }
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	geocoder := client.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, cfg.GeocoderRPS, logger)

	cacheSvc, cacheCloser, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache backend", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}
	if p, ok := cacheSvc.(interface{ Ping() error }); ok {
		healthConfig.CachePing = p.Ping
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend), zap.Duration("ttl", cfg.CacheTTL))

	weatherService := service.NewWeatherService(weatherClient, geocoder, cacheSvc, service.Options{
		TTL:           cfg.CacheTTL,
		ForecastDelay: cfg.ServiceForecastDelay(),
		Zone:          cfg.Zone,
	})

	warmCtx, stopWarming := context.WithCancel(context.Background())
	defer stopWarming()
	if cfg.WarmEnabled {
		startWarming(warmCtx, cfg, weatherService, logger)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(weatherService, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	stopWarming()
	_ = lifecycle.Drain(context.Background(), srv, lifecycle.DrainConfig{
		Timeout:  cfg.ShutdownTimeout,
		InFlight: httphandler.InFlightCount,
	}, logger)

	var closers []io.Closer
	if cacheCloser != nil {
		closers = append(closers, cacheCloser)
	}
	if err := observability.FlushTelemetry(context.Background(), logger, closers...); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newCircuitBreaker returns nil when the breaker is disabled.
func newCircuitBreaker(cfg *config.Config) *circuitbreaker.CircuitBreaker {
	if !cfg.CircuitBreakerEnabled {
		return nil
	}
	observability.SetCircuitBreakerStateGauge(weatherComponent, circuitbreaker.StateClosed.GaugeValue())
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        weatherComponent,
		Ignore:           ignoreCanceled,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(weatherComponent, from.String(), to.String())
			observability.SetCircuitBreakerStateGauge(weatherComponent, to.GaugeValue())
		},
	})
}

// ignoreCanceled keeps a client hanging up from counting against the provider.
func ignoreCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// newCache builds the configured backend. The closer is nil for in-memory.
func newCache(cfg *config.Config) (cache.Cache, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		return mc, mc, nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.RedisTimeout)
		if err != nil {
			return nil, nil, err
		}
		return rc, rc, nil
	default:
		return cache.NewInMemoryCache(), nil, nil
	}
}

func startWarming(ctx context.Context, cfg *config.Config, fetcher cache.WeatherFetcher, logger *zap.Logger) {
	locations := []models.Location{locator.DefaultLocation}
	warmer := cache.NewCacheWarmer(fetcher, logger)
	if cfg.WarmInterval > 0 {
		go func() {
			if err := warmer.WarmPeriodic(ctx, locations, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("periodic cache warming stopped", zap.Error(err))
			}
		}()
		return
	}
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, cfg.WarmTimeout)
		defer cancel()
		if err := warmer.Warm(warmCtx, locations); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
	}()
}
