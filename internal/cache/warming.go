package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// WeatherFetcher is implemented by the service layer; each call populates the cache.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type WeatherFetcher interface {
	CurrentWeather(ctx context.Context, loc models.Location) (models.CurrentWeather, error)
	Forecast(ctx context.Context, loc models.Location) (models.ForecastSeries, error)
	Hourly(ctx context.Context, loc models.Location) (models.HourlySeries, error)
}

// CacheWarmer prefetches all three series for a list of locations.
type CacheWarmer struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher WeatherFetcher, logger *zap.Logger) *CacheWarmer {
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches every location concurrently. Within one location the current,
// forecast and hourly fetches run in that order. Returns the joined failures.
func (w *CacheWarmer) Warm(ctx context.Context, locations []models.Location) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("locations", len(locations)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(locations)*3)
	for _, loc := range locations {
		wg.Add(1)
		go func(loc models.Location) {
			defer wg.Done()
			if _, err := w.fetcher.CurrentWeather(ctx, loc); err != nil {
				errCh <- fmt.Errorf("warm current %s: %w", loc.Name, err)
			}
			if _, err := w.fetcher.Forecast(ctx, loc); err != nil {
				errCh <- fmt.Errorf("warm forecast %s: %w", loc.Name, err)
			}
			if _, err := w.fetcher.Hourly(ctx, loc); err != nil {
				errCh <- fmt.Errorf("warm hourly %s: %w", loc.Name, err)
			}
		}(loc)
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("locations", len(locations)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, locations []models.Location, interval time.Duration) error {
	if err := w.Warm(ctx, locations); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, locations); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
