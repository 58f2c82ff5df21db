// Package lifecycle holds process-wide shutdown state and the drain sequence.
package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. The health handler reports
// shutting-down with 503 while it is true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// Server is the part of *http.Server that Drain needs.
type Server interface {
	Shutdown(ctx context.Context) error
}

// DrainConfig controls Drain. Timeout bounds the whole sequence.
type DrainConfig struct {
	Timeout       time.Duration
	InFlight      func() int64
	CheckInterval time.Duration
}

// Drain marks the process as shutting down, stops accepting connections and
// waits for in-flight requests. It returns the first error encountered; the
// wait still runs after a failed Shutdown.
func Drain(ctx context.Context, srv Server, cfg DrainConfig, logger *zap.Logger) error {
	SetShuttingDown(true)
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 50 * time.Millisecond
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var first error
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
		first = err
	}
	if cfg.InFlight != nil {
		logger.Info("waiting for in-flight requests", zap.Int64("count", cfg.InFlight()))
		if err := waitForZero(ctx, cfg.InFlight, cfg.CheckInterval); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", cfg.InFlight()))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func waitForZero(ctx context.Context, count func() int64, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
