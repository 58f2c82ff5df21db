package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeServer struct {
	err    error
	called atomic.Bool
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.called.Store(true)
	return s.err
}

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
}

func TestSetShuttingDown_Toggle(t *testing.T) {
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false), want false")
	}
}

func TestDrain_WaitsForInFlight(t *testing.T) {
	defer SetShuttingDown(false)
	var inFlight atomic.Int64
	inFlight.Store(2)
	go func() {
		time.Sleep(20 * time.Millisecond)
		inFlight.Store(0)
	}()

	srv := &fakeServer{}
	err := Drain(context.Background(), srv, DrainConfig{
		Timeout:       time.Second,
		InFlight:      inFlight.Load,
		CheckInterval: 5 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if !srv.called.Load() {
		t.Error("Shutdown was not called")
	}
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after Drain")
	}
}

func TestDrain_TimesOutOnStuckRequests(t *testing.T) {
	defer SetShuttingDown(false)
	err := Drain(context.Background(), &fakeServer{}, DrainConfig{
		Timeout:       30 * time.Millisecond,
		InFlight:      func() int64 { return 1 },
		CheckInterval: 5 * time.Millisecond,
	}, zap.NewNop())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want DeadlineExceeded", err)
	}
}

func TestDrain_ReturnsShutdownError(t *testing.T) {
	defer SetShuttingDown(false)
	boom := errors.New("listener close failed")
	err := Drain(context.Background(), &fakeServer{err: boom}, DrainConfig{Timeout: time.Second}, zap.NewNop())
	if !errors.Is(err, boom) {
		t.Errorf("Drain() error = %v, want %v", err, boom)
	}
}
