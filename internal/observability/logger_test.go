package observability

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies that parseLogLevel correctly parses log level
// strings from environment variables, handling case-insensitivity and whitespace.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env      string
		fallback zapcore.Level
		expect   zapcore.Level
	}{
		{"", zap.InfoLevel, zap.InfoLevel},
		{"", zap.WarnLevel, zap.WarnLevel},
		{"INFO", zap.WarnLevel, zap.InfoLevel},
		{"DEBUG", zap.InfoLevel, zap.DebugLevel},
		{"WARN", zap.InfoLevel, zap.WarnLevel},
		{"ERROR", zap.InfoLevel, zap.ErrorLevel},
		{"debug", zap.InfoLevel, zap.DebugLevel},
		{"  warn  ", zap.InfoLevel, zap.WarnLevel},
		{"invalid", zap.InfoLevel, zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env, tt.fallback)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

// TestNewLogger verifies that NewLogger creates a valid logger instance
// that can be used for logging operations.
func TestNewLogger(t *testing.T) {
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}

	logger.Info("test message")
	_ = logger.Sync() // best-effort; can fail on /dev/stderr in test env
}

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	LoggerFromContext(ctx).Debug("scoped")
	if logs.Len() != 1 {
		t.Fatalf("logs = %d, want 1", logs.Len())
	}

	// Missing logger must not panic.
	LoggerFromContext(context.Background()).Info("dropped")
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID() = %q, want empty", got)
	}
	ctx := WithCorrelationID(context.Background(), "abc")
	if got := CorrelationID(ctx); got != "abc" {
		t.Errorf("CorrelationID() = %q, want abc", got)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestFlushTelemetry_ClosesInOrder(t *testing.T) {
	var order []int
	failing := errors.New("boom")
	err := FlushTelemetry(context.Background(), nil,
		closerFunc(func() error { order = append(order, 1); return nil }),
		closerFunc(func() error { order = append(order, 2); return failing }),
	)
	if !errors.Is(err, failing) {
		t.Errorf("FlushTelemetry() error = %v, want %v", err, failing)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("close order = %v, want [1 2]", order)
	}
}
