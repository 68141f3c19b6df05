package logging

import (
	"context"
	"log/slog"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZapLevel(t *testing.T) {
	if got := zapLevel(slog.LevelDebug); got != zapcore.DebugLevel {
		t.Errorf("debug -> %v", got)
	}
	if got := zapLevel(slog.LevelWarn); got != zapcore.WarnLevel {
		t.Errorf("warn -> %v", got)
	}
	if got := zapLevel(slog.LevelError); got != zapcore.ErrorLevel {
		t.Errorf("error -> %v", got)
	}
}

func TestSetupFormats(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	for _, format := range []string{"text", "json"} {
		logger, flush := Setup("warn", format)
		if logger == nil {
			t.Fatalf("%s: nil logger", format)
		}
		if logger.Enabled(context.Background(), slog.LevelInfo) {
			t.Errorf("%s: info should be disabled at warn level", format)
		}
		if !logger.Enabled(context.Background(), slog.LevelError) {
			t.Errorf("%s: error should be enabled at warn level", format)
		}
		flush()
	}
}
