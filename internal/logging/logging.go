package logging

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Setup creates a configured *slog.Logger, sets it as the default, and returns it
// together with a flush function to call on shutdown.
// The level parameter accepts: "debug", "info", "warn", "error" (case-insensitive).
// Defaults to info if the level string is unrecognized.
// The format parameter selects "text" (slog text handler) or "json" (zap
// production encoder behind slog).
func Setup(level, format string) (*slog.Logger, func()) {
	lvl := parseLevel(level)

	var logger *slog.Logger
	flush := func() {}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.Lock(os.Stderr),
			zapLevel(lvl),
		)
		zl := zap.New(core)
		flush = func() { _ = zl.Sync() }
		logger = slog.New(zapslog.NewHandler(core))
	default:
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: lvl,
		})
		logger = slog.New(handler)
	}

	slog.SetDefault(logger)
	return logger, flush
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
