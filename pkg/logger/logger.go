// Package logger provides the process-wide slog logger.
//
// Level comes from LOG_LEVEL (debug|info|warn|error, case-insensitive,
// default info). When GO_ENV=production the handler emits JSON, otherwise
// human-readable text.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the shared *slog.Logger.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger builds a logger from the environment.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Scope tags log records with the component that produced them,
// e.g. log.With(logger.Scope("tasks.repo")).
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error attaches an error value to a log record.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
