package logging

import (
	"log/slog"
	"os"
)

// Init builds the process logger and installs it as the slog default.
// Level comes from the given string (usually the LOG_LEVEL env var);
// json switches to the JSON handler for log collectors.
func Init(level string, json bool) *slog.Logger {
	lvl := slog.LevelInfo

	switch level {
	case "dev", "development", "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error", "production", "prod":
		lvl = slog.LevelError
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
