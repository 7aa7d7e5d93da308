package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Level alias so callers do not need to import log/slog for configuration.
type Level = slog.Level

const (
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
)

var (
	// Logger is the process-wide structured logger. Configured from the
	// environment in init; also installed as slog's default.
	Logger *slog.Logger

	programLevel = new(slog.LevelVar)
)

func init() {
	programLevel.Set(slog.LevelInfo)

	// Get log level from environment variable (default: INFO)
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "INFO"
	}

	level, err := ParseLevel(levelStr)
	if err != nil {
		level = slog.LevelInfo
	}
	programLevel.Set(level)

	opts := &slog.HandlerOptions{
		Level: programLevel,
	}

	// LOG_FORMAT=text switches to the text handler for local development;
	// JSON is the default so log collectors get structured records.
	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// SetLevel changes the minimum level at runtime.
func SetLevel(level Level) {
	programLevel.Set(level)
}

// ParseLevel converts a level name into a slog level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
