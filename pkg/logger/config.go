package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config selects level, format and destination.
type Config struct {
	Output io.Writer `mapstructure:"-"` // defaults to os.Stdout
	Level  string    `mapstructure:"level"`
	Format string    `mapstructure:"format"`
}

// SentryConfig holds Sentry integration settings.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
	// MinLevel is the lowest level forwarded to Sentry: "warn" or "error".
	MinLevel string `mapstructure:"min_level"`
}

// ParseLevel converts debug, info, warn or error. The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
