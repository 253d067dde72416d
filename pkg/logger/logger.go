package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

const sentryFlushTimeout = 2 * time.Second

// New creates a logger from cfg. Unknown levels fall back to info and
// unknown formats to JSON.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return slog.New(NewContextHandler(baseHandler(cfg), extractors...))
}

// NewWithSentry creates a logger that also forwards records to Sentry.
// The returned function flushes buffered Sentry events and must be called
// before exit. With an empty DSN, or when Sentry fails to start, only the
// base handler is used.
func NewWithSentry(cfg Config, scfg SentryConfig, extractors ...ContextExtractor) (*slog.Logger, func()) {
	base := baseHandler(cfg)
	noop := func() {}

	if scfg.DSN == "" {
		return slog.New(NewContextHandler(base, extractors...)), noop
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         scfg.DSN,
		Environment: scfg.Environment,
		Release:     scfg.Release,
		EnableLogs:  true,
	}); err != nil {
		slog.New(base).Error("failed to initialize sentry", slog.String("error", err.Error()))
		return slog.New(NewContextHandler(base, extractors...)), noop
	}

	logLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if lvl, _ := ParseLevel(scfg.MinLevel); lvl >= slog.LevelError {
		logLevels = []slog.Level{slog.LevelError}
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())

	combined := NewMultiHandler(base, sentryHandler)
	flush := func() { sentry.Flush(sentryFlushTimeout) }
	return slog.New(NewContextHandler(combined, extractors...)), flush
}

// NewNope creates a logger that discards everything.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func baseHandler(cfg Config) slog.Handler {
	var out io.Writer = os.Stdout
	if cfg.Output != nil {
		out = cfg.Output
	}

	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == FormatText {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}
