// Package logger builds the slog loggers used across mailmerge.
//
// New returns a JSON or text logger at a configured level. Request and batch
// scoped values are attached through context extractors that run on every
// log call:
//
//	log := logger.New(logger.Config{Level: "debug"}, logger.BatchIDExtractor())
//	ctx := logger.WithBatchID(ctx, id)
//	log.InfoContext(ctx, "batch started") // {"msg":"batch started","batch_id":"..."}
//
// NewWithSentry additionally forwards warnings and errors to Sentry when a
// DSN is configured. Without a DSN it behaves like New.
//
// Components take a *slog.Logger through options and default to NewNope.
package logger
