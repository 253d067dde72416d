package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor returns an attribute derived from ctx, if any.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// ContextHandler adds extracted attributes to every record before passing
// it to the wrapped handler.
type ContextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

// NewContextHandler wraps next. Nil extractors are ignored.
func NewContextHandler(next slog.Handler, extractors ...ContextExtractor) *ContextHandler {
	h := &ContextHandler{next: next}
	for _, ex := range extractors {
		if ex != nil {
			h.extractors = append(h.extractors, ex)
		}
	}
	return h
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}

type ctxKey int

const (
	batchIDKey ctxKey = iota
	requestIDKey
)

// WithBatchID returns a context carrying the batch ID.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchID returns the batch ID stored in ctx.
func BatchID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(batchIDKey).(string)
	return id, ok && id != ""
}

// BatchIDExtractor adds batch_id to records logged within a batch.
func BatchIDExtractor() ContextExtractor {
	return stringExtractor("batch_id", BatchID)
}

// WithRequestID returns a context carrying the HTTP request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID stored in ctx.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// RequestIDExtractor adds request_id to records logged while serving a request.
func RequestIDExtractor() ContextExtractor {
	return stringExtractor("request_id", RequestID)
}

func stringExtractor(key string, get func(context.Context) (string, bool)) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := get(ctx); ok {
			return slog.String(key, v), true
		}
		return slog.Attr{}, false
	}
}
