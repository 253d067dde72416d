package dispatch

import (
	"context"
	"log/slog"
)

// Sender delivers one email. Any non-nil error is a failed send.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, email *Email) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, email *Email) error {
	return f(ctx, email)
}

// LogSender logs emails instead of delivering them. Used for dry runs.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that writes each email to l.
func NewLogSender(l *slog.Logger) *LogSender {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &LogSender{logger: l}
}

// Send logs the email and always succeeds unless ctx is done.
func (s *LogSender) Send(ctx context.Context, email *Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email",
		slog.Any("to", email.To),
		slog.String("subject", email.Subject),
		slog.Int("text_bytes", len(email.Text)),
		slog.Int("html_bytes", len(email.HTML)),
	)
	return nil
}
