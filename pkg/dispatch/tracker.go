package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailmerge/pkg/personalize"
)

// Policy decides how a failed send affects the rest of the batch.
type Policy int

const (
	// HaltOnFailure stops at the first failure and fails the remaining
	// payloads without attempting them.
	HaltOnFailure Policy = iota
	// Isolate attempts every payload independently.
	Isolate
)

// ParsePolicy converts "halt" or "isolate". The empty string means HaltOnFailure.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "halt":
		return HaltOnFailure, nil
	case "isolate":
		return Isolate, nil
	default:
		return HaltOnFailure, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

func (p Policy) String() string {
	if p == Isolate {
		return "isolate"
	}
	return "halt"
}

// Failure records why one email was not sent.
type Failure struct {
	Err   error
	Email string
}

// Outcome partitions the distinct payload emails into sent and failed,
// both in payload order.
type Outcome struct {
	Sent     []string  `json:"sent"`
	Failed   []string  `json:"failed"`
	Failures []Failure `json:"-"`
}

// Err joins every failure, or returns nil when all emails were sent.
func (o Outcome) Err() error {
	errs := make([]error, 0, len(o.Failures))
	for _, f := range o.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Email, f.Err))
	}
	return errors.Join(errs...)
}

// Tracker dispatches payload batches through a Sender.
type Tracker struct {
	sender      Sender
	composer    *Composer
	logger      *slog.Logger
	policy      Policy
	concurrency int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPolicy sets the failure policy.
func WithPolicy(p Policy) Option {
	return func(t *Tracker) {
		t.policy = p
	}
}

// WithConcurrency bounds parallel sends under the Isolate policy.
// Values below 2 keep sends sequential. Ignored by HaltOnFailure.
func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithComposer sets the composer used to build emails.
func WithComposer(c *Composer) Option {
	return func(t *Tracker) {
		if c != nil {
			t.composer = c
		}
	}
}

// WithLogger sets the logger for per-send events.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a tracker that delivers through sender.
func New(sender Sender, opts ...Option) *Tracker {
	t := &Tracker{
		sender:      sender,
		composer:    NewComposer(ComposerConfig{}),
		logger:      slog.New(slog.DiscardHandler),
		policy:      HaltOnFailure,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dispatch sends every payload with subject and returns the partition.
// Later payloads repeating an earlier email are ignored.
func (t *Tracker) Dispatch(ctx context.Context, payloads []personalize.Payload, subject string) Outcome {
	payloads = unique(payloads)
	results := make([]error, len(payloads))

	switch {
	case strings.TrimSpace(subject) == "":
		for i := range results {
			results[i] = ErrNoSubject
		}
	case t.policy == Isolate && t.concurrency > 1:
		t.concurrent(ctx, payloads, subject, results)
	default:
		t.sequential(ctx, payloads, subject, results)
	}

	return partition(payloads, results)
}

func (t *Tracker) sequential(ctx context.Context, payloads []personalize.Payload, subject string, results []error) {
	for i, p := range payloads {
		if err := ctx.Err(); err != nil {
			fill(results[i:], err)
			return
		}

		results[i] = t.send(ctx, p, subject)
		if results[i] != nil && t.policy == HaltOnFailure && !unsendable(results[i]) {
			fill(results[i+1:], ErrNotAttempted)
			if n := len(payloads) - i - 1; n > 0 {
				t.logger.WarnContext(ctx, "halting dispatch after failure",
					slog.String("email", p.Email),
					slog.Int("not_attempted", n),
				)
			}
			return
		}
	}
}

func (t *Tracker) concurrent(ctx context.Context, payloads []personalize.Payload, subject string, results []error) {
	var g errgroup.Group
	g.SetLimit(t.concurrency)

	for i, p := range payloads {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = t.send(ctx, p, subject)
			return nil
		})
	}
	_ = g.Wait()
}

func (t *Tracker) send(ctx context.Context, p personalize.Payload, subject string) error {
	if strings.TrimSpace(p.Email) == "" {
		return ErrNoRecipient
	}
	if strings.TrimSpace(p.Body) == "" {
		return ErrNoContent
	}

	email, err := t.composer.Compose(p, subject)
	if err != nil {
		return err
	}

	if err := t.sender.Send(ctx, email); err != nil {
		t.logger.WarnContext(ctx, "email send failed",
			slog.String("email", p.Email),
			slog.String("error", err.Error()),
		)
		return errors.Join(ErrSendFailed, err)
	}

	t.logger.DebugContext(ctx, "email sent", slog.String("email", p.Email))
	return nil
}

// unsendable reports whether err rejected a payload before any send was
// attempted. Such payloads fail alone and never halt the batch.
func unsendable(err error) bool {
	return errors.Is(err, ErrNoRecipient) || errors.Is(err, ErrNoContent)
}

// unique drops payloads whose email was already seen.
func unique(payloads []personalize.Payload) []personalize.Payload {
	seen := make(map[string]struct{}, len(payloads))
	out := make([]personalize.Payload, 0, len(payloads))
	for _, p := range payloads {
		if _, dup := seen[p.Email]; dup {
			continue
		}
		seen[p.Email] = struct{}{}
		out = append(out, p)
	}
	return out
}

func partition(payloads []personalize.Payload, results []error) Outcome {
	out := Outcome{
		Sent:   make([]string, 0, len(payloads)),
		Failed: make([]string, 0),
	}
	for i, p := range payloads {
		if results[i] == nil {
			out.Sent = append(out.Sent, p.Email)
			continue
		}
		out.Failed = append(out.Failed, p.Email)
		out.Failures = append(out.Failures, Failure{Email: p.Email, Err: results[i]})
	}
	return out
}

func fill(dst []error, err error) {
	for i := range dst {
		dst[i] = err
	}
}
