// Package batch runs one recipient list through the full pipeline:
// ingest, personalize and dispatch, strictly in that order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailmerge/pkg/binder"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
	"github.com/dmitrymomot/mailmerge/pkg/ingest"
	"github.com/dmitrymomot/mailmerge/pkg/logger"
	"github.com/dmitrymomot/mailmerge/pkg/personalize"
	"github.com/dmitrymomot/mailmerge/pkg/recipient"
)

var (
	// ErrNoSource indicates a request without a recipient source.
	ErrNoSource = errors.New("batch: source is required")

	// ErrNoTemplate indicates a request without a template.
	ErrNoTemplate = errors.New("batch: template is required")

	// ErrNoTracker indicates a non dry-run request on a runner without a tracker.
	ErrNoTracker = errors.New("batch: no dispatch tracker configured")
)

// Request describes one batch.
type Request struct {
	Source   ingest.Source
	Template *binder.Template
	Subject  string
	Mode     personalize.Mode
	DryRun   bool // personalize only, send nothing
}

// Report is the result of a batch. Outcome is nil for dry runs.
type Report struct {
	Ingest   *ingest.Result
	Outcome  *dispatch.Outcome
	ID       string
	Payloads []personalize.Payload
	Skipped  []personalize.RecipientError
	OptedOut []string
}

// Observer is notified after each stage completes.
type Observer interface {
	Ingested(ctx context.Context, res *ingest.Result)
	Personalized(ctx context.Context, res *personalize.Result)
	Dispatched(ctx context.Context, out dispatch.Outcome)
}

type nopObserver struct{}

func (nopObserver) Ingested(context.Context, *ingest.Result)          {}
func (nopObserver) Personalized(context.Context, *personalize.Result) {}
func (nopObserver) Dispatched(context.Context, dispatch.Outcome)      {}

// Runner executes batches. It holds no per-batch state and may run batches
// concurrently.
type Runner struct {
	tracker      *dispatch.Tracker
	observer     Observer
	logger       *slog.Logger
	newID        func() string
	popts        []personalize.Option
	skipOptedOut bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithSkipOptedOut controls whether opted-out recipients are excluded
// before personalization. Enabled by default.
func WithSkipOptedOut(skip bool) Option {
	return func(r *Runner) {
		r.skipOptedOut = skip
	}
}

// WithPersonalizeOptions passes options through to personalize.Personalize.
func WithPersonalizeOptions(opts ...personalize.Option) Option {
	return func(r *Runner) {
		r.popts = append(r.popts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers a stage observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithIDGenerator overrides batch ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates a Runner. tracker may be nil when only dry runs are executed.
func New(tracker *dispatch.Tracker, opts ...Option) *Runner {
	r := &Runner{
		tracker:      tracker,
		observer:     nopObserver{},
		logger:       logger.NewNope(),
		newID:        uuid.NewString,
		skipOptedOut: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req. Structural failures (missing email column, malformed
// source, empty single-mode batch, fail-fast render errors) abort the batch
// and return an error; row and send failures are reported in the Report.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	switch {
	case req.Source == nil:
		return nil, ErrNoSource
	case req.Template == nil:
		return nil, ErrNoTemplate
	case !req.DryRun && r.tracker == nil:
		return nil, ErrNoTracker
	}

	report := &Report{ID: r.newID()}
	ctx = logger.WithBatchID(ctx, report.ID)
	log := r.logger

	ingested, err := ingest.Ingest(req.Source)
	if err != nil {
		log.ErrorContext(ctx, "ingest failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("ingest: %w", err)
	}
	report.Ingest = ingested
	r.observer.Ingested(ctx, ingested)
	log.InfoContext(ctx, "recipients ingested",
		slog.Int("total", ingested.Total),
		slog.Int("valid", len(ingested.Valid)),
		slog.Int("invalid", len(ingested.Invalid)),
		slog.Int("duplicates", ingested.Duplicates),
		slog.Int("blank", ingested.Blank),
	)

	records := ingested.Records()
	if r.skipOptedOut {
		records, report.OptedOut = splitOptedOut(records)
	}

	personalized, err := personalize.Personalize(req.Template, personalize.FromRecords(records), req.Mode, r.popts...)
	if err != nil {
		log.ErrorContext(ctx, "personalization failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("personalize: %w", err)
	}
	report.Payloads = personalized.Payloads
	report.Skipped = personalized.Skipped
	r.observer.Personalized(ctx, personalized)
	log.InfoContext(ctx, "payloads rendered",
		slog.Int("payloads", len(personalized.Payloads)),
		slog.Int("skipped", len(personalized.Skipped)),
		slog.Int("opted_out", len(report.OptedOut)),
	)

	if req.DryRun {
		return report, nil
	}

	outcome := r.tracker.Dispatch(ctx, personalized.Payloads, req.Subject)
	report.Outcome = &outcome
	r.observer.Dispatched(ctx, outcome)
	log.InfoContext(ctx, "batch dispatched",
		slog.Int("sent", len(outcome.Sent)),
		slog.Int("failed", len(outcome.Failed)),
	)

	return report, nil
}

func splitOptedOut(records []recipient.Record) (keep []recipient.Record, optedOut []string) {
	keep = make([]recipient.Record, 0, len(records))
	for _, rec := range records {
		if rec.OptOut() {
			optedOut = append(optedOut, rec.Email())
			continue
		}
		keep = append(keep, rec)
	}
	return keep, optedOut
}
