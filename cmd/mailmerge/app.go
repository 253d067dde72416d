package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/mailmerge/internal/api"
	"github.com/dmitrymomot/mailmerge/internal/config"
	"github.com/dmitrymomot/mailmerge/internal/metrics"
	"github.com/dmitrymomot/mailmerge/pkg/binder"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch/resend"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch/ses"
	"github.com/dmitrymomot/mailmerge/pkg/draft"
	"github.com/dmitrymomot/mailmerge/pkg/draft/bedrock"
	"github.com/dmitrymomot/mailmerge/pkg/ingest"
	"github.com/dmitrymomot/mailmerge/pkg/ingest/s3source"
	"github.com/dmitrymomot/mailmerge/pkg/logger"
	"github.com/dmitrymomot/mailmerge/pkg/personalize"
)

// app wires configuration into the pipeline components.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	flush    func()
}

// newApp loads configuration and builds the shared logger and metrics.
// Logs go to stderr so command output on stdout stays machine readable.
func newApp(opts *options) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Log.Output = os.Stderr
	log, flush := logger.NewWithSentry(cfg.Log, cfg.Sentry,
		logger.BatchIDExtractor(),
		logger.RequestIDExtractor(),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		cfg:      cfg,
		logger:   log,
		metrics:  metrics.New(reg),
		registry: reg,
		flush:    flush,
	}, nil
}

func (a *app) close() { a.flush() }

// sender builds the configured provider, instrumented with metrics.
// Providers that can report their own readiness add a check.
func (a *app) sender(ctx context.Context) (dispatch.Sender, api.Checks, error) {
	checks := api.Checks{}

	var s dispatch.Sender
	switch a.cfg.Sender.Provider {
	case config.ProviderResend:
		rs, err := resend.New(a.cfg.Resend)
		if err != nil {
			return nil, nil, err
		}
		s = rs
	case config.ProviderSES:
		ss, err := ses.New(ctx, a.cfg.SES)
		if err != nil {
			return nil, nil, err
		}
		s = ss
		checks[config.ProviderSES] = ss.Check
	default:
		s = dispatch.NewLogSender(a.logger)
	}

	return a.metrics.InstrumentSender(a.cfg.Sender.Provider, s), checks, nil
}

func (a *app) tracker(ctx context.Context) (*dispatch.Tracker, api.Checks, error) {
	sender, checks, err := a.sender(ctx)
	if err != nil {
		return nil, nil, err
	}

	policy, err := dispatch.ParsePolicy(a.cfg.Dispatch.Policy)
	if err != nil {
		return nil, nil, err
	}

	composer := dispatch.NewComposer(dispatch.ComposerConfig{
		From:      a.cfg.Sender.From,
		ReplyTo:   a.cfg.Sender.ReplyTo,
		PlainText: a.cfg.Sender.PlainText,
	})

	t := dispatch.New(sender,
		dispatch.WithPolicy(policy),
		dispatch.WithConcurrency(a.cfg.Dispatch.Concurrency),
		dispatch.WithComposer(composer),
		dispatch.WithLogger(a.logger),
	)
	return t, checks, nil
}

// generator returns nil when draft generation is disabled.
func (a *app) generator(ctx context.Context) (draft.Generator, error) {
	if !a.cfg.Bedrock.Enabled {
		return nil, nil
	}
	return bedrock.New(ctx, a.cfg.Bedrock.Config)
}

func (a *app) personalizeOptions() ([]personalize.Option, error) {
	policy, err := personalize.ParsePolicy(a.cfg.Batch.OnRenderError)
	if err != nil {
		return nil, err
	}
	return []personalize.Option{
		personalize.WithPolicy(policy),
		personalize.WithLogger(a.logger),
	}, nil
}

// openSource opens a local CSV file, stdin ("-") or an s3:// object.
func (a *app) openSource(ctx context.Context, location string) (ingest.Source, io.Closer, error) {
	switch {
	case s3source.IsURI(location):
		bucket, key, err := s3source.ParseURI(location)
		if err != nil {
			return nil, nil, err
		}
		client, err := s3source.NewClient(ctx, a.cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		obj, err := s3source.Open(ctx, client, bucket, key, a.cfg.S3.MaxSize)
		if err != nil {
			return nil, nil, err
		}
		return obj, obj, nil
	case location == "-":
		return ingest.NewCSVSource(os.Stdin), io.NopCloser(os.Stdin), nil
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, nil, err
		}
		return ingest.NewCSVSource(f), f, nil
	}
}

// loadMessage reads a message document. A non-empty subject overrides the
// front matter subject.
func loadMessage(path, subject string) (*binder.Template, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	msg, err := binder.ParseMessage(content)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	if subject == "" {
		subject = msg.Subject
	}

	tpl, err := binder.Parse(msg.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return tpl, subject, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
