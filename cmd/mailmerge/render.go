package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailmerge/pkg/batch"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
	"github.com/dmitrymomot/mailmerge/pkg/ingest"
	"github.com/dmitrymomot/mailmerge/pkg/personalize"
)

// batchFlags are shared by render and send.
type batchFlags struct {
	template string
	list     string
	subject  string
	mode     string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.template, "template", "t", "", "message file (optional YAML front matter with subject)")
	cmd.Flags().StringVarP(&f.list, "list", "l", "", "recipient list: CSV file, s3://bucket/key or -")
	cmd.Flags().StringVarP(&f.subject, "subject", "s", "", "subject, overrides the front matter")
	cmd.Flags().StringVar(&f.mode, "mode", "", "binding mode: personalized or single (default from config)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("list")
}

type skippedRecipient struct {
	Email string `json:"email"`
	Error string `json:"error"`
	Index int    `json:"index"`
}

type batchOutput struct {
	Outcome  *dispatch.Outcome     `json:"outcome,omitempty"`
	ID       string                `json:"batch_id"`
	Subject  string                `json:"subject"`
	Emails   []personalize.Payload `json:"emails,omitempty"`
	Invalid  []ingest.InvalidRow   `json:"invalid_rows"`
	Skipped  []skippedRecipient    `json:"skipped,omitempty"`
	OptedOut []string              `json:"opted_out,omitempty"`
}

// runBatch runs one batch through the pipeline. A nil tracker renders only.
func runBatch(cmd *cobra.Command, a *app, tracker *dispatch.Tracker, f *batchFlags, dryRun bool) (*batchOutput, error) {
	tpl, subject, err := loadMessage(f.template, f.subject)
	if err != nil {
		return nil, err
	}

	modeName := a.cfg.Batch.Mode
	if f.mode != "" {
		modeName = f.mode
	}
	mode, err := personalize.ParseMode(modeName)
	if err != nil {
		return nil, err
	}

	popts, err := a.personalizeOptions()
	if err != nil {
		return nil, err
	}

	src, closer, err := a.openSource(cmd.Context(), f.list)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	runner := batch.New(tracker,
		batch.WithSkipOptedOut(a.cfg.Batch.SkipOptedOut),
		batch.WithPersonalizeOptions(popts...),
		batch.WithObserver(a.metrics),
		batch.WithLogger(a.logger),
	)

	report, err := runner.Run(cmd.Context(), batch.Request{
		Source:   src,
		Template: tpl,
		Subject:  subject,
		Mode:     mode,
		DryRun:   dryRun,
	})
	if err != nil {
		return nil, err
	}

	out := &batchOutput{
		ID:       report.ID,
		Subject:  subject,
		Invalid:  report.Ingest.Invalid,
		OptedOut: report.OptedOut,
		Outcome:  report.Outcome,
	}
	if out.Invalid == nil {
		out.Invalid = []ingest.InvalidRow{}
	}
	if report.Outcome == nil {
		out.Emails = report.Payloads
	}
	for _, sk := range report.Skipped {
		out.Skipped = append(out.Skipped, skippedRecipient{Index: sk.Index, Email: sk.Email, Error: sk.Err.Error()})
	}
	return out, nil
}

func newRenderCmd(opts *options) *cobra.Command {
	f := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a message for every valid recipient without sending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := runBatch(cmd, a, nil, f, true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.register(cmd)

	return cmd
}
