package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSendCmd(opts *options) *cobra.Command {
	f := &batchFlags{}
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Render and send a message to every valid recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			tracker, _, err := a.tracker(cmd.Context())
			if err != nil {
				return err
			}

			out, err := runBatch(cmd, a, tracker, f, dryRun)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}

			if out.Outcome != nil && len(out.Outcome.Failed) > 0 {
				total := len(out.Outcome.Sent) + len(out.Outcome.Failed)
				return fmt.Errorf("%d of %d emails failed: %w", len(out.Outcome.Failed), total, out.Outcome.Err())
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render only, send nothing")

	return cmd
}
