package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailmerge/pkg/ingest"
)

func newValidateCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <file.csv|s3://bucket/key|->",
		Short: "Validate a recipient list and print valid and invalid rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			src, closer, err := a.openSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			res, err := ingest.Ingest(src)
			if err != nil {
				return err
			}
			a.metrics.Ingested(cmd.Context(), res)

			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if strict && len(res.Invalid) > 0 {
				return fmt.Errorf("%d invalid rows", len(res.Invalid))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any row is invalid")

	return cmd
}
