package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailmerge/internal/api"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()

			tracker, checks, err := a.tracker(ctx)
			if err != nil {
				return err
			}
			gen, err := a.generator(ctx)
			if err != nil {
				return err
			}
			popts, err := a.personalizeOptions()
			if err != nil {
				return err
			}

			srvOpts := []api.Option{
				api.WithTracker(tracker),
				api.WithPersonalizeOptions(popts...),
				api.WithMetrics(a.metrics, a.registry),
				api.WithChecks(checks),
				api.WithLogger(a.logger),
				api.WithMaxUploadSize(a.cfg.Server.MaxUploadSize),
				api.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout),
				api.WithShutdownTimeout(a.cfg.Server.ShutdownTimeout),
			}
			if gen != nil {
				srvOpts = append(srvOpts, api.WithGenerator(gen))
			}

			a.logger.InfoContext(ctx, "starting mailmerge api",
				slog.String("provider", a.cfg.Sender.Provider),
				slog.String("dispatch_policy", a.cfg.Dispatch.Policy),
				slog.Bool("drafts", gen != nil),
			)
			return api.New(srvOpts...).Run(ctx, a.cfg.Server.Addr())
		},
	}
}
