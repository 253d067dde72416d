// Command mailmerge validates recipient lists, renders personalized
// messages and sends them, either as one-off batches or behind an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the global flags shared by every subcommand.
type options struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "mailmerge",
		Short:         "Personalized outreach email batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is ./mailmerge.yaml)")

	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newRenderCmd(opts))
	root.AddCommand(newSendCmd(opts))
	root.AddCommand(newServeCmd(opts))

	return root
}
