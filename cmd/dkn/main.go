// Command dkn runs the DKN web application and its maintenance tasks.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("dkn failed", "error", err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	env string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dkn",
		Short:         "Digital Knowledge Network web application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.env, "env", "",
		"settings bundle (development, testing, production, default); defaults to DKN_ENV, then FLASK_ENV")

	cmd.AddCommand(newServeCmd(opts), newInitDBCmd(opts))
	return cmd
}
