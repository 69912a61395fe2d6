package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/campscout/internal/bootstrap"
)

// devworkerCommand runs the extraction-development pipeline loop.
func devworkerCommand() *cobra.Command {
	var reconcile bool

	cmd := &cobra.Command{
		Use:   "devworker",
		Short: "Run the extraction-development pipeline worker",
		Long: `devworker claims pending development requests and drives them through
exploration, code generation, testing, and deployment. With --reconcile
it first repairs completed requests whose deployment never landed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return bootstrap.RunDevWorker(ctx, cfgFile, debug, reconcile)
		},
	}

	cmd.Flags().BoolVar(&reconcile, "reconcile", false,
		"repair stranded deployments before polling")

	return cmd
}
