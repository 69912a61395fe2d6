package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/campscout/internal/bootstrap"
)

// serveCommand runs the orchestration service: HTTP API, cron
// scheduler, and the scrape worker pool.
func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scrape orchestration service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap.Start(cfgFile, debug)
		},
	}
}
