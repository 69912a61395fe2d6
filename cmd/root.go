// Package cmd implements the campscout command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "campscout",
		Short: "Camp listing crawl orchestration",
		Long: `campscout schedules and runs camp-listing scrapers, develops new
extraction logic for unscraped sites, and keeps the session catalog
deduplicated and healthy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables reach viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or /etc/campscout/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("campscout version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(devworkerCommand())
	rootCmd.AddCommand(dedupCommand())
	rootCmd.AddCommand(sourcesCommand())
	rootCmd.AddCommand(requestsCommand())
	rootCmd.AddCommand(migrateCommand())
}
