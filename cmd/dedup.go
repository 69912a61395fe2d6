package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/bootstrap"
	"github.com/jonesrussell/campscout/internal/dedup"
)

// dedupCommand groups the duplicate-detection admin commands.
func dedupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Detect and merge duplicate listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(dedupScanCommand())
	cmd.AddCommand(dedupMergeCommand())
	return cmd
}

func dedupScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Report cross-source duplicate sessions without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, deps *bootstrap.Deps, db *bootstrap.DatabaseComponents) error {
				alertSvc := alerts.NewService(db.Alerts, deps.Logger)
				scanner := dedup.NewScanner(db.Sessions, alertSvc, deps.Logger)

				groups, err := scanner.Scan(ctx)
				if err != nil {
					return fmt.Errorf("scan: %w", err)
				}

				if len(groups) == 0 {
					fmt.Println("No cross-source duplicates found.")
					return nil
				}

				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Organization", "Start Date", "Sessions", "Names"})
				for _, g := range groups {
					t.AppendRow(table.Row{
						g.OrganizationID,
						g.StartDate.Format("2006-01-02"),
						g.MatchCount,
						strings.Join(g.Names, " / "),
					})
				}
				t.Render()
				return nil
			})
		},
	}
}

func dedupMergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge duplicate camps within each organization (destructive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, deps *bootstrap.Deps, db *bootstrap.DatabaseComponents) error {
				merger := dedup.NewMerger(db.Camps, deps.Logger)

				results, err := merger.MergeDuplicates(ctx)
				if err != nil {
					return fmt.Errorf("merge: %w", err)
				}

				if len(results) == 0 {
					fmt.Println("Nothing to merge.")
					return nil
				}

				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Keeper", "Merged", "Sessions Moved", "Images Adopted"})
				for _, r := range results {
					t.AppendRow(table.Row{
						r.KeeperName,
						len(r.MergedIDs),
						r.SessionsMoved,
						r.ImagesAdopted,
					})
				}
				t.Render()
				return nil
			})
		},
	}
}

// withDatabase loads config, connects, runs fn, and closes the
// connection.
func withDatabase(
	ctx context.Context,
	fn func(ctx context.Context, deps *bootstrap.Deps, db *bootstrap.DatabaseComponents) error,
) error {
	deps, err := bootstrap.NewDeps(cfgFile, debug)
	if err != nil {
		return err
	}

	db, err := bootstrap.SetupDatabase(deps.Config)
	if err != nil {
		return fmt.Errorf("setup database: %w", err)
	}
	defer db.DB.Close()

	return fn(ctx, deps, db)
}
