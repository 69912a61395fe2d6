package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/campscout/internal/bootstrap"
)

// requestsCommand groups the development request admin commands.
func requestsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect extraction-development requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(requestsListCommand())
	return cmd
}

func requestsListCommand() *cobra.Command {
	var (
		status string
		market string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List development requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, deps *bootstrap.Deps, db *bootstrap.DatabaseComponents) error {
				requests, err := db.Requests.List(ctx, status, market, limit, 0)
				if err != nil {
					return fmt.Errorf("list requests: %w", err)
				}

				if len(requests) == 0 {
					fmt.Println("No requests found.")
					return nil
				}

				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Name", "Status", "Market", "Retries", "Code", "URL"})
				for _, r := range requests {
					code := "-"
					if r.GeneratedCode != nil {
						code = fmt.Sprintf("v%d", r.CodeVersion)
					}
					t.AppendRow(table.Row{
						r.SourceName,
						r.Status,
						r.Market,
						fmt.Sprintf("%d/%d", r.TestRetryCount, r.MaxTestRetries),
						code,
						r.SourceURL,
					})
				}
				t.Render()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&market, "market", "", "filter by market")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}
