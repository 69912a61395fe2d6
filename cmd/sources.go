package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/campscout/internal/bootstrap"
	"github.com/jonesrussell/campscout/internal/domain"
)

// sourcesCommand groups the source admin commands.
func sourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect scrape sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(sourcesListCommand())
	return cmd
}

func sourcesListCommand() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources with their health counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, deps *bootstrap.Deps, db *bootstrap.DatabaseComponents) error {
				sources, err := db.Sources.List(ctx, activeOnly)
				if err != nil {
					return fmt.Errorf("list sources: %w", err)
				}

				if len(sources) == 0 {
					fmt.Println("No sources found.")
					return nil
				}

				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Name", "Market", "Active", "Logic", "Success Rate", "Failures", "Last Scraped"})
				for _, s := range sources {
					t.AppendRow(table.Row{
						s.Name,
						s.Market,
						s.IsActive,
						logicKind(s),
						fmt.Sprintf("%.0f%%", s.SuccessRate*100),
						s.ConsecutiveFailures,
						formatTime(s.LastScrapedAt),
					})
				}
				t.Render()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "show active sources only")
	return cmd
}

func logicKind(s *domain.Source) string {
	switch {
	case s.ModuleName != nil:
		return "module:" + *s.ModuleName
	case s.ScriptCode != nil:
		return "script"
	default:
		return "none"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}
