package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

func newStatusCommand() *cobra.Command {
	var siteRef string

	cmd := &cobra.Command{
		Use:   "status [url]",
		Short: "Show lifecycle counts, or inspect one URL's live status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, cleanup, err := newDeps(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			site, err := resolveSite(ctx, deps, siteRef)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				result := deps.Orchestrator.CheckStatus(ctx, site, args[0])
				if !result.Success {
					return fmt.Errorf("inspection failed: %s", result.Error)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Verdict", "Coverage", "Indexing State", "Last Crawl"})
				t.AppendRow(table.Row{result.Verdict, result.CoverageState, result.IndexingState, result.LastCrawlTime})
				t.Render()
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Status", "Pages"})
			statuses := []string{
				domain.PageStatusPending,
				domain.PageStatusSubmitted,
				domain.PageStatusIndexed,
				domain.PageStatusFailed,
			}
			for _, status := range statuses {
				count, countErr := deps.Pages.CountByStatus(ctx, status)
				if countErr != nil {
					return countErr
				}
				t.AppendRow(table.Row{status, count})
			}
			total, err := deps.Pages.CountByStatus(ctx, "")
			if err != nil {
				return err
			}
			t.AppendFooter(table.Row{"total", total})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&siteRef, "site", "", "site id or canonical URL")

	return cmd
}
