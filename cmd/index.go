package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/orchestrator"
)

func newIndexCommand() *cobra.Command {
	var (
		siteRef    string
		engineSet  []string
		fromImport bool
		method     string
	)

	cmd := &cobra.Command{
		Use:   "index <url> [url...]",
		Short: "Submit one or more URLs to the search engines",
		Args:  cobra.MinimumNArgs(1),
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

			for _, engine := range engineSet {
				if !domain.KnownEngine(engine) {
					return fmt.Errorf("unknown engine: %s", engine)
				}
			}
			if len(engineSet) == 0 {
				engineSet = []string{domain.EngineGoogle, domain.EngineIndexNow}
			}

			if fromImport {
				if !domain.ValidMethod(method) {
					return fmt.Errorf("unknown indexing method: %s", method)
				}
				summary := deps.Discovery.ImportURLs(ctx, site, args, method)
				fmt.Printf("imported: %d created, %d reset to pending, %d failed\n",
					summary.Created, summary.Reset, len(summary.Failures))
				return nil
			}

			if len(args) == 1 {
				result, indexErr := deps.Orchestrator.Index(ctx, site, args[0], engineSet)
				if result != nil {
					renderIndexResult(result)
				}
				return indexErr
			}

			result, bulkErr := deps.Orchestrator.BulkIndex(ctx, site, args, engineSet)
			if result != nil {
				renderBulkResult(result)
			}
			return bulkErr
		},
	}

	cmd.Flags().StringVar(&siteRef, "site", "", "site id or canonical URL")
	cmd.Flags().StringSliceVar(&engineSet, "engines", nil, "engines to submit to (google, indexnow)")
	cmd.Flags().BoolVar(&fromImport, "import-only", false, "register the URLs as pending without submitting")
	cmd.Flags().StringVar(&method, "method", domain.MethodBoth, "indexing method recorded for imported URLs")

	return cmd
}

func renderIndexResult(result *orchestrator.IndexResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Engine", "Success", "Error"})
	for engine, res := range result.Engines {
		t.AppendRow(table.Row{engine, res.Success, res.Error})
	}
	t.Render()
}

func renderBulkResult(result *orchestrator.BulkResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Engine", "Attempted", "Succeeded", "Failed", "Rate Limited", "Not Attempted"})
	for engine, summary := range result.Engines {
		t.AppendRow(table.Row{
			engine,
			summary.Attempted,
			summary.Succeeded,
			summary.Failed,
			summary.RateLimited,
			summary.NotAttempted,
		})
	}
	t.Render()

	if len(result.Skipped) > 0 {
		fmt.Printf("%d urls skipped:\n", len(result.Skipped))
		for url, reason := range result.Skipped {
			fmt.Printf("  %s: %s\n", url, reason)
		}
	}
}
