package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/pageindexer/internal/reconcile"
)

func newReconcileCommand() *cobra.Command {
	var (
		siteRef string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile local page status against Search Console",
		Long: `Inspects the stalest tracked pages and corrects their lifecycle:
pages the index confirms are marked indexed, pages the index dropped
are demoted back to pending for resubmission.`,
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

			rec := deps.Reconciler
			if limit > 0 {
				rec = reconcile.New(reconcile.Config{
					SiteURL:    deps.Config.Engines.Google.SiteURL,
					Limit:      limit,
					BatchSize:  deps.Config.Reconcile.BatchSize,
					CallDelay:  deps.Config.Reconcile.CallDelay,
					BatchDelay: deps.Config.Reconcile.BatchDelay,
				}, deps.Pages, deps.Console, deps.Metrics, deps.Logger)
			}

			summary, err := rec.Run(ctx, site)
			if summary != nil {
				fmt.Printf("checked %d pages: %d indexed, %d demoted, %d skipped, %d errors\n",
					summary.Checked, summary.Indexed, summary.Demoted, summary.Skipped, summary.Errors)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&siteRef, "site", "", "site id or canonical URL")
	cmd.Flags().IntVar(&limit, "limit", 0, "override the sweep size")

	return cmd
}
