package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAutoIndexCommand() *cobra.Command {
	var (
		siteRef string
		force   bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "autoindex",
		Short: "Run one discovery and submission round",
		Long: `Refreshes the site's sitemaps, registers newly discovered URLs as
pending pages, then submits pending pages in a bounded batch. Intended
to run from an external scheduler.`,
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

			if site != nil {
				monitor, monitorErr := deps.Discovery.Monitor(ctx, site, force)
				if monitorErr != nil {
					return monitorErr
				}
				fmt.Printf("discovery: %d sitemaps, %d urls found, %d pages added\n",
					len(monitor.Sitemaps), monitor.URLsFound, monitor.PagesAdded)
			}

			if dryRun {
				return nil
			}

			summary, err := deps.AutoIndexer.Run(ctx, site)
			if err != nil {
				return err
			}

			fmt.Printf("submitted %d pending pages\n", summary.PagesSelected)
			for _, result := range summary.Results {
				renderBulkResult(result)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&siteRef, "site", "", "site id or canonical URL")
	cmd.Flags().BoolVar(&force, "force", false, "recheck sitemaps even when fresh")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "discover only, submit nothing")

	return cmd
}
