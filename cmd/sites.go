package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSitesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage the site registry",
	}

	cmd.AddCommand(newSitesListCommand())
	cmd.AddCommand(newSitesSyncCommand())
	cmd.AddCommand(newSitesAddCommand())

	return cmd
}

func newSitesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, cleanup, err := newDeps(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sites, err := deps.Sites.List(ctx)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Canonical URL", "Name", "Auto-Indexing", "IndexNow Key"})
			for _, site := range sites {
				t.AppendRow(table.Row{
					site.ID,
					site.CanonicalURL,
					site.Name,
					site.AutoIndexingEnabled,
					site.HasIndexNowKey(),
				})
			}
			t.Render()
			return nil
		},
	}
}

func newSitesSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror Search Console properties into the site registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, cleanup, err := newDeps(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sync, err := deps.Orchestrator.SyncSites(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("synced %d of %d properties\n", len(sync.Sites), len(sync.Listed))
			for url, reason := range sync.Failures {
				fmt.Printf("  %s: %s\n", url, reason)
			}
			return nil
		},
	}
}

func newSitesAddCommand() *cobra.Command {
	var (
		name        string
		autoIndex   bool
		indexNowKey string
	)

	cmd := &cobra.Command{
		Use:   "add <canonical-url>",
		Short: "Register or update a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, cleanup, err := newDeps(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			siteName := name
			if siteName == "" {
				siteName = args[0]
			}

			site, err := deps.Sites.Upsert(ctx, args[0], siteName)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("auto-index") {
				if err := deps.Sites.SetAutoIndexing(ctx, site.ID, autoIndex); err != nil {
					return err
				}
			}
			if indexNowKey != "" {
				if err := deps.Sites.SetIndexNowKey(ctx, site.ID, &indexNowKey); err != nil {
					return err
				}
			}

			fmt.Printf("site %s registered (%s)\n", site.CanonicalURL, site.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&autoIndex, "auto-index", false, "enable automatic indexing")
	cmd.Flags().StringVar(&indexNowKey, "indexnow-key", "", "IndexNow key for the site")

	return cmd
}
