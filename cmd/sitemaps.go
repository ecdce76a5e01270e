package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSitemapsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemaps",
		Short: "Parse and monitor sitemaps",
	}

	cmd.AddCommand(newSitemapsParseCommand())
	cmd.AddCommand(newSitemapsListCommand())

	return cmd
}

func newSitemapsParseCommand() *cobra.Command {
	var showURLs bool

	cmd := &cobra.Command{
		Use:   "parse <sitemap-url>",
		Short: "Resolve a sitemap and report the URLs it contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, cleanup, err := newDeps(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result := deps.Orchestrator.ParseSitemap(ctx, args[0])
			if !result.Success {
				return fmt.Errorf("sitemap resolution failed: %s", result.Error)
			}

			fmt.Printf("type: %s, urls: %d, children: %d\n",
				result.Type, result.Count, len(result.Sitemaps))

			if showURLs {
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"URL", "Last Modified"})
				for _, u := range result.URLs {
					lastMod := ""
					if u.LastMod != nil {
						lastMod = u.LastMod.Format("2006-01-02")
					}
					t.AppendRow(table.Row{u.Loc, lastMod})
				}
				t.Render()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showURLs, "urls", false, "list every URL found")

	return cmd
}

func newSitemapsListCommand() *cobra.Command {
	var siteRef string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the sitemaps registered for a site",
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
			if site == nil {
				return fmt.Errorf("--site is required")
			}

			sitemaps, err := deps.Sitemaps.ListBySite(ctx, site.ID)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"URL", "Type", "Pages", "Last Checked"})
			for _, doc := range sitemaps {
				lastChecked := "never"
				if doc.LastCheckedAt != nil {
					lastChecked = doc.LastCheckedAt.Format("2006-01-02 15:04")
				}
				t.AppendRow(table.Row{doc.SitemapURL, doc.Type, doc.PageCount, lastChecked})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&siteRef, "site", "", "site id or canonical URL")

	return cmd
}
