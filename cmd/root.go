// Package cmd implements the command-line interface for pageindexer.
// It provides the root command and subcommands for submitting pages,
// running the queue worker, reconciling indexing status, and serving
// the HTTP API.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "pageindexer",
		Short: "Search engine page indexing orchestrator",
		Long: `pageindexer tracks the indexing lifecycle of site pages and
submits them to search engines through the Indexing API and the
IndexNow protocol, with rate limiting, an append-only attempt ledger,
and status reconciliation against Search Console.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment overrides are visible to viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml, ~/.pageindexer/config.yaml, or /etc/pageindexer/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pageindexer version %s\n", Version)
		},
	})

	rootCmd.AddCommand(newIndexCommand())
	rootCmd.AddCommand(newAutoIndexCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newSitemapsCommand())
	rootCmd.AddCommand(newSitesCommand())
	rootCmd.AddCommand(newWorkerCommand())
	rootCmd.AddCommand(newHTTPDCommand())
}
