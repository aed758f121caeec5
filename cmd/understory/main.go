package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "understory",
	Short:         "Cross-language import discovery and resolution",
	Long:          "Understory walks a project tree, extracts import statements per language, resolves them against the scanned files, and reports the import graph.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path for persisting scans (default: none)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: .understory.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging to stderr")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
}
