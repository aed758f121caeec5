package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/understory"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the most recent persisted scan report",
	Long:  "Reads the latest scan from the SQLite database written by `understory scan --db` and prints its report without rescanning.",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	if flagDB == "" {
		return errors.New("report requires --db")
	}

	store, err := understory.NewStore(flagDB)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	rep, err := store.LatestReport()
	if err != nil {
		return fmt.Errorf("loading latest scan: %w", err)
	}
	return outputReport(os.Stdout, rep, flagFormat)
}
