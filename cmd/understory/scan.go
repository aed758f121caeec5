package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/understory"
	"github.com/jward/understory/internal/config"
)

var (
	flagIgnore      []string
	flagSampleLimit int
	flagMaxFiles    int
	flagWorkers     int
	flagSourceRoots []string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a project tree and report its import graph",
	Long:  "Walks the tree, classifies files, extracts import statements, resolves them against the scanned file set, and prints the aggregated report.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&flagIgnore, "ignore", nil, "ignore globs (replaces defaults)")
	scanCmd.Flags().IntVar(&flagSampleLimit, "sample-limit", 0, "cap on sample lists in the report (0: default, negative: unlimited)")
	scanCmd.Flags().IntVar(&flagMaxFiles, "max-files", 0, "max importable files to content-scan (0: unlimited)")
	scanCmd.Flags().IntVar(&flagWorkers, "workers", 0, "extraction worker count (0: NumCPU)")
	scanCmd.Flags().StringSliceVar(&flagSourceRoots, "source-roots", nil, "source-root aliases for absolute imports (replaces defaults)")
}

func runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()

	root, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	cfg, warnings := config.Load(flagConfig)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	applyFlagOverrides(cmd, cfg)

	logger := newLogger()
	opts := []understory.Option{
		understory.WithIgnorePatterns(cfg.IgnorePatterns...),
		understory.WithSourceRoots(cfg.SourceRoots...),
		understory.WithSampleLimit(cfg.SampleLimit),
		understory.WithMaxFilesToInspect(cfg.MaxFiles),
		understory.WithWorkers(cfg.Workers),
		understory.WithLogger(logger),
	}

	if flagDB != "" {
		store, err := understory.NewStore(flagDB)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()
		opts = append(opts, understory.WithStore(store))
	}

	engine := understory.New(opts...)
	rep, err := engine.Scan(context.Background(), root)
	if err != nil {
		return err
	}

	if err := outputReport(os.Stdout, rep, flagFormat); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Scanned %s in %s (%d files, %d importable)\n",
		root, time.Since(start).Round(time.Millisecond),
		rep.TotalFiles, rep.ImportableFiles)
	return nil
}

// applyFlagOverrides lets explicitly set flags beat config-file values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("ignore") {
		cfg.IgnorePatterns = flagIgnore
	}
	if cmd.Flags().Changed("source-roots") {
		cfg.SourceRoots = flagSourceRoots
	}
	if cmd.Flags().Changed("sample-limit") {
		cfg.SampleLimit = flagSampleLimit
	}
	if cmd.Flags().Changed("max-files") {
		cfg.MaxFiles = flagMaxFiles
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flagWorkers
	}
}

func newLogger() *slog.Logger {
	if flagVerbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// resolveTargetDir returns the absolute path of the directory to scan.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	return abs, nil
}
