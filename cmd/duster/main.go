package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath  string
	verbose     bool
	noColor     bool
	outputFmt   string
	jsonOutput  bool
	metricsFile string
	outputFile  string
	assumeYes   bool
	dryRun      bool
	scanFlags   scanFlagSet
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "duster",
	Short: "Find and remove reclaimable disk space",
	Long: `Duster finds caches, trash, stale temp files and downloads, inactive build
artifacts, large files, duplicates and long-unused files, and removes the ones
you choose. Build artifacts of projects you worked on recently are left alone.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for reclaimable space",
	Long:  `Scans and reports what can be cleaned without making any changes. The result is kept for five minutes so a following clean with the same options does not walk again.`,
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var cleanCmd = &cobra.Command{
	Use:   "clean [path...]",
	Short: "Delete what a scan found",
	Long: `Deletes items of a scan. Without paths every item of the scan is deleted;
with paths only those items are. A scan with the same options from the last
five minutes is reused, otherwise a new scan runs first. The items are listed
and must be confirmed unless --yes is given.`,
	RunE: runClean,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Show reclaimable space per category",
	Args:  cobra.NoArgs,
	RunE:  runAnalyze,
}

var spaceCmd = &cobra.Command{
	Use:   "space [path]",
	Short: "Show total and free space of a filesystem",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSpace,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file if none exists",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file path")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.StringVar(&outputFmt, "format", "summary", "output format (summary, table, json, yaml)")
	pf.BoolVar(&jsonOutput, "json", false, "shorthand for --format json")
	pf.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")

	for _, cmd := range []*cobra.Command{scanCmd, cleanCmd, analyzeCmd} {
		scanFlags.register(cmd)
	}

	scanCmd.Flags().StringVar(&outputFile, "output", "", "also save the report to this file")
	cleanCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "delete without asking for confirmation")
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list what would be deleted")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(scanCmd, cleanCmd, analyzeCmd, spaceCmd, configCmd)
}
