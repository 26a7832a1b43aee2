package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fenilsonani/duster/internal/cleaner"
	"github.com/fenilsonani/duster/internal/config"
	"github.com/fenilsonani/duster/internal/engine"
	"github.com/fenilsonani/duster/internal/logger"
	"github.com/fenilsonani/duster/internal/metrics"
	"github.com/fenilsonani/duster/internal/platform"
	"github.com/fenilsonani/duster/internal/progress"
	"github.com/fenilsonani/duster/internal/reporter"
	"github.com/fenilsonani/duster/internal/scancache"
	"github.com/fenilsonani/duster/internal/scanner"
	"github.com/fenilsonani/duster/internal/security"
)

// app is everything a command needs, built from config and flags
type app struct {
	cfg      *config.Config
	info     *platform.Info
	log      zerolog.Logger
	engine   *engine.Engine
	metrics  *metrics.Collector
	progress *progress.ProgressReporter
	reporter *reporter.Reporter
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{
		Level:   level,
		File:    config.ExpandHome(cfg.Log.File, homeDir()),
		Console: os.Stderr,
		NoColor: noColor || !isTerminal(os.Stderr),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	info, err := platform.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform info: %w", err)
	}

	format, err := selectedFormat()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		info:     info,
		log:      log,
		reporter: reporter.New(os.Stdout, format, reporter.WithNoColor(noColor)),
	}

	if metricsFile != "" {
		a.metrics = metrics.New()
	}
	if isTerminal(os.Stderr) && format != reporter.FormatJSON && format != reporter.FormatYAML {
		a.progress = progress.NewProgressReporter()
	}

	extraCaches := make([]string, 0, len(cfg.CachePaths))
	for _, p := range cfg.CachePaths {
		extraCaches = append(extraCaches, config.ExpandHome(p, info.HomeDir))
	}
	validator := security.NewPathValidator()
	for _, root := range info.ProtectedRoots(extraCaches...) {
		validator.AddProtectedRoot(root)
	}

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(a.metrics),
		engine.WithScanner(scanner.New(
			scanner.WithLogger(log),
			scanner.WithProgressReporter(a.progress),
		)),
		engine.WithCleaner(cleaner.New(
			cleaner.WithLogger(log),
			cleaner.WithValidator(validator),
			cleaner.WithProgressReporter(a.progress),
		)),
	}
	if store, err := scancache.Open(scancache.WithLogger(log)); err != nil {
		log.Warn().Err(err).Msg("scan cache unavailable")
	} else {
		opts = append(opts, engine.WithCache(store))
	}
	a.engine = engine.New(opts...)

	return a, nil
}

func (a *app) scanOptions() (scanner.Options, error) {
	ov, err := scanFlags.overrides()
	if err != nil {
		return scanner.Options{}, err
	}
	return a.cfg.ScanOptions(ov, a.info), nil
}

// finish flushes metrics once a command is done
func (a *app) finish() {
	if err := a.metrics.WriteTextfile(metricsFile); err != nil {
		a.log.Warn().Err(err).Msg("failed to write metrics")
	}
}

// watchProgress prints progress updates on stderr until the returned
// function is called
func (a *app) watchProgress() func() {
	if a.progress == nil {
		return func() {}
	}

	ch := a.progress.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range ch {
			var line string
			switch p := update.(type) {
			case *progress.ScanProgress:
				line = progress.FormatScanProgress(p)
			case *progress.CleanProgress:
				line = progress.FormatCleanProgress(p)
			default:
				continue
			}
			fmt.Fprintf(os.Stderr, "\r\033[K%s", line)
		}
		fmt.Fprint(os.Stderr, "\r\033[K")
	}()

	return func() {
		a.progress.Unsubscribe(ch)
		wg.Wait()
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	opts, err := a.scanOptions()
	if err != nil {
		return err
	}

	stop := a.watchProgress()
	result, err := a.engine.Scan(cmd.Context(), opts)
	stop()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := a.reporter.Report(result); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if outputFile != "" {
		format, err := selectedFormat()
		if err != nil {
			return err
		}
		if err := reporter.SaveToFile(result, outputFile, format); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	opts, err := a.scanOptions()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	stop := a.watchProgress()
	preview, err := a.engine.Clean(ctx, opts, args, false)
	stop()
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}

	if len(preview.Pending) == 0 || dryRun {
		return a.reporter.ReportOutcome(preview)
	}

	if !assumeYes {
		if err := a.reporter.ReportOutcome(preview); err != nil {
			return err
		}
		if !isTerminal(os.Stdin) {
			return errors.New("refusing to delete without confirmation: stdin is not a terminal, use --yes")
		}
		ok, err := confirm(os.Stdin, os.Stdout, fmt.Sprintf("\nDelete %d items? (y/N): ", len(preview.Pending)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stdout, "Cleanup cancelled")
			return nil
		}
	}

	stop = a.watchProgress()
	out, err := a.engine.Clean(ctx, opts, confirmedSelection(args, preview), true)
	stop()
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}
	return a.reporter.ReportOutcome(out)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	opts, err := a.scanOptions()
	if err != nil {
		return err
	}

	stop := a.watchProgress()
	analysis, err := a.engine.Analyze(cmd.Context(), opts)
	stop()
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}
	return a.reporter.ReportAnalysis(analysis)
}

func runSpace(cmd *cobra.Command, args []string) error {
	format, err := selectedFormat()
	if err != nil {
		return err
	}

	path := homeDir()
	if len(args) == 1 {
		path = args[0]
	}

	usage, err := engine.New().Space(cmd.Context(), path)
	if err != nil {
		return err
	}
	return reporter.New(os.Stdout, format, reporter.WithNoColor(noColor)).ReportSpace(usage)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := configPath
	if path == "" {
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "# %s\n", path)

	return toml.NewEncoder(os.Stdout).Encode(cfg)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(os.Stdout, "Config already exists at %s\n", configPath)
			return nil
		}
		if err := config.Save(config.GetDefault(), configPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", configPath)
		return nil
	}

	path, err := config.EnsureConfigExists()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Config at %s\n", path)
	return nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return config.GetDefault(), nil
		}
	}
	return config.Load(path)
}

// confirmedSelection pins a confirmed clean to what the preview listed. An
// empty selection would otherwise mean every item of whatever scan resolves
// after the prompt, which may be a new one.
func confirmedSelection(args []string, preview *cleaner.Outcome) []string {
	if len(args) > 0 {
		return args
	}
	return preview.PendingPaths()
}

func selectedFormat() (reporter.OutputFormat, error) {
	if jsonOutput {
		return reporter.FormatJSON, nil
	}
	return reporter.ParseFormat(outputFmt)
}

// confirm asks a yes/no question and defaults to no
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
