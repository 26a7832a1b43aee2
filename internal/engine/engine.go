// Package engine ties the scanner, scan cache and cleaner together behind
// the operations exposed to the command line.
package engine

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/fenilsonani/duster/internal/cleaner"
	"github.com/fenilsonani/duster/internal/metrics"
	"github.com/fenilsonani/duster/internal/scancache"
	"github.com/fenilsonani/duster/internal/scanner"
	"github.com/fenilsonani/duster/internal/space"
)

// largestShown is how many items Analyze lists as the largest
const largestShown = 10

// ErrNotInScanResult is recorded for selected paths the scan did not report
var ErrNotInScanResult = errors.New("path is not part of the scan result")

// Engine runs scans and cleans
type Engine struct {
	scanner *scanner.Scanner
	cleaner *cleaner.Cleaner
	cache   *scancache.Store
	metrics *metrics.Collector
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithScanner replaces the default scanner
func WithScanner(s *scanner.Scanner) Option {
	return func(e *Engine) { e.scanner = s }
}

// WithCleaner replaces the default cleaner
func WithCleaner(c *cleaner.Cleaner) Option {
	return func(e *Engine) { e.cleaner = c }
}

// WithCache sets the scan cache. Without one every clean walks again.
func WithCache(store *scancache.Store) Option {
	return func(e *Engine) { e.cache = store }
}

// WithMetrics sets the collector that records scans and cleans
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source used for cache freshness
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scanner == nil {
		e.scanner = scanner.New(scanner.WithLogger(e.logger))
	}
	if e.cleaner == nil {
		e.cleaner = cleaner.New(cleaner.WithLogger(e.logger))
	}
	return e
}

// Analysis is the per-category view of a scan
type Analysis struct {
	Result     *scanner.ScanResult     `json:"-" yaml:"-"`
	Root       string                  `json:"root" yaml:"root"`
	Breakdown  []scanner.CategoryTotal `json:"breakdown" yaml:"breakdown"`
	TotalSize  int64                   `json:"total_size" yaml:"total_size"`
	TotalCount int                     `json:"total_count" yaml:"total_count"`
	Largest    []scanner.Item          `json:"largest" yaml:"largest"`
	Warnings   int                     `json:"warnings" yaml:"warnings"`
}

// Scan always walks the filesystem and replaces the cached result
func (e *Engine) Scan(ctx context.Context, opts scanner.Options) (*scanner.ScanResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.scanner.Scan(ctx, opts)
	if err != nil {
		e.metrics.ObserveScan(nil, time.Since(start))
		return nil, err
	}
	e.metrics.ObserveScan(result, time.Since(start))

	if e.cache != nil {
		if err := e.cache.Store(result, e.now()); err != nil {
			e.logger.Warn().Err(err).Msg("failed to cache scan result")
		}
	}
	return result, nil
}

// Analyze scans and groups the result by category
func (e *Engine) Analyze(ctx context.Context, opts scanner.Options) (*Analysis, error) {
	result, err := e.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}

	largest := result.SortedBySize()
	if len(largest) > largestShown {
		largest = largest[:largestShown]
	}

	return &Analysis{
		Result:     result,
		Root:       result.Root,
		Breakdown:  result.Breakdown(),
		TotalSize:  result.TotalSize,
		TotalCount: result.TotalCount,
		Largest:    largest,
		Warnings:   len(result.Warnings),
	}, nil
}

// Clean deletes the selected paths of a scan. The scan is taken from the
// cache when a result for the same options is fresh enough, otherwise a new
// walk runs. An empty selection means every item of the scan. Without
// confirm nothing is deleted and the outcome lists the pending targets.
func (e *Engine) Clean(ctx context.Context, opts scanner.Options, selected []string, confirm bool) (*cleaner.Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	result, fromCache, err := e.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	targets, missing := selectTargets(result, selected)

	var out *cleaner.Outcome
	if confirm {
		out = e.cleaner.Clean(ctx, targets)
	} else {
		out = e.cleaner.Preview(targets)
	}

	if len(missing) > 0 {
		failures := make([]cleaner.Failure, 0, len(missing)+len(out.Failures))
		for _, path := range missing {
			failures = append(failures, cleaner.Failure{
				Path:   path,
				Reason: cleaner.ErrorNotInScanResult,
				Detail: ErrNotInScanResult.Error(),
			})
		}
		out.Failures = append(failures, out.Failures...)
	}

	out.ScanID = result.ID
	out.FromCache = fromCache
	e.metrics.ObserveClean(out)

	e.logger.Info().
		Str("scan_id", result.ID).
		Bool("from_cache", fromCache).
		Bool("dry_run", out.DryRun).
		Int("deleted", out.DeletedCount).
		Int64("freed", out.FreedBytes).
		Int("failures", len(out.Failures)).
		Msg("clean finished")
	return out, nil
}

// Space reports capacity of the filesystem containing path
func (e *Engine) Space(ctx context.Context, path string) (*space.Usage, error) {
	return space.Query(ctx, path)
}

// resolve returns a fresh cached scan for opts or runs a new one
func (e *Engine) resolve(ctx context.Context, opts scanner.Options) (*scanner.ScanResult, bool, error) {
	if e.cache != nil {
		result, ok := e.cache.Lookup(opts.Fingerprint(), e.now())
		e.metrics.ObserveCacheLookup(ok)
		if ok {
			return result, true, nil
		}
	}

	result, err := e.Scan(ctx, opts)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

// selectTargets maps the selection onto scan items. Paths the scan did not
// report are returned separately in selection order.
func selectTargets(result *scanner.ScanResult, selected []string) ([]cleaner.Target, []string) {
	if len(selected) == 0 {
		return cleaner.TargetsFromItems(result.Items), nil
	}

	seen := make(map[string]bool, len(selected))
	var items []scanner.Item
	var missing []string
	for _, raw := range selected {
		path, err := filepath.Abs(raw)
		if err != nil {
			path = filepath.Clean(raw)
		}
		if seen[path] {
			continue
		}
		seen[path] = true

		item, ok := result.Find(path)
		if !ok {
			// The scan reports paths below the resolved root
			if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
				item, ok = result.Find(filepath.Join(dir, filepath.Base(path)))
			}
		}
		if !ok {
			missing = append(missing, path)
			continue
		}
		items = append(items, item)
	}
	return cleaner.TargetsFromItems(items), missing
}
