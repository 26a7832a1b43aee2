package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fenilsonani/duster/internal/progress"
)

// progressEvery is how many walked entries pass between progress updates
const progressEvery = 1000

// Scanner walks the filesystem and categorizes reclaimable space
type Scanner struct {
	logger           zerolog.Logger
	progressReporter *progress.ProgressReporter
	now              func() time.Time
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger used for debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithClock overrides the time source used for age calculations
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithProgressReporter sets the reporter that receives scan progress
func WithProgressReporter(pr *progress.ProgressReporter) Option {
	return func(s *Scanner) { s.progressReporter = pr }
}

// New creates a new Scanner
func New(opts ...Option) *Scanner {
	s := &Scanner{
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks the scan root and every requested location root and returns
// the categorized result. Invalid options fail before any filesystem work.
// Per-entry I/O problems are reported as warnings on the result; only
// cancellation aborts a running scan.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*ScanResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := time.Now()
	fingerprint := opts.Fingerprint()
	opts.Root = resolveRoots([]string{opts.Root})[0]

	c := newCategorizer(opts, now, s.logger)
	roots := c.walkRoots()
	var seen int64
	c.onPhase = func(phase progress.Phase) {
		s.reportProgress(phase, "", seen, nil, start)
	}

	s.logger.Debug().
		Strs("roots", roots).
		Str("categories", fmt.Sprint(opts.Categories)).
		Msg("starting scan")

	walker := NewWalker(opts.Workers, NewExcludeMatcher(opts.Exclude), s.logger)

	for entry := range walker.Walk(ctx, roots...) {
		c.observe(entry)
		seen++
		if seen%progressEvery == 0 {
			s.reportProgress(progress.PhaseWalking, entry.Path, walker.Visited(), nil, start)
		}
	}
	if err := ctx.Err(); err != nil {
		s.reportError(err, start)
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	c.exclude(walker.Excluded())

	s.reportProgress(progress.PhaseAnalyzing, "", seen, nil, start)

	result := &ScanResult{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		CreatedAt:   now,
		Root:        opts.Root,
		Categories:  opts.Categories,
		Items:       []Item{},
	}

	if err := c.result(ctx, result); err != nil {
		s.reportError(err, start)
		return nil, fmt.Errorf("failed to categorize entries: %w", err)
	}

	result.EntriesScanned = seen
	result.Warnings = append(walker.Warnings(), c.warnings...)
	sort.SliceStable(result.Warnings, func(i, j int) bool {
		if result.Warnings[i].Kind != result.Warnings[j].Kind {
			return result.Warnings[i].Kind > result.Warnings[j].Kind
		}
		return result.Warnings[i].Path < result.Warnings[j].Path
	})

	if dropped := walker.DroppedWarnings(); dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("too many walk warnings, some were not recorded")
	}

	s.logger.Debug().
		Int("items", result.TotalCount).
		Int64("bytes", result.TotalSize).
		Int("warnings", len(result.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("scan finished")

	s.reportProgress(progress.PhaseComplete, "", seen, result, start)
	return result, nil
}

func (s *Scanner) reportProgress(phase progress.Phase, path string, entries int64, result *ScanResult, start time.Time) {
	if s.progressReporter == nil {
		return
	}
	update := &progress.ScanProgress{
		Phase:       phase,
		CurrentPath: path,
		Entries:     entries,
		StartTime:   start,
	}
	if result != nil {
		update.ItemsFound = result.TotalCount
		update.TotalSize = result.TotalSize
	}
	s.progressReporter.UpdateScanProgress(update)
}

func (s *Scanner) reportError(err error, start time.Time) {
	if s.progressReporter == nil {
		return
	}
	s.progressReporter.UpdateScanProgress(&progress.ScanProgress{
		Phase:     progress.PhaseError,
		StartTime: start,
		Error:     err,
	})
}

// resolveRoots replaces roots that are themselves symlinks with their
// targets so the walker can descend into them. Deeper components are left
// alone to keep reported paths as the user wrote them.
func resolveRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if info, err := os.Lstat(r); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if resolved, err := filepath.EvalSymlinks(r); err == nil {
				r = resolved
			}
		}
		out = append(out, r)
	}
	return out
}
