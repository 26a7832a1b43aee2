package cleaner

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fenilsonani/duster/internal/progress"
	"github.com/fenilsonani/duster/internal/scanner"
	"github.com/fenilsonani/duster/internal/security"
)

// defaultRetryDelays are the pauses before retrying a path that is in use
var defaultRetryDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2 * time.Second,
}

// Target is a path selected for deletion together with what the scan saw
type Target struct {
	Path      string           `json:"path" yaml:"path"`
	Size      int64            `json:"size" yaml:"size"`
	IsDir     bool             `json:"is_dir" yaml:"is_dir"`
	IsSymlink bool             `json:"is_symlink,omitempty" yaml:"is_symlink,omitempty"`
	Category  scanner.Category `json:"category" yaml:"category"`
}

// TargetsFromItems converts scan items into deletion targets, keeping order
func TargetsFromItems(items []scanner.Item) []Target {
	targets := make([]Target, 0, len(items))
	for _, item := range items {
		targets = append(targets, Target{
			Path:      item.Path,
			Size:      item.Size,
			IsDir:     item.IsDir,
			IsSymlink: item.IsSymlink,
			Category:  item.Category,
		})
	}
	return targets
}

// Failure records one path that could not be deleted
type Failure struct {
	Path   string      `json:"path" yaml:"path"`
	Reason ErrorReason `json:"reason" yaml:"reason"`
	Detail string      `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Outcome summarizes one deletion batch
type Outcome struct {
	ScanID       string    `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`
	FromCache    bool      `json:"from_cache" yaml:"from_cache"`
	DryRun       bool      `json:"dry_run" yaml:"dry_run"`
	DeletedCount int       `json:"deleted_count" yaml:"deleted_count"`
	FreedBytes   int64     `json:"freed_bytes" yaml:"freed_bytes"`
	Failures     []Failure `json:"failures" yaml:"failures"`
	// Pending lists what a confirmed run would delete. Only set on dry runs.
	Pending      []Target  `json:"pending,omitempty" yaml:"pending,omitempty"`
	PendingBytes int64     `json:"pending_bytes,omitempty" yaml:"pending_bytes,omitempty"`
}

// PendingPaths returns the paths of Pending in order
func (o *Outcome) PendingPaths() []string {
	paths := make([]string, 0, len(o.Pending))
	for _, t := range o.Pending {
		paths = append(paths, t.Path)
	}
	return paths
}

// Fail records a failure for path
func (o *Outcome) Fail(path string, reason ErrorReason, err error) {
	f := Failure{Path: path, Reason: reason}
	if err != nil {
		f.Detail = err.Error()
	}
	o.Failures = append(o.Failures, f)
}

// Cleaner handles file deletion with safeguards
type Cleaner struct {
	validator        *security.PathValidator
	logger           zerolog.Logger
	progressReporter *progress.ProgressReporter
	retryDelays      []time.Duration
	sleep            func(time.Duration)
	remove           func(path string, dir bool) error
}

// Option configures a Cleaner
type Option func(*Cleaner)

// WithValidator replaces the default path validator
func WithValidator(v *security.PathValidator) Option {
	return func(c *Cleaner) { c.validator = v }
}

// WithLogger sets the logger used for per-path debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cleaner) { c.logger = logger }
}

// WithProgressReporter sets the reporter that receives clean progress
func WithProgressReporter(pr *progress.ProgressReporter) Option {
	return func(c *Cleaner) { c.progressReporter = pr }
}

// WithRetry overrides the retry schedule for paths that are in use and the
// function used to wait between attempts
func WithRetry(delays []time.Duration, sleep func(time.Duration)) Option {
	return func(c *Cleaner) {
		c.retryDelays = delays
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New creates a new Cleaner
func New(opts ...Option) *Cleaner {
	c := &Cleaner{
		validator:   security.NewPathValidator(),
		logger:      zerolog.Nop(),
		retryDelays: defaultRetryDelays,
		sleep:       time.Sleep,
		remove:      removePath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}


// Preview returns the outcome of a dry run: nothing is touched and every
// target is listed as pending
func (c *Cleaner) Preview(targets []Target) *Outcome {
	out := &Outcome{
		DryRun:   true,
		Failures: []Failure{},
		Pending:  append([]Target(nil), targets...),
	}
	for _, t := range targets {
		out.PendingBytes += t.Size
	}
	return out
}

// Clean deletes targets one at a time in order. A failing path is recorded
// and the batch continues. Freed bytes use the size recorded at scan time.
// Once ctx is done every remaining target is recorded as cancelled.
func (c *Cleaner) Clean(ctx context.Context, targets []Target) *Outcome {
	out := &Outcome{Failures: []Failure{}}

	var totalSize int64
	for _, t := range targets {
		totalSize += t.Size
	}

	start := time.Now()
	c.reportCleanProgress(progress.PhaseCleaning, "", out, len(targets), totalSize, start)

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			out.Fail(t.Path, ErrorCancelled, err)
			continue
		}

		c.reportCleanProgress(progress.PhaseCleaning, t.Path, out, len(targets), totalSize, start)

		if delErr := c.deleteWithRetry(ctx, t); delErr != nil {
			c.logger.Debug().
				Str("path", t.Path).
				Str("reason", delErr.Reason.String()).
				Err(delErr.Original).
				Msg("delete failed")
			out.Fail(t.Path, delErr.Reason, delErr.Original)
			continue
		}

		out.DeletedCount++
		out.FreedBytes += t.Size
	}

	c.reportCleanProgress(progress.PhaseComplete, "", out, len(targets), totalSize, start)
	return out
}

// deleteWithRetry retries paths that are in use following retryDelays
func (c *Cleaner) deleteWithRetry(ctx context.Context, t Target) *DeletionError {
	var lastErr *DeletionError

	for attempt := 0; ; attempt++ {
		lastErr = c.deleteOne(t)
		if lastErr == nil || !lastErr.Retryable || attempt >= len(c.retryDelays) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
		c.sleep(c.retryDelays[attempt])
	}
}

// deleteOne validates, re-stats and removes a single target
func (c *Cleaner) deleteOne(t Target) *DeletionError {
	if err := c.validator.ValidatePathForDeletion(t.Path); err != nil {
		return CategorizeError(t.Path, err)
	}

	// Lstat so a path swapped for a symlink is noticed instead of followed
	info, err := os.Lstat(t.Path)
	if err != nil {
		return CategorizeError(t.Path, err)
	}

	isDir := info.IsDir()
	isSymlink := info.Mode()&os.ModeSymlink != 0
	if isDir != t.IsDir || isSymlink != t.IsSymlink {
		return &DeletionError{Path: t.Path, Reason: ErrorTypeChanged}
	}

	if err := c.remove(t.Path, isDir); err != nil {
		return CategorizeError(t.Path, err)
	}
	return nil
}

func removePath(path string, dir bool) error {
	if dir {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

// reportCleanProgress reports clean progress to listeners
func (c *Cleaner) reportCleanProgress(phase progress.Phase, currentFile string, out *Outcome, totalFiles int, totalSize int64, startTime time.Time) {
	if c.progressReporter == nil {
		return
	}

	c.progressReporter.UpdateCleanProgress(&progress.CleanProgress{
		Phase:        phase,
		CurrentFile:  currentFile,
		DeletedFiles: out.DeletedCount,
		TotalFiles:   totalFiles,
		DeletedSize:  out.FreedBytes,
		TotalSize:    totalSize,
		ErrorCount:   len(out.Failures),
		StartTime:    startTime,
	})
}
