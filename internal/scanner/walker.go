package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const maxWarnings = 500

// Walker performs a parallel recursive traversal of one or more roots.
// A Walker is single use: call Walk once, drain the channel, then read
// Warnings and Excluded.
type Walker struct {
	sem     chan struct{}
	exclude *ExcludeMatcher
	logger  zerolog.Logger

	mu       sync.Mutex
	warnings []Warning
	excluded []string
	dropped  int

	visited atomic.Int64
}

// NewWalker creates a walker with bounded concurrency
func NewWalker(workers int, exclude *ExcludeMatcher, logger zerolog.Logger) *Walker {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	return &Walker{
		sem:     make(chan struct{}, workers),
		exclude: exclude,
		logger:  logger,
	}
}

// Walk streams every entry under roots. Directories are emitted before
// their contents. Symlinks are reported with their own metadata and never
// followed. The channel is closed when the walk finishes or ctx is done.
func (w *Walker) Walk(ctx context.Context, roots ...string) <-chan Entry {
	out := make(chan Entry, 256)

	go func() {
		defer close(out)

		var wg sync.WaitGroup
		for _, root := range roots {
			root = filepath.Clean(root)
			if w.exclude.Match(root) {
				w.addExcluded(root)
				continue
			}

			info, err := os.Lstat(root)
			if err != nil {
				if os.IsNotExist(err) {
					w.logger.Debug().Str("root", root).Msg("walk root does not exist")
				} else {
					w.addWarning(newWarning(WarningWalk, root, err))
				}
				continue
			}

			entry := newEntry(root, info)
			if !w.emit(ctx, out, entry) {
				break
			}
			if entry.IsDir {
				wg.Add(1)
				go func(dir string) {
					defer wg.Done()
					w.walkDir(ctx, dir, out)
				}(root)
			}
		}
		wg.Wait()
	}()

	return out
}

// walkDir holds the semaphore only while reading the directory so nested
// goroutines never deadlock waiting for a slot held by their parent
func (w *Walker) walkDir(ctx context.Context, dir string, out chan<- Entry) {
	if ctx.Err() != nil {
		return
	}

	w.sem <- struct{}{}
	entries, err := os.ReadDir(dir)
	<-w.sem

	if err != nil {
		w.addWarning(newWarning(WarningWalk, dir, err))
		// ReadDir returns the entries read before the error
		if len(entries) == 0 {
			return
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for _, de := range entries {
		if ctx.Err() != nil {
			return
		}

		path := filepath.Join(dir, de.Name())
		w.visited.Add(1)

		if w.exclude.Match(path) {
			w.addExcluded(path)
			continue
		}

		info, err := de.Info()
		if err != nil {
			// vanished between ReadDir and stat, or unreadable
			w.addWarning(newWarning(WarningWalk, path, err))
			continue
		}

		entry := newEntry(path, info)
		if !w.emit(ctx, out, entry) {
			return
		}

		if entry.IsDir {
			wg.Add(1)
			go func(sub string) {
				defer wg.Done()
				w.walkDir(ctx, sub, out)
			}(path)
		}
	}
}

func (w *Walker) emit(ctx context.Context, out chan<- Entry, e Entry) bool {
	select {
	case out <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func newEntry(path string, info fs.FileInfo) Entry {
	mode := info.Mode()
	e := Entry{
		Path:       path,
		ModTime:    info.ModTime(),
		AccessTime: accessTime(info),
		IsDir:      mode.IsDir(),
		IsSymlink:  mode&fs.ModeSymlink != 0,
		id:         identity(info),
	}
	if !e.IsDir {
		e.Size = info.Size()
	}
	return e
}

func (w *Walker) addWarning(warn Warning) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.warnings) < maxWarnings {
		w.warnings = append(w.warnings, warn)
	} else {
		w.dropped++
	}
	w.logger.Debug().Str("path", warn.Path).Str("error", warn.Message).Msg("walk warning")
}

func (w *Walker) addExcluded(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.excluded = append(w.excluded, path)
}

// Warnings returns the warnings accumulated during the walk
func (w *Walker) Warnings() []Warning {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Warning(nil), w.warnings...)
}

// DroppedWarnings returns how many warnings exceeded the retained limit
func (w *Walker) DroppedWarnings() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Excluded returns the paths pruned by exclude patterns
func (w *Walker) Excluded() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.excluded...)
}

// Visited returns the number of entries read so far
func (w *Walker) Visited() int64 {
	return w.visited.Load()
}
