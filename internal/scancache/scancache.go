// Package scancache persists the most recent scan result so a clean that
// follows a scan with the same options can skip the walk.
//
// The cache is a single slot. Every store replaces the previous entry by
// writing a new file and renaming it over the old one, so a reader never
// sees a partially written result. Anything wrong with the slot (missing,
// corrupt, stale, different options) is a miss, never an error.
package scancache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/fenilsonani/duster/internal/scanner"
)

const (
	// Version is bumped whenever the stored layout changes
	Version = 1

	// MaxAge is how long a stored result stays reusable
	MaxAge = 5 * time.Minute

	fileName = "last_scan.json"
)

// Envelope is the on-disk layout of the cache slot
type Envelope struct {
	Version     int                 `json:"version"`
	Fingerprint string              `json:"fingerprint"`
	Timestamp   time.Time           `json:"timestamp"`
	Result      *scanner.ScanResult `json:"result"`
}

// Store is the single-slot scan cache
type Store struct {
	path   string
	maxAge time.Duration
	logger zerolog.Logger

	mu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger that receives cache misses at debug level
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMaxAge overrides the reuse window
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

// DefaultPath returns <user cache dir>/duster/last_scan.json
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(dir, "duster", fileName), nil
}

// New creates a store backed by the file at path
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		maxAge: MaxAge,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store at the default location
func Open(opts ...Option) (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return New(path, opts...), nil
}

// Path returns the file backing the slot
func (s *Store) Path() string {
	return s.path
}

// Store replaces the slot with result, stamped with now
func (s *Store) Store(result *scanner.ScanResult, now time.Time) error {
	if result == nil {
		return errors.New("nil scan result")
	}

	data, err := sonic.Marshal(Envelope{
		Version:     Version,
		Fingerprint: result.Fingerprint,
		Timestamp:   now,
		Result:      result,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal scan result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+fileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace cache: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Str("fingerprint", result.Fingerprint).
		Int("items", result.TotalCount).
		Msg("scan result cached")
	return nil
}

// Lookup returns the cached result when the slot holds a result for
// fingerprint stored no more than the reuse window before now
func (s *Store) Lookup(fingerprint string, now time.Time) (*scanner.ScanResult, bool) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.miss("unreadable", err)
		}
		return nil, false
	}

	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		s.miss("corrupt", err)
		return nil, false
	}

	switch {
	case env.Version != Version:
		s.miss("version mismatch", fmt.Errorf("stored %d, want %d", env.Version, Version))
		return nil, false
	case env.Result == nil:
		s.miss("corrupt", errors.New("empty result"))
		return nil, false
	case env.Fingerprint != fingerprint || env.Result.Fingerprint != fingerprint:
		s.logger.Debug().Str("stored", env.Fingerprint).Str("wanted", fingerprint).Msg("scan cache miss: different options")
		return nil, false
	}

	age := now.Sub(env.Timestamp)
	if age < 0 || age > s.maxAge {
		s.logger.Debug().Dur("age", age).Msg("scan cache miss: expired")
		return nil, false
	}

	s.logger.Debug().Dur("age", age).Str("id", env.Result.ID).Msg("scan cache hit")
	return env.Result, true
}

// Clear removes the slot
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear scan cache: %w", err)
	}
	return nil
}

func (s *Store) miss(reason string, err error) {
	s.logger.Debug().Err(err).Str("path", s.path).Msgf("scan cache miss: %s", reason)
}
