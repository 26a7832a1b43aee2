package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPath is returned for paths that are malformed rather than
	// protected
	ErrInvalidPath = errors.New("invalid path")
	// ErrProtectedPath is returned for paths that must never be deleted
	ErrProtectedPath = errors.New("protected path")
)

// PathValidator handles secure path validation for file operations
type PathValidator struct {
	// systemPaths are refused along with their direct children
	systemPaths []string
	// roots are refused only on exact match, their contents stay deletable
	roots map[string]bool
}

// NewPathValidator creates a new PathValidator with default protected paths
func NewPathValidator() *PathValidator {
	pv := &PathValidator{
		systemPaths: []string{
			// Unix system directories
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/root",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
			// macOS system directories
			"/System",
			"/Applications",
			"/Library/System",
			"/private/var",
		},
		roots: make(map[string]bool),
	}
	pv.AddProtectedRoot("/tmp")
	pv.AddProtectedRoot("/private/tmp")
	if home, err := os.UserHomeDir(); err == nil {
		pv.AddProtectedRoot(home)
	}
	return pv
}

// ValidatePathForDeletion checks a path immediately before it is deleted.
//
// Only the parent directory is resolved: the final component is what gets
// removed, so a symlink item is deleted as a link and its target is never
// touched. Resolving the parent still catches a directory that was swapped
// for a symlink into a protected tree after the scan.
func (pv *PathValidator) ValidatePathForDeletion(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: path must be absolute: %s", ErrInvalidPath, path)
	}
	if filepath.Clean(path) != path {
		return fmt.Errorf("%w: path contains suspicious elements: %s", ErrInvalidPath, path)
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		return fmt.Errorf("%w: path contains control characters: %q", ErrInvalidPath, path)
	}

	if err := pv.checkProtectedPaths(path); err != nil {
		return err
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		if os.IsNotExist(err) {
			// the caller reports a vanished path on its own
			return nil
		}
		return fmt.Errorf("failed to resolve parent directory: %w", err)
	}

	return pv.checkProtectedPaths(filepath.Join(parent, filepath.Base(path)))
}

// checkProtectedPaths validates that a path is not in a protected system directory
func (pv *PathValidator) checkProtectedPaths(cleanPath string) error {
	if pv.roots[cleanPath] {
		return fmt.Errorf("%w: refusing to delete %s", ErrProtectedPath, cleanPath)
	}

	for _, protected := range pv.systemPaths {
		if cleanPath == protected {
			return fmt.Errorf("%w: refusing to delete %s", ErrProtectedPath, cleanPath)
		}

		// Direct children are critical too: /usr/lib vs /usr/local/share/cache
		if strings.HasPrefix(cleanPath, strings.TrimSuffix(protected, "/")+"/") {
			rel, _ := filepath.Rel(protected, cleanPath)
			if !strings.Contains(rel, "/") {
				return fmt.Errorf("%w: refusing to delete critical system path %s", ErrProtectedPath, cleanPath)
			}
		}
	}

	return nil
}

// AddProtectedRoot protects a well-known root such as a trash or cache
// directory. The root itself is refused but its contents are not.
func (pv *PathValidator) AddProtectedRoot(path string) {
	if path == "" {
		return
	}
	pv.roots[filepath.Clean(path)] = true
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		pv.roots[resolved] = true
	}
}

// ValidateGlobPattern validates that a glob pattern is safe
func ValidateGlobPattern(pattern string) error {
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}

	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}

	return nil
}
