// Package testutil provides test helpers and fixtures for duster tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const Day = 24 * time.Hour

// TestFixture holds paths to test directories and files
type TestFixture struct {
	T       *testing.T
	RootDir string // Root temp directory (auto-cleaned)

	// HomeDir is the scan root; the location directories live beside it
	// so tests control exactly which roots apply
	HomeDir      string
	TrashDir     string
	CacheDir     string
	TempDir      string
	DownloadsDir string
}

// NewFixture creates a new test fixture with standard directory structure
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root := t.TempDir()

	f := &TestFixture{
		T:            t,
		RootDir:      root,
		HomeDir:      filepath.Join(root, "home"),
		TrashDir:     filepath.Join(root, "trash"),
		CacheDir:     filepath.Join(root, "cache"),
		TempDir:      filepath.Join(root, "tmp"),
		DownloadsDir: filepath.Join(root, "downloads"),
	}

	for _, dir := range []string{f.HomeDir, f.TrashDir, f.CacheDir, f.TempDir, f.DownloadsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	return f
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := f.Path(relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateFileWithAge creates a file whose access and modification times lie
// age in the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	f.SetAge(fullPath, age)
	return fullPath
}

// CreateFileWithTimes creates a file with independent access and
// modification ages
func (f *TestFixture) CreateFileWithTimes(relPath string, content []byte, accessAge, modAge time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	now := time.Now()
	if err := os.Chtimes(fullPath, now.Add(-accessAge), now.Add(-modAge)); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateSizedFile creates a zero-filled file of size bytes with the given age
func (f *TestFixture) CreateSizedFile(relPath string, size int, age time.Duration) string {
	f.T.Helper()
	return f.CreateFileWithAge(relPath, make([]byte, size), age)
}

// CreateRandomFile creates a file with random content
func (f *TestFixture) CreateRandomFile(relPath string, size int, age time.Duration) string {
	f.T.Helper()
	content := make([]byte, size)
	if _, err := rand.Read(content); err != nil {
		f.T.Fatalf("failed to generate content: %v", err)
	}
	return f.CreateFileWithAge(relPath, content, age)
}

// SetAge moves the access and modification times of path age into the past
func (f *TestFixture) SetAge(path string, age time.Duration) {
	f.T.Helper()

	oldTime := time.Now().Add(-age)
	if err := os.Chtimes(path, oldTime, oldTime); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", path, err)
	}
}

// =============================================================================
// Directory Helpers
// =============================================================================

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := f.Path(relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateUnreadableDir creates a directory without read permission. The
// permission is restored on cleanup so t.TempDir can remove it.
func (f *TestFixture) CreateUnreadableDir(relPath string) string {
	f.T.Helper()

	fullPath := f.CreateDir(relPath)
	if err := os.Chmod(fullPath, 0000); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", fullPath, err)
	}
	f.T.Cleanup(func() {
		os.Chmod(fullPath, 0755)
	})

	return fullPath
}

// CreateProject creates a project directory with a manifest marker. Every
// file created is aged by age.
func (f *TestFixture) CreateProject(relPath, marker string, age time.Duration) string {
	f.T.Helper()

	dir := f.CreateDir(relPath)
	f.CreateFileWithAge(filepath.Join(relPath, marker), []byte("{}\n"), age)
	f.CreateFileWithAge(filepath.Join(relPath, "src", "main.js"), []byte("console.log('hi')\n"), age)
	return dir
}

// =============================================================================
// Symlink Helpers
// =============================================================================

// CreateSymlink creates a symbolic link at linkPath pointing to target
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := f.Path(linkPath)
	if err := os.MkdirAll(filepath.Dir(fullLinkPath), 0755); err != nil {
		f.T.Fatalf("failed to create directory for symlink: %v", err)
	}
	if err := os.Symlink(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// CreateHardlink creates a second name at linkPath for the file at target
func (f *TestFixture) CreateHardlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := f.Path(linkPath)
	if err := os.MkdirAll(filepath.Dir(fullLinkPath), 0755); err != nil {
		f.T.Fatalf("failed to create directory for hard link: %v", err)
	}
	if err := os.Link(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create hard link %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// CreateBrokenSymlink creates a symlink pointing to a non-existent target
func (f *TestFixture) CreateBrokenSymlink(linkPath string) string {
	f.T.Helper()
	return f.CreateSymlink(filepath.Join(f.RootDir, "does-not-exist"), linkPath)
}

// =============================================================================
// Path Helpers
// =============================================================================

// Path returns the absolute path for a path relative to RootDir
func (f *TestFixture) Path(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(f.RootDir, relPath)
}

// FileExists checks if a file exists
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(f.Path(path))
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected file to not exist: %s", path)
	}
}

// =============================================================================
// Environment Helpers
// =============================================================================

// IsRoot reports whether tests are running as root
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips tests that rely on permission errors
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test that requires non-root user")
	}
}

// SkipOnWindows skips tests that depend on POSIX permissions or symlinks
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on windows")
	}
}

// IsMacOS returns true if running on macOS
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// IsLinux returns true if running on Linux
func IsLinux() bool {
	return runtime.GOOS == "linux"
}
