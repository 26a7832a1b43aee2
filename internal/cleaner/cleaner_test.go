package cleaner

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/duster/internal/progress"
	"github.com/fenilsonani/duster/internal/scanner"
	"github.com/fenilsonani/duster/internal/testutil"
)

func fileTarget(path string, size int64) Target {
	return Target{Path: path, Size: size, Category: scanner.CategoryOld}
}

func dirTarget(path string, size int64) Target {
	return Target{Path: path, Size: size, IsDir: true, Category: scanner.CategoryBuild}
}

func noSleep(time.Duration) {}

// =============================================================================
// Deletion
// =============================================================================

func TestCleanDeletesFilesAndDirectories(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateSizedFile("home/a.txt", 10, 0)
	f.CreateSizedFile("home/proj/node_modules/x/index.js", 100, 0)
	f.CreateSizedFile("home/proj/node_modules/y/index.js", 200, 0)
	dir := f.Path("home/proj/node_modules")

	out := New().Clean(context.Background(), []Target{
		fileTarget(file, 10),
		dirTarget(dir, 300),
	})

	assert.Equal(t, 2, out.DeletedCount)
	assert.Equal(t, int64(310), out.FreedBytes)
	assert.Empty(t, out.Failures)
	assert.False(t, out.DryRun)
	f.AssertFileNotExists(file)
	f.AssertFileNotExists(dir)
	f.AssertFileExists("home/proj")
}

func TestCleanUsesRecordedSize(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateSizedFile("home/grew.log", 5000, 0)

	out := New().Clean(context.Background(), []Target{fileTarget(file, 42)})

	assert.Equal(t, 1, out.DeletedCount)
	assert.Equal(t, int64(42), out.FreedBytes)
}

func TestCleanMissingPathIsNotFound(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateSizedFile("home/a.txt", 10, 0)
	gone := f.CreateSizedFile("home/gone.txt", 20, 0)
	c := f.CreateSizedFile("home/c.txt", 30, 0)
	require.NoError(t, os.Remove(gone))

	out := New().Clean(context.Background(), []Target{
		fileTarget(a, 10),
		fileTarget(gone, 20),
		fileTarget(c, 30),
	})

	assert.Equal(t, 2, out.DeletedCount, "a missing path must not abort the batch")
	assert.Equal(t, int64(40), out.FreedBytes)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, gone, out.Failures[0].Path)
	assert.Equal(t, ErrorNotFound, out.Failures[0].Reason)
}

func TestCleanTwiceIsIdempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	targets := []Target{
		fileTarget(f.CreateSizedFile("home/a.txt", 10, 0), 10),
		dirTarget(f.CreateDir("home/cache/blob"), 0),
	}

	c := New()
	first := c.Clean(context.Background(), targets)
	require.Equal(t, 2, first.DeletedCount)

	second := c.Clean(context.Background(), targets)
	assert.Zero(t, second.DeletedCount)
	assert.Zero(t, second.FreedBytes)
	require.Len(t, second.Failures, 2)
	for _, failure := range second.Failures {
		assert.Equal(t, ErrorNotFound, failure.Reason)
	}
}

func TestCleanTypeChanged(t *testing.T) {
	testutil.SkipOnWindows(t)
	f := testutil.NewFixture(t)

	// scanned as a file, now a directory
	nowDir := f.CreateDir("home/was-file")
	// scanned as a directory, now a symlink to one
	target := f.CreateDir("home/real")
	link := f.CreateSymlink(target, "home/was-dir")

	out := New().Clean(context.Background(), []Target{
		fileTarget(nowDir, 1),
		dirTarget(link, 1),
	})

	assert.Zero(t, out.DeletedCount)
	require.Len(t, out.Failures, 2)
	for _, failure := range out.Failures {
		assert.Equal(t, ErrorTypeChanged, failure.Reason)
	}
	f.AssertFileExists(nowDir)
	f.AssertFileExists(target)
}

func TestCleanSymlinkRemovesLinkOnly(t *testing.T) {
	testutil.SkipOnWindows(t)
	f := testutil.NewFixture(t)
	target := f.CreateSizedFile("home/keep/data.bin", 10, 0)
	link := f.CreateSymlink(target, "tmp/link")

	out := New().Clean(context.Background(), []Target{
		{Path: link, IsSymlink: true, Category: scanner.CategoryTemp},
	})

	assert.Equal(t, 1, out.DeletedCount)
	f.AssertFileNotExists(link)
	f.AssertFileExists(target)
}

func TestCleanProtectedPath(t *testing.T) {
	out := New().Clean(context.Background(), []Target{
		dirTarget("/usr", 0),
		fileTarget("relative.txt", 0),
	})

	assert.Zero(t, out.DeletedCount)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, ErrorProtectedPath, out.Failures[0].Reason)
	assert.Equal(t, ErrorProtectedPath, out.Failures[1].Reason)
}

func TestCleanPermissionDenied(t *testing.T) {
	testutil.SkipIfRoot(t)
	f := testutil.NewFixture(t)
	file := f.CreateSizedFile("home/locked/a.txt", 10, 0)
	other := f.CreateSizedFile("home/b.txt", 10, 0)

	locked := f.Path("home/locked")
	require.NoError(t, os.Chmod(locked, 0555))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	out := New().Clean(context.Background(), []Target{fileTarget(file, 10), fileTarget(other, 10)})

	assert.Equal(t, 1, out.DeletedCount)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, file, out.Failures[0].Path)
	assert.Equal(t, ErrorPermissionDenied, out.Failures[0].Reason)
	f.AssertFileExists(file)
}

func TestCleanCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateSizedFile("home/a.txt", 10, 0)
	b := f.CreateSizedFile("home/b.txt", 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New().Clean(ctx, []Target{fileTarget(a, 10), fileTarget(b, 10)})

	assert.Zero(t, out.DeletedCount)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, ErrorCancelled, out.Failures[0].Reason)
	f.AssertFileExists(a)
	f.AssertFileExists(b)
}

// =============================================================================
// Retry
// =============================================================================

func TestCleanRetriesBusyPaths(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateSizedFile("home/busy.db", 10, 0)

	var slept []time.Duration
	c := New(WithRetry([]time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, func(d time.Duration) {
		slept = append(slept, d)
	}))

	attempts := 0
	c.remove = func(path string, dir bool) error {
		attempts++
		if attempts < 3 {
			return &os.PathError{Op: "remove", Path: path, Err: syscall.EBUSY}
		}
		return removePath(path, dir)
	}

	out := c.Clean(context.Background(), []Target{fileTarget(file, 10)})

	assert.Equal(t, 1, out.DeletedCount)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, slept)
}

func TestCleanGivesUpOnPersistentlyBusyPath(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateSizedFile("home/busy.db", 10, 0)

	c := New(WithRetry([]time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}, noSleep))
	attempts := 0
	c.remove = func(path string, dir bool) error {
		attempts++
		return &os.PathError{Op: "remove", Path: path, Err: syscall.EBUSY}
	}

	out := c.Clean(context.Background(), []Target{fileTarget(file, 10)})

	assert.Equal(t, 4, attempts, "one attempt plus one per retry delay")
	require.Len(t, out.Failures, 1)
	assert.Equal(t, ErrorFileInUse, out.Failures[0].Reason)
	assert.NotEmpty(t, out.Failures[0].Detail)
}

func TestCleanDoesNotRetryPermanentErrors(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateSizedFile("home/x.txt", 10, 0)

	c := New(WithRetry(defaultRetryDelays, func(time.Duration) {
		t.Fatal("permanent errors must not be retried")
	}))
	c.remove = func(path string, dir bool) error {
		return &os.PathError{Op: "remove", Path: path, Err: syscall.EACCES}
	}

	out := c.Clean(context.Background(), []Target{fileTarget(file, 10)})
	require.Len(t, out.Failures, 1)
	assert.Equal(t, ErrorPermissionDenied, out.Failures[0].Reason)
}

// =============================================================================
// Preview and Progress
// =============================================================================

func TestPreviewTouchesNothing(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateSizedFile("home/a.txt", 10, 0)
	b := f.CreateSizedFile("home/b.txt", 20, 0)

	out := New().Preview([]Target{fileTarget(a, 10), fileTarget(b, 20)})

	assert.True(t, out.DryRun)
	assert.Zero(t, out.DeletedCount)
	assert.Zero(t, out.FreedBytes)
	assert.Len(t, out.Pending, 2)
	assert.Equal(t, int64(30), out.PendingBytes)
	f.AssertFileExists(a)
	f.AssertFileExists(b)
}

func TestTargetsFromItems(t *testing.T) {
	items := []scanner.Item{
		{Entry: scanner.Entry{Path: "/b", Size: 2, IsDir: true}, Category: scanner.CategoryCache},
		{Entry: scanner.Entry{Path: "/a", Size: 1, IsSymlink: true}, Category: scanner.CategoryTemp},
	}

	targets := TargetsFromItems(items)
	require.Len(t, targets, 2)
	assert.Equal(t, Target{Path: "/b", Size: 2, IsDir: true, Category: scanner.CategoryCache}, targets[0])
	assert.Equal(t, Target{Path: "/a", Size: 1, IsSymlink: true, Category: scanner.CategoryTemp}, targets[1])
}

func TestCleanReportsProgress(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateSizedFile("home/a.txt", 10, 0)

	pr := progress.NewProgressReporter()
	out := New(WithProgressReporter(pr)).Clean(context.Background(), []Target{
		fileTarget(a, 10),
		fileTarget(f.Path("home/missing"), 5),
	})
	require.Equal(t, 1, out.DeletedCount)

	last := pr.GetCleanProgress()
	require.NotNil(t, last)
	assert.Equal(t, progress.PhaseComplete, last.Phase)
	assert.Equal(t, 1, last.DeletedFiles)
	assert.Equal(t, 2, last.TotalFiles)
	assert.Equal(t, int64(10), last.DeletedSize)
	assert.Equal(t, 1, last.ErrorCount)
}
