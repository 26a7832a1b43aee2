package scanner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/duster/internal/testutil"
)

func collect(t *testing.T, w *Walker, roots ...string) map[string]Entry {
	t.Helper()
	got := make(map[string]Entry)
	for e := range w.Walk(context.Background(), roots...) {
		if _, dup := got[e.Path]; dup {
			t.Fatalf("entry %s emitted twice", e.Path)
		}
		got[e.Path] = e
	}
	return got
}

func TestWalkerVisitsEverything(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateSizedFile("home/a.txt", 10, 0)
	f.CreateSizedFile("home/sub/b.txt", 20, 0)
	f.CreateSizedFile("home/sub/deeper/c.txt", 30, 0)
	f.CreateDir("home/empty")

	w := NewWalker(2, nil, zerolog.Nop())
	got := collect(t, w, f.HomeDir)

	for _, rel := range []string{"home", "home/a.txt", "home/sub", "home/sub/b.txt", "home/sub/deeper", "home/sub/deeper/c.txt", "home/empty"} {
		assert.Contains(t, got, f.Path(rel))
	}
	assert.Len(t, got, 7)

	assert.True(t, got[f.Path("home/sub")].IsDir)
	assert.Zero(t, got[f.Path("home/sub")].Size, "directory entries carry no size")
	assert.Equal(t, int64(30), got[f.Path("home/sub/deeper/c.txt")].Size)
	assert.Equal(t, int64(6), w.Visited())
	assert.Empty(t, w.Warnings())
}

func TestWalkerDoesNotFollowSymlinks(t *testing.T) {
	testutil.SkipOnWindows(t)
	f := testutil.NewFixture(t)
	f.CreateSizedFile("cache/target/inside.bin", 100, 0)
	link := f.CreateSymlink(f.CacheDir, "home/link")
	broken := f.CreateBrokenSymlink("home/broken")

	got := collect(t, NewWalker(4, nil, zerolog.Nop()), f.HomeDir)

	require.Contains(t, got, link)
	assert.True(t, got[link].IsSymlink)
	assert.False(t, got[link].IsDir)
	assert.False(t, got[link].IsRegular())
	assert.NotContains(t, got, filepath.Join(link, "target"))

	require.Contains(t, got, broken)
	assert.True(t, got[broken].IsSymlink)
}

func TestWalkerPrunesExcluded(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateSizedFile("home/keep/a.txt", 1, 0)
	f.CreateSizedFile("home/skip/b.txt", 1, 0)
	f.CreateSizedFile("home/c.log", 1, 0)

	w := NewWalker(2, NewExcludeMatcher([]string{"skip", "*.log"}), zerolog.Nop())
	got := collect(t, w, f.HomeDir)

	assert.Contains(t, got, f.Path("home/keep/a.txt"))
	assert.NotContains(t, got, f.Path("home/skip"))
	assert.NotContains(t, got, f.Path("home/skip/b.txt"))
	assert.NotContains(t, got, f.Path("home/c.log"))
	assert.ElementsMatch(t, []string{f.Path("home/skip"), f.Path("home/c.log")}, w.Excluded())
}

func TestWalkerMultipleRoots(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateSizedFile("home/a.txt", 1, 0)
	f.CreateSizedFile("trash/b.txt", 1, 0)

	w := NewWalker(2, nil, zerolog.Nop())
	got := collect(t, w, f.HomeDir, f.TrashDir, f.Path("missing"))

	assert.Contains(t, got, f.Path("home/a.txt"))
	assert.Contains(t, got, f.Path("trash/b.txt"))
	assert.Empty(t, w.Warnings(), "a missing root is not a warning")
}

func TestWalkerUnreadableDirectory(t *testing.T) {
	testutil.SkipIfRoot(t)
	f := testutil.NewFixture(t)
	f.CreateSizedFile("home/ok.txt", 1, 0)
	locked := f.CreateUnreadableDir("home/locked")

	w := NewWalker(2, nil, zerolog.Nop())
	got := collect(t, w, f.HomeDir)

	assert.Contains(t, got, f.Path("home/ok.txt"))
	assert.Contains(t, got, locked)

	warnings := w.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningWalk, warnings[0].Kind)
	assert.Equal(t, locked, warnings[0].Path)
}

func TestWalkerCancellation(t *testing.T) {
	f := testutil.NewFixture(t)
	for i := 0; i < 50; i++ {
		f.CreateSizedFile(filepath.Join("home", "d", string(rune('a'+i%26)), "f.txt"), 1, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWalker(1, nil, zerolog.Nop())
	ch := w.Walk(ctx, f.HomeDir)

	<-ch
	cancel()
	for range ch {
	}
	// reaching here means the channel was closed after cancellation
}
