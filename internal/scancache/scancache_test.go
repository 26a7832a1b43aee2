package scancache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/duster/internal/scanner"
)

func sampleResult(fingerprint string) *scanner.ScanResult {
	created := time.Date(2026, 3, 1, 12, 30, 15, 123456789, time.UTC)
	r := &scanner.ScanResult{
		ID:          "3f1b0c1e-4a53-4a8f-9d0e-7f6c0f9b1a2d",
		Fingerprint: fingerprint,
		CreatedAt:   created,
		Root:        "/home/user",
		Categories:  []scanner.Category{scanner.CategoryCache, scanner.CategoryDuplicates},
		Items: []scanner.Item{
			{
				Entry: scanner.Entry{
					Path:       "/home/user/.cache/app",
					Size:       4096,
					ModTime:    created.Add(-48 * time.Hour),
					AccessTime: created.Add(-24 * time.Hour),
					IsDir:      true,
				},
				Category: scanner.CategoryCache,
				Reason:   "Cache under /home/user/.cache (directory, 3 files)",
			},
			{
				Entry: scanner.Entry{
					Path:       "/home/user/b.bin",
					Size:       1 << 20,
					ModTime:    created.Add(-time.Hour),
					AccessTime: created.Add(-time.Minute),
				},
				Category:    scanner.CategoryDuplicates,
				Reason:      "Duplicate of: /home/user/a.bin",
				DuplicateOf: "/home/user/a.bin",
			},
		},
		TotalSize:  4096 + 1<<20,
		TotalCount: 2,
		Warnings: []scanner.Warning{
			{Kind: scanner.WarningHash, Path: "/home/user/locked.bin", Message: "permission denied"},
		},
		EntriesScanned: 17,
	}
	return r
}

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "duster", "last_scan.json"))
}

func TestStoreLookupRoundTrip(t *testing.T) {
	s := newStore(t)
	want := sampleResult("abc")
	now := time.Now()

	require.NoError(t, s.Store(want, now))

	got, ok := s.Lookup("abc", now.Add(time.Minute))
	require.True(t, ok)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Root, got.Root)
	assert.Equal(t, want.Categories, got.Categories)
	assert.Equal(t, want.TotalSize, got.TotalSize)
	assert.Equal(t, want.TotalCount, got.TotalCount)
	assert.Equal(t, want.Warnings, got.Warnings)
	assert.Equal(t, want.EntriesScanned, got.EntriesScanned)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	require.Len(t, got.Items, len(want.Items))
	for i := range want.Items {
		w, g := want.Items[i], got.Items[i]
		assert.Equal(t, w.Path, g.Path)
		assert.Equal(t, w.Size, g.Size)
		assert.Equal(t, w.IsDir, g.IsDir)
		assert.Equal(t, w.Category, g.Category)
		assert.Equal(t, w.Reason, g.Reason)
		assert.Equal(t, w.DuplicateOf, g.DuplicateOf)
		assert.True(t, w.ModTime.Equal(g.ModTime), "mod time of %s", w.Path)
		assert.True(t, w.AccessTime.Equal(g.AccessTime), "access time of %s", w.Path)
	}
}

func TestLookupWindow(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		lookup time.Time
		hit    bool
	}{
		{"immediately", now, true},
		{"within window", now.Add(4 * time.Minute), true},
		{"at window edge", now.Add(MaxAge), true},
		{"past window", now.Add(MaxAge + time.Second), false},
		{"clock moved backwards", now.Add(-time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.Store(sampleResult("fp"), now))

			_, ok := s.Lookup("fp", tt.lookup)
			assert.Equal(t, tt.hit, ok)
		})
	}
}

func TestLookupDifferentFingerprint(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	require.NoError(t, s.Store(sampleResult("one"), now))

	_, ok := s.Lookup("two", now)
	assert.False(t, ok)
}

func TestStoreReplacesSlot(t *testing.T) {
	s := newStore(t)
	now := time.Now()

	require.NoError(t, s.Store(sampleResult("first"), now))
	require.NoError(t, s.Store(sampleResult("second"), now))

	_, ok := s.Lookup("first", now)
	assert.False(t, ok, "only the most recent result is kept")
	_, ok = s.Lookup("second", now)
	assert.True(t, ok)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files may be left behind")
	assert.Equal(t, "last_scan.json", entries[0].Name())
}

func TestLookupMissingIsMiss(t *testing.T) {
	s := newStore(t)
	_, ok := s.Lookup("fp", time.Now())
	assert.False(t, ok)
}

func TestLookupCorruptIsMiss(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "not json at all"},
		{"truncated", `{"version":1,"fingerprint":"fp","timestamp":"`},
		{"wrong version", `{"version":99,"fingerprint":"fp","timestamp":"2026-01-01T00:00:00Z","result":{}}`},
		{"no result", `{"version":1,"fingerprint":"fp","timestamp":"2026-01-01T00:00:00Z"}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.data), 0o600))

			_, ok := s.Lookup("fp", time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))
			assert.False(t, ok)
		})
	}
}

func TestStoreNil(t *testing.T) {
	assert.Error(t, newStore(t).Store(nil, time.Now()))
}

func TestClear(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	require.NoError(t, s.Store(sampleResult("fp"), now))

	require.NoError(t, s.Clear())
	_, ok := s.Lookup("fp", now)
	assert.False(t, ok)

	require.NoError(t, s.Clear(), "clearing an empty slot is not an error")
}

func TestWithMaxAge(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "slot.json"), WithMaxAge(time.Second))
	now := time.Now()
	require.NoError(t, s.Store(sampleResult("fp"), now))

	_, ok := s.Lookup("fp", now.Add(2*time.Second))
	assert.False(t, ok)
}
