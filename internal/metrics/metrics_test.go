package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/duster/internal/cleaner"
	"github.com/fenilsonani/duster/internal/scanner"
)

func TestObserveScan(t *testing.T) {
	c := New()
	c.ObserveScan(&scanner.ScanResult{
		Categories: []scanner.Category{scanner.CategoryCache, scanner.CategoryOld},
		Items: []scanner.Item{
			{Entry: scanner.Entry{Path: "/a", Size: 100}, Category: scanner.CategoryCache},
			{Entry: scanner.Entry{Path: "/b", Size: 50}, Category: scanner.CategoryCache},
		},
		Warnings:       []scanner.Warning{{Kind: scanner.WarningWalk, Path: "/x"}},
		EntriesScanned: 42,
	}, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.scansTotal.WithLabelValues("ok")))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.entriesScanned))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.categoryItems.WithLabelValues("cache")))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.categoryBytes.WithLabelValues("cache")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.categoryBytes.WithLabelValues("old")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.warningsTotal.WithLabelValues("walk")))

	c.ObserveScan(nil, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.scansTotal.WithLabelValues("error")))
}

func TestObserveClean(t *testing.T) {
	c := New()
	c.ObserveClean(&cleaner.Outcome{
		DeletedCount: 3,
		FreedBytes:   300,
		Failures: []cleaner.Failure{
			{Path: "/gone", Reason: cleaner.ErrorNotFound},
		},
	})
	c.ObserveClean(&cleaner.Outcome{DryRun: true, PendingBytes: 1000})

	assert.Equal(t, 3.0, testutil.ToFloat64(c.deletedTotal))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.freedBytesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failuresTotal.WithLabelValues("not found")))
}

func TestCacheLookups(t *testing.T) {
	c := New()
	c.ObserveCacheLookup(true)
	c.ObserveCacheLookup(false)
	c.ObserveCacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")))
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.ObserveCacheLookup(true)

	path := filepath.Join(t.TempDir(), "duster.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `duster_scan_cache_lookups_total{result="hit"} 1`))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveScan(nil, 0)
	c.ObserveCacheLookup(true)
	c.ObserveClean(&cleaner.Outcome{})
	assert.NoError(t, c.WriteTextfile("/nonexistent/dir/file.prom"))
	assert.Nil(t, c.Registry())
}
