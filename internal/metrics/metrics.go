// Package metrics records scan and clean statistics as Prometheus metrics.
// The CLI is short lived, so metrics are exported to a node_exporter
// textfile instead of being served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fenilsonani/duster/internal/cleaner"
	"github.com/fenilsonani/duster/internal/scanner"
)

// Collector owns a private registry with the duster metrics. A nil
// Collector ignores every call.
type Collector struct {
	registry *prometheus.Registry

	scansTotal      *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	entriesScanned  prometheus.Gauge
	categoryItems   *prometheus.GaugeVec
	categoryBytes   *prometheus.GaugeVec
	warningsTotal   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	deletedTotal    prometheus.Counter
	freedBytesTotal prometheus.Counter
	failuresTotal   *prometheus.CounterVec
}

// New creates a collector with all metrics registered
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duster_scans_total",
				Help: "Total number of scans by outcome",
			},
			[]string{"status"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "duster_scan_duration_seconds",
				Help:    "Wall time of a scan",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		entriesScanned: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "duster_scan_entries",
				Help: "Filesystem entries visited by the last scan",
			},
		),
		categoryItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "duster_category_items",
				Help: "Cleanable items per category in the last scan",
			},
			[]string{"category"},
		),
		categoryBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "duster_category_bytes",
				Help: "Reclaimable bytes per category in the last scan",
			},
			[]string{"category"},
		),
		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duster_scan_warnings_total",
				Help: "Non-fatal scan warnings by kind",
			},
			[]string{"kind"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duster_scan_cache_lookups_total",
				Help: "Scan cache lookups by result",
			},
			[]string{"result"},
		),
		deletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "duster_deleted_items_total",
				Help: "Items deleted by clean",
			},
		),
		freedBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "duster_freed_bytes_total",
				Help: "Bytes freed by clean, as recorded at scan time",
			},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duster_clean_failures_total",
				Help: "Failed deletions by reason",
			},
			[]string{"reason"},
		),
	}

	c.registry.MustRegister(
		c.scansTotal,
		c.scanDuration,
		c.entriesScanned,
		c.categoryItems,
		c.categoryBytes,
		c.warningsTotal,
		c.cacheLookups,
		c.deletedTotal,
		c.freedBytesTotal,
		c.failuresTotal,
	)
	return c
}

// Registry returns the registry holding the metrics
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveScan records a finished scan. A nil result counts as a failure.
func (c *Collector) ObserveScan(result *scanner.ScanResult, elapsed time.Duration) {
	if c == nil {
		return
	}
	if result == nil {
		c.scansTotal.WithLabelValues("error").Inc()
		return
	}

	c.scansTotal.WithLabelValues("ok").Inc()
	c.scanDuration.Observe(elapsed.Seconds())
	c.entriesScanned.Set(float64(result.EntriesScanned))

	c.categoryItems.Reset()
	c.categoryBytes.Reset()
	for _, cat := range result.Categories {
		c.categoryItems.WithLabelValues(string(cat)).Set(0)
		c.categoryBytes.WithLabelValues(string(cat)).Set(0)
	}
	for _, total := range result.Breakdown() {
		c.categoryItems.WithLabelValues(string(total.Category)).Set(float64(total.Count))
		c.categoryBytes.WithLabelValues(string(total.Category)).Set(float64(total.Size))
	}

	for _, w := range result.Warnings {
		c.warningsTotal.WithLabelValues(string(w.Kind)).Inc()
	}
}

// ObserveCacheLookup records a scan cache hit or miss
func (c *Collector) ObserveCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveClean records the outcome of a confirmed clean
func (c *Collector) ObserveClean(out *cleaner.Outcome) {
	if c == nil || out == nil || out.DryRun {
		return
	}
	c.deletedTotal.Add(float64(out.DeletedCount))
	c.freedBytesTotal.Add(float64(out.FreedBytes))
	for _, f := range out.Failures {
		c.failuresTotal.WithLabelValues(f.Reason.String()).Inc()
	}
}

// WriteTextfile writes the metrics in the node_exporter textfile format
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
