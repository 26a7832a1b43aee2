// Package space reports capacity of the filesystem holding a path.
package space

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"
)

// Usage describes the filesystem containing Path
type Usage struct {
	Path        string  `json:"path" yaml:"path"`
	Filesystem  string  `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
	Total       uint64  `json:"total" yaml:"total"`
	Free        uint64  `json:"free" yaml:"free"`
	Used        uint64  `json:"used" yaml:"used"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

// Query returns total and free bytes for the filesystem containing path
func Query(ctx context.Context, path string) (*Usage, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	stat, err := disk.UsageWithContext(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("failed to query disk usage for %s: %w", abs, err)
	}

	return &Usage{
		Path:        abs,
		Filesystem:  stat.Fstype,
		Total:       stat.Total,
		Free:        stat.Free,
		Used:        stat.Used,
		UsedPercent: stat.UsedPercent,
	}, nil
}
