package scanner

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Category is the single classification assigned to a cleanable item
type Category string

const (
	CategoryTrash      Category = "trash"
	CategoryCache      Category = "cache"
	CategoryBuild      Category = "build"
	CategoryDuplicates Category = "duplicates"
	CategoryTemp       Category = "temp"
	CategoryDownloads  Category = "downloads"
	CategoryLarge      Category = "large"
	CategoryOld        Category = "old"
)

// Priority lists every category from highest to lowest precedence.
// When a path could match more than one category it is assigned to the
// earliest one in this list.
var Priority = []Category{
	CategoryTrash,
	CategoryCache,
	CategoryBuild,
	CategoryDuplicates,
	CategoryTemp,
	CategoryDownloads,
	CategoryLarge,
	CategoryOld,
}

// Rank returns the position of the category in Priority, or -1 if unknown
func (c Category) Rank() int {
	for i, p := range Priority {
		if p == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	return c.Rank() >= 0
}

// Label returns a human-readable category name
func (c Category) Label() string {
	switch c {
	case CategoryTrash:
		return "Trash"
	case CategoryCache:
		return "Cache"
	case CategoryBuild:
		return "Build Artifacts"
	case CategoryDuplicates:
		return "Duplicates"
	case CategoryTemp:
		return "Temp Files"
	case CategoryDownloads:
		return "Old Downloads"
	case CategoryLarge:
		return "Large Files"
	case CategoryOld:
		return "Old Files"
	default:
		return string(c)
	}
}

// ParseCategory converts a user supplied name into a Category
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if c == "build-artifacts" || c == "artifacts" {
		c = CategoryBuild
	}
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// Entry is a snapshot of one filesystem object taken at walk time
type Entry struct {
	Path       string    `json:"path" yaml:"path"`
	Size       int64     `json:"size" yaml:"size"`
	ModTime    time.Time `json:"mod_time" yaml:"mod_time"`
	AccessTime time.Time `json:"access_time" yaml:"access_time"`
	IsDir      bool      `json:"is_dir" yaml:"is_dir"`
	IsSymlink  bool      `json:"is_symlink,omitempty" yaml:"is_symlink,omitempty"`

	id fileID
}

// fileID identifies the inode behind a path. The zero value means unknown.
type fileID struct {
	dev, ino uint64
}

// IsRegular reports whether the entry is a plain file
func (e Entry) IsRegular() bool {
	return !e.IsDir && !e.IsSymlink
}

// Item is a cleanable path with its assigned category
type Item struct {
	Entry       `yaml:",inline"`
	Category    Category `json:"category" yaml:"category"`
	Reason      string   `json:"reason" yaml:"reason"`
	DuplicateOf string   `json:"duplicate_of,omitempty" yaml:"duplicate_of,omitempty"`
}

// WarningKind identifies the stage that produced a non-fatal warning
type WarningKind string

const (
	WarningWalk WarningKind = "walk"
	WarningHash WarningKind = "hash"
)

// Warning records a per-entry failure that did not stop the scan
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Path    string      `json:"path" yaml:"path"`
	Message string      `json:"message" yaml:"message"`
}

func newWarning(kind WarningKind, path string, err error) Warning {
	return Warning{Kind: kind, Path: path, Message: err.Error()}
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.Path, w.Message)
}

// ScanResult represents the result of a scan operation.
// It is never modified after Scan returns.
type ScanResult struct {
	ID          string     `json:"id" yaml:"id"`
	Fingerprint string     `json:"fingerprint" yaml:"fingerprint"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	Root        string     `json:"root" yaml:"root"`
	Categories  []Category `json:"categories" yaml:"categories"`
	Items       []Item     `json:"items" yaml:"items"`
	TotalSize   int64      `json:"total_size" yaml:"total_size"`
	TotalCount  int        `json:"total_count" yaml:"total_count"`
	Warnings    []Warning  `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	EntriesScanned int64 `json:"entries_scanned" yaml:"entries_scanned"`
}

// CategoryTotal is the aggregate of one category within a scan
type CategoryTotal struct {
	Category Category `json:"category" yaml:"category"`
	Count    int      `json:"count" yaml:"count"`
	Size     int64    `json:"size" yaml:"size"`
}

// GroupByCategory groups items by their category
func (r *ScanResult) GroupByCategory() map[Category][]Item {
	grouped := make(map[Category][]Item)
	for _, item := range r.Items {
		grouped[item.Category] = append(grouped[item.Category], item)
	}
	return grouped
}

// Breakdown returns per-category totals in priority order.
// Categories without items are omitted.
func (r *ScanResult) Breakdown() []CategoryTotal {
	totals := make(map[Category]*CategoryTotal)
	for _, item := range r.Items {
		t, ok := totals[item.Category]
		if !ok {
			t = &CategoryTotal{Category: item.Category}
			totals[item.Category] = t
		}
		t.Count++
		t.Size += item.Size
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, c := range Priority {
		if t, ok := totals[c]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Find returns the item recorded for path. Items are kept sorted by path.
func (r *ScanResult) Find(path string) (Item, bool) {
	path = filepath.Clean(path)
	i := sort.Search(len(r.Items), func(i int) bool { return r.Items[i].Path >= path })
	if i < len(r.Items) && r.Items[i].Path == path {
		return r.Items[i], true
	}
	return Item{}, false
}

// SortedBySize returns a copy of the items ordered by size, largest first
func (r *ScanResult) SortedBySize() []Item {
	items := append([]Item(nil), r.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Size != items[j].Size {
			return items[i].Size > items[j].Size
		}
		return items[i].Path < items[j].Path
	})
	return items
}

func (r *ScanResult) add(item Item) {
	r.Items = append(r.Items, item)
	r.TotalSize += item.Size
	r.TotalCount++
}
