package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/fenilsonani/duster/internal/security"
)

const (
	Day = 24 * time.Hour

	DefaultMinAge           = 30 * Day
	DefaultMinSize          = 100 << 20
	DefaultProjectAge       = 14 * Day
	DefaultDownloadAge      = 30 * Day
	DefaultDuplicateMinSize = 1 << 20

	// TempAge is the minimum age since last modification for temp files
	TempAge = Day
)

var (
	ErrInvalidRoot      = errors.New("invalid root path")
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInvalidPattern   = errors.New("invalid exclude pattern")
)

// Locations holds the well-known roots used by the location based categories
type Locations struct {
	Trash     []string `json:"trash" yaml:"trash"`
	Cache     []string `json:"cache" yaml:"cache"`
	Temp      []string `json:"temp" yaml:"temp"`
	Downloads []string `json:"downloads" yaml:"downloads"`
}

// Options controls a single scan.
// Zero thresholds are replaced by their defaults during normalization.
type Options struct {
	Root             string
	Categories       []Category
	MinAge           time.Duration
	MinSize          int64
	ProjectAge       time.Duration
	DownloadAge      time.Duration
	DuplicateMinSize int64
	Exclude          []string
	Locations        Locations

	// Workers bounds walker and hashing concurrency. It does not affect results.
	Workers int
}

// Validate checks options for errors that must stop a scan before it starts
func (o Options) Validate() error {
	if strings.TrimSpace(o.Root) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}
	info, err := os.Stat(o.Root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, o.Root)
	}

	if o.MinAge < 0 {
		return fmt.Errorf("%w: min age must be >= 0", ErrInvalidThreshold)
	}
	if o.MinSize < 0 {
		return fmt.Errorf("%w: min size must be >= 0", ErrInvalidThreshold)
	}
	if o.ProjectAge < 0 {
		return fmt.Errorf("%w: project age must be >= 0", ErrInvalidThreshold)
	}
	if o.DownloadAge < 0 {
		return fmt.Errorf("%w: download age must be >= 0", ErrInvalidThreshold)
	}
	if o.DuplicateMinSize < 0 {
		return fmt.Errorf("%w: duplicate size floor must be >= 0", ErrInvalidThreshold)
	}

	for _, c := range o.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
	}

	for _, pattern := range o.Exclude {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
		}
	}

	return nil
}

// Normalize validates the options and returns a copy with absolute paths,
// sorted categories and defaults applied
func (o Options) Normalize() (Options, error) {
	if err := o.Validate(); err != nil {
		return Options{}, err
	}

	root, err := filepath.Abs(o.Root)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	o.Root = root

	if o.MinAge == 0 {
		o.MinAge = DefaultMinAge
	}
	if o.MinSize == 0 {
		o.MinSize = DefaultMinSize
	}
	if o.ProjectAge == 0 {
		o.ProjectAge = DefaultProjectAge
	}
	if o.DownloadAge == 0 {
		o.DownloadAge = DefaultDownloadAge
	}
	if o.DuplicateMinSize == 0 {
		o.DuplicateMinSize = DefaultDuplicateMinSize
	}

	o.Categories = normalizeCategories(o.Categories)
	o.Exclude = uniqueSorted(o.Exclude)
	o.Locations = Locations{
		Trash:     absPaths(o.Locations.Trash),
		Cache:     absPaths(o.Locations.Cache),
		Temp:      absPaths(o.Locations.Temp),
		Downloads: absPaths(o.Locations.Downloads),
	}

	return o, nil
}

// Wants reports whether category c is requested
func (o Options) Wants(c Category) bool {
	if len(o.Categories) == 0 {
		return true
	}
	for _, want := range o.Categories {
		if want == c {
			return true
		}
	}
	return false
}

// Fingerprint reduces the options to a stable identity used as the scan
// cache key. Options that only differ in Workers share a fingerprint.
func (o Options) Fingerprint() string {
	n, err := o.Normalize()
	if err != nil {
		// Fall back to the raw values so invalid options never collide
		// with a valid cached scan.
		n = o
	}

	cats := make([]string, len(n.Categories))
	for i, c := range n.Categories {
		cats[i] = string(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "root=%s\n", n.Root)
	fmt.Fprintf(&b, "categories=%s\n", strings.Join(cats, ","))
	fmt.Fprintf(&b, "min_age=%d\n", int64(n.MinAge/time.Second))
	fmt.Fprintf(&b, "min_size=%d\n", n.MinSize)
	fmt.Fprintf(&b, "project_age=%d\n", int64(n.ProjectAge/time.Second))
	fmt.Fprintf(&b, "download_age=%d\n", int64(n.DownloadAge/time.Second))
	fmt.Fprintf(&b, "duplicate_min_size=%d\n", n.DuplicateMinSize)
	fmt.Fprintf(&b, "exclude=%s\n", strings.Join(n.Exclude, "\x00"))
	fmt.Fprintf(&b, "trash=%s\n", strings.Join(n.Locations.Trash, "\x00"))
	fmt.Fprintf(&b, "cache=%s\n", strings.Join(n.Locations.Cache, "\x00"))
	fmt.Fprintf(&b, "temp=%s\n", strings.Join(n.Locations.Temp, "\x00"))
	fmt.Fprintf(&b, "downloads=%s\n", strings.Join(n.Locations.Downloads, "\x00"))

	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

// normalizeCategories expands an empty request to every category and
// returns the set in priority order
func normalizeCategories(cats []Category) []Category {
	if len(cats) == 0 {
		return append([]Category(nil), Priority...)
	}
	seen := make(map[Category]bool, len(cats))
	for _, c := range cats {
		seen[c] = true
	}
	out := make([]Category, 0, len(seen))
	for _, c := range Priority {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			out = append(out, abs)
		}
	}
	return uniqueSorted(out)
}
