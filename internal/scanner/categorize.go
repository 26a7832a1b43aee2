package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/duster/internal/progress"
	"github.com/fenilsonani/duster/pkg/utils"
)

// systemExtensions are never reported as old files
var systemExtensions = map[string]bool{
	".plist":  true,
	".dylib":  true,
	".so":     true,
	".dll":    true,
	".sys":    true,
	".kext":   true,
	".bundle": true,
}

// categorizer assigns categories once the walk has finished, so the
// outcome never depends on the order entries arrived in.
//
// Resolution per file, highest priority first:
//   - under a requested trash or cache root: part of the top-level child
//     of that root, reported as one unit
//   - inside a recognized artifact directory: part of that artifact, which
//     is reported as one build item when its project is inactive and is
//     otherwise protected from every other category
//   - anything else is a loose file and is tested against duplicates,
//     temp, downloads, large and old in that order
type categorizer struct {
	opts    Options
	now     time.Time
	logger  zerolog.Logger
	workers int

	trash     []string
	cache     []string
	temp      []string
	downloads []string

	// locations holds every location root, requested or not
	locations []string

	dirs      map[string]Entry
	files     []Entry
	artifacts map[string]*ArtifactPattern
	tainted   map[string]bool

	projects *projectIndex

	// onPhase is told when a slow phase such as hashing starts
	onPhase func(progress.Phase)

	mu       sync.Mutex
	warnings []Warning
}

type unit struct {
	entry    Entry
	category Category
	root     string
	files    int
}

func newCategorizer(opts Options, now time.Time, logger zerolog.Logger) *categorizer {
	c := &categorizer{
		opts:      opts,
		now:       now,
		logger:    logger,
		workers:   opts.Workers,
		dirs:      make(map[string]Entry),
		artifacts: make(map[string]*ArtifactPattern),
		tainted:   make(map[string]bool),
		projects:  newProjectIndex(),
	}
	for _, group := range [][]string{opts.Locations.Trash, opts.Locations.Cache, opts.Locations.Temp, opts.Locations.Downloads} {
		c.locations = append(c.locations, resolveRoots(group)...)
	}
	if opts.Wants(CategoryTrash) {
		c.trash = resolveRoots(opts.Locations.Trash)
	}
	if opts.Wants(CategoryCache) {
		c.cache = resolveRoots(opts.Locations.Cache)
	}
	if opts.Wants(CategoryTemp) {
		c.temp = resolveRoots(opts.Locations.Temp)
	}
	if opts.Wants(CategoryDownloads) {
		c.downloads = resolveRoots(opts.Locations.Downloads)
	}
	return c
}

// walkRoots returns the scan root plus every requested location root,
// with roots nested inside another root removed
func (c *categorizer) walkRoots() []string {
	all := []string{c.opts.Root}
	for _, group := range [][]string{c.trash, c.cache, c.temp, c.downloads} {
		all = append(all, group...)
	}
	sort.Strings(all)

	var roots []string
	for _, r := range all {
		nested := false
		for _, kept := range roots {
			if isWithin(r, kept) {
				nested = true
				break
			}
		}
		if !nested {
			roots = append(roots, r)
		}
	}
	return roots
}

func (c *categorizer) observe(e Entry) {
	if !e.IsDir {
		c.files = append(c.files, e)
		return
	}
	c.dirs[e.Path] = e

	if _, ok := artifactNames[filepath.Base(e.Path)]; !ok {
		return
	}
	if e.Path == c.opts.Root || !isWithin(e.Path, c.opts.Root) {
		return
	}
	if containingRoot(c.trash, e.Path) != "" || containingRoot(c.cache, e.Path) != "" {
		return
	}
	// deleting the artifact would take a location root with it
	for _, root := range c.locations {
		if isWithin(root, e.Path) {
			return
		}
	}
	if p, ok := MatchArtifact(e.Path); ok {
		c.artifacts[e.Path] = p
	}
}

// exclude marks every ancestor of a pruned path so aggregates that would
// delete it are never reported as a whole
func (c *categorizer) exclude(paths []string) {
	for _, p := range paths {
		for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
			c.tainted[dir] = true
			if parent := filepath.Dir(dir); parent == dir {
				break
			}
		}
	}
}

func (c *categorizer) result(ctx context.Context, result *ScanResult) error {
	units := make(map[string]*unit)
	artifactSizes := make(map[string]int64)
	artifactFiles := make(map[string]int)
	var loose []Entry

	for _, d := range c.dirs {
		m, ok := c.locate(d.Path)
		if !ok || m.top != d.Path || c.tainted[d.Path] {
			continue
		}
		entry := d
		entry.Size = 0
		units[d.Path] = &unit{entry: entry, category: m.category, root: m.root}
	}

	for _, f := range c.files {
		if m, ok := c.locate(f.Path); ok {
			key := m.top
			if c.tainted[key] {
				key = f.Path
			}
			u, ok := units[key]
			if !ok {
				entry := f
				if key != f.Path {
					if entry, ok = c.dirs[key]; !ok {
						entry = Entry{Path: key, IsDir: true}
					}
				}
				entry.Size = 0
				u = &unit{entry: entry, category: m.category, root: m.root}
				units[key] = u
			}
			u.entry.Size += f.Size
			u.files++
			continue
		}
		if art := c.outermostArtifact(f.Path); art != "" {
			artifactSizes[art] += f.Size
			artifactFiles[art]++
			continue
		}
		loose = append(loose, f)
	}

	for _, u := range units {
		result.add(Item{
			Entry:    u.entry,
			Category: u.category,
			Reason:   c.unitReason(u),
		})
	}

	if c.opts.Wants(CategoryBuild) {
		items, err := c.buildItems(ctx, artifactSizes, artifactFiles)
		if err != nil {
			return err
		}
		for _, item := range items {
			result.add(item)
		}
	}

	if err := c.looseItems(ctx, loose, result); err != nil {
		return err
	}

	sort.Slice(result.Items, func(i, j int) bool {
		return result.Items[i].Path < result.Items[j].Path
	})
	return nil
}

type locationMatch struct {
	category Category
	root     string
	top      string
}

// locate finds the trash or cache root containing path. top is the
// top-level child of that root, which is the unit normally reported.
func (c *categorizer) locate(path string) (locationMatch, bool) {
	for _, loc := range []struct {
		roots    []string
		category Category
	}{
		{c.trash, CategoryTrash},
		{c.cache, CategoryCache},
	} {
		root := containingRoot(loc.roots, path)
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		top := filepath.Join(root, strings.SplitN(rel, string(filepath.Separator), 2)[0])
		return locationMatch{category: loc.category, root: root, top: top}, true
	}
	return locationMatch{}, false
}

// outermostArtifact returns the highest artifact directory containing path
func (c *categorizer) outermostArtifact(path string) string {
	if len(c.artifacts) == 0 {
		return ""
	}
	var found string
	for dir := filepath.Dir(path); isWithin(dir, c.opts.Root) && dir != c.opts.Root; dir = filepath.Dir(dir) {
		if _, ok := c.artifacts[dir]; ok {
			found = dir
		}
	}
	return found
}

func (c *categorizer) buildItems(ctx context.Context, sizes map[string]int64, counts map[string]int) ([]Item, error) {
	var (
		mu    sync.Mutex
		items []Item
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit())

	for dir, pattern := range c.artifacts {
		if counts[dir] == 0 || c.isNestedArtifact(dir) {
			continue
		}
		if c.tainted[dir] {
			c.logger.Debug().Str("path", dir).Msg("artifact contains excluded paths, skipping")
			continue
		}

		dir, pattern := dir, pattern
		g.Go(func() error {
			cleanable, reason, err := c.evaluateArtifact(gctx, dir, pattern)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.addWarning(newWarning(WarningWalk, dir, err))
				return nil
			}
			if !cleanable {
				return nil
			}

			entry, ok := c.dirs[dir]
			if !ok {
				entry = Entry{Path: dir, IsDir: true}
			}
			entry.Size = sizes[dir]

			mu.Lock()
			items = append(items, Item{Entry: entry, Category: CategoryBuild, Reason: reason})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *categorizer) evaluateArtifact(ctx context.Context, dir string, pattern *ArtifactPattern) (bool, string, error) {
	root, found := c.projects.root(filepath.Dir(dir))
	if !found {
		return true, fmt.Sprintf("%s (no project found)", pattern.Description), nil
	}

	activity, err := c.projects.lastActivity(ctx, root)
	if err != nil {
		return false, "", fmt.Errorf("project activity: %w", err)
	}

	idle := c.now.Sub(activity)
	if idle < c.opts.ProjectAge {
		c.logger.Debug().
			Str("artifact", dir).
			Str("project", root).
			Dur("idle", idle).
			Msg("project recently active, keeping artifact")
		return false, "", nil
	}

	return true, fmt.Sprintf("%s in project '%s', inactive for %d days",
		pattern.Description, filepath.Base(root), int(idle/Day)), nil
}

func (c *categorizer) isNestedArtifact(dir string) bool {
	for parent := filepath.Dir(dir); isWithin(parent, c.opts.Root) && parent != c.opts.Root; parent = filepath.Dir(parent) {
		if _, ok := c.artifacts[parent]; ok {
			return true
		}
	}
	return false
}

func (c *categorizer) looseItems(ctx context.Context, loose []Entry, result *ScanResult) error {
	dupOf := make(map[string]string)
	keepers := make(map[string]bool)

	if c.opts.Wants(CategoryDuplicates) {
		var candidates []Entry
		for _, f := range loose {
			if c.inScope(f) {
				candidates = append(candidates, f)
			}
		}

		if len(candidates) > 1 && c.onPhase != nil {
			c.onPhase(progress.PhaseHashing)
		}
		detector := NewDuplicateDetector(c.opts.DuplicateMinSize, c.limit())
		sets, err := detector.Find(ctx, candidates)
		if err != nil {
			return err
		}
		for _, w := range detector.Warnings() {
			c.addWarning(w)
		}
		for _, set := range sets {
			keepers[set.Keeper.Path] = true
			for _, d := range set.Duplicates {
				dupOf[d.Path] = set.Keeper.Path
			}
		}
	}

	for _, f := range loose {
		if keeper, ok := dupOf[f.Path]; ok {
			result.add(Item{
				Entry:       f,
				Category:    CategoryDuplicates,
				Reason:      "Duplicate of: " + keeper,
				DuplicateOf: keeper,
			})
			continue
		}
		if keepers[f.Path] {
			continue
		}

		if containingRoot(c.temp, f.Path) != "" {
			if age := c.now.Sub(f.ModTime); age >= TempAge {
				result.add(Item{Entry: f, Category: CategoryTemp, Reason: fmt.Sprintf("Temporary file, modified %d days ago", int(age/Day))})
				continue
			}
		}

		if containingRoot(c.downloads, f.Path) != "" {
			if age := c.now.Sub(f.AccessTime); age >= c.opts.DownloadAge {
				result.add(Item{Entry: f, Category: CategoryDownloads, Reason: fmt.Sprintf("Download not accessed in %d days", int(age/Day))})
				continue
			}
		}

		if !c.inScope(f) || !f.IsRegular() {
			continue
		}

		if c.opts.Wants(CategoryLarge) && f.Size >= c.opts.MinSize {
			result.add(Item{Entry: f, Category: CategoryLarge, Reason: "Large file: " + utils.FormatBytes(f.Size)})
			continue
		}

		if c.opts.Wants(CategoryOld) && !systemExtensions[strings.ToLower(filepath.Ext(f.Path))] {
			if age := c.now.Sub(f.AccessTime); age >= c.opts.MinAge {
				result.add(Item{Entry: f, Category: CategoryOld, Reason: fmt.Sprintf("Not accessed in %d days", int(age/Day))})
			}
		}
	}
	return nil
}

// inScope reports whether a loose file may be assigned one of the tree
// wide categories: it must lie under the scan root and must not be hidden
// or inside a hidden directory such as .git
func (c *categorizer) inScope(f Entry) bool {
	if !isWithin(f.Path, c.opts.Root) || f.Path == c.opts.Root {
		return false
	}
	rel, err := filepath.Rel(c.opts.Root, f.Path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

func (c *categorizer) unitReason(u *unit) string {
	what := "file"
	if u.entry.IsDir {
		what = fmt.Sprintf("directory, %d files", u.files)
	}
	switch u.category {
	case CategoryTrash:
		return fmt.Sprintf("In trash (%s)", what)
	default:
		return fmt.Sprintf("Cache under %s (%s)", u.root, what)
	}
}

func (c *categorizer) limit() int {
	if c.workers > 0 {
		return c.workers
	}
	return 8
}

func (c *categorizer) addWarning(w Warning) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, w)
}

// containingRoot returns the deepest root that strictly contains path
func containingRoot(roots []string, path string) string {
	var best string
	for _, r := range roots {
		if path != r && isWithin(path, r) && len(r) > len(best) {
			best = r
		}
	}
	return best
}

func isWithin(path, root string) bool {
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return filepath.IsAbs(path)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
