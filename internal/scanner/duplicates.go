package scanner

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/duster/pkg/utils"
)

// quickHashChunk is the head/tail window hashed to split large size groups
// before reading files in full
const quickHashChunk = 64 * 1024

// DuplicateSet is a group of files with byte-identical content
type DuplicateSet struct {
	Hash       string
	Size       int64
	Keeper     Entry
	Duplicates []Entry
}

// DuplicateDetector finds duplicate files by size and then content hash
type DuplicateDetector struct {
	minSize int64
	workers int

	mu       sync.Mutex
	warnings []Warning
}

// NewDuplicateDetector creates a detector that ignores files smaller than
// minSize bytes
func NewDuplicateDetector(minSize int64, workers int) *DuplicateDetector {
	if minSize <= 0 {
		minSize = DefaultDuplicateMinSize
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &DuplicateDetector{minSize: minSize, workers: workers}
}

// Find groups candidates by size, hashes every size group with at least two
// members, and returns the resulting sets ordered by keeper path. Only
// regular files at or above the size floor are considered. Hard links to
// one inode count once, under their smallest path, since deleting the
// others frees nothing. Files that cannot be read are recorded as warnings
// and left out of their group.
func (d *DuplicateDetector) Find(ctx context.Context, candidates []Entry) ([]DuplicateSet, error) {
	sorted := append([]Entry(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	seen := make(map[fileID]bool)
	bySize := make(map[int64][]Entry)
	for _, e := range sorted {
		if !e.IsRegular() || e.Size < d.minSize {
			continue
		}
		if e.id != (fileID{}) {
			if seen[e.id] {
				continue
			}
			seen[e.id] = true
		}
		bySize[e.Size] = append(bySize[e.Size], e)
	}

	var (
		mu   sync.Mutex
		sets []DuplicateSet
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for size, group := range bySize {
		if len(group) < 2 {
			continue
		}
		size, group := size, group
		g.Go(func() error {
			found, err := d.hashGroup(ctx, size, group)
			if err != nil {
				return err
			}
			mu.Lock()
			sets = append(sets, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(sets, func(i, j int) bool {
		return sets[i].Keeper.Path < sets[j].Keeper.Path
	})
	return sets, nil
}

// hashGroup splits one size group by content. Files larger than two quick
// hash windows are first split by a head/tail hash so unrelated files are
// never read in full.
func (d *DuplicateDetector) hashGroup(ctx context.Context, size int64, group []Entry) ([]DuplicateSet, error) {
	buckets := [][]Entry{group}

	if size > 2*quickHashChunk {
		byQuick := make(map[string][]Entry)
		for _, e := range group {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h, err := utils.HashFileQuick(e.Path, quickHashChunk)
			if err != nil {
				d.addWarning(newWarning(WarningHash, e.Path, err))
				continue
			}
			byQuick[h] = append(byQuick[h], e)
		}
		buckets = buckets[:0]
		for _, b := range byQuick {
			if len(b) > 1 {
				buckets = append(buckets, b)
			}
		}
	}

	var sets []DuplicateSet
	for _, bucket := range buckets {
		byHash := make(map[string][]Entry)
		for _, e := range bucket {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h, err := utils.HashFile(e.Path)
			if err != nil {
				d.addWarning(newWarning(WarningHash, e.Path, err))
				continue
			}
			byHash[h] = append(byHash[h], e)
		}

		for h, members := range byHash {
			if len(members) < 2 {
				continue
			}
			sortKeeperFirst(members)
			sets = append(sets, DuplicateSet{
				Hash:       h,
				Size:       size,
				Keeper:     members[0],
				Duplicates: append([]Entry(nil), members[1:]...),
			})
		}
	}
	return sets, nil
}

// sortKeeperFirst orders members so the keeper comes first: the earliest
// modification time wins and ties go to the lexicographically smallest path
func sortKeeperFirst(members []Entry) {
	sort.Slice(members, func(i, j int) bool {
		if !members[i].ModTime.Equal(members[j].ModTime) {
			return members[i].ModTime.Before(members[j].ModTime)
		}
		return members[i].Path < members[j].Path
	})
}

func (d *DuplicateDetector) addWarning(w Warning) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warnings = append(d.warnings, w)
}

// Warnings returns hashing failures recorded by Find
func (d *DuplicateDetector) Warnings() []Warning {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Warning(nil), d.warnings...)
}
