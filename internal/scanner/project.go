package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// maxProjectDepth bounds the ancestor search for a project marker
const maxProjectDepth = 5

// ArtifactPattern describes a recognized build artifact directory
type ArtifactPattern struct {
	Name        string
	Description string
	// Markers lists sibling files that must exist for an ambiguous
	// directory name to be treated as an artifact. Empty means the name
	// alone is enough.
	Markers []string
}

var artifactPatterns = []ArtifactPattern{
	{Name: "node_modules", Description: "Node.js dependencies"},
	{Name: "target", Description: "Rust build artifacts", Markers: []string{"Cargo.toml"}},
	{Name: "__pycache__", Description: "Python bytecode cache"},
	{Name: ".pytest_cache", Description: "pytest cache"},
	{Name: ".gradle", Description: "Gradle project cache", Markers: []string{"build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts"}},
	{Name: "build", Description: "Gradle build output", Markers: []string{"build.gradle", "build.gradle.kts"}},
	{Name: ".next", Description: "Next.js build cache"},
	{Name: ".nuxt", Description: "Nuxt.js build cache"},
	{Name: "dist", Description: "Build distribution", Markers: []string{"package.json"}},
	{Name: "vendor", Description: "PHP Composer dependencies", Markers: []string{"composer.json"}},
	{Name: "Pods", Description: "CocoaPods dependencies"},
	{Name: ".tox", Description: "tox virtual environments"},
	{Name: "venv", Description: "Python virtual environment"},
	{Name: ".venv", Description: "Python virtual environment"},
}

// projectMarkers identify a Project Root
var projectMarkers = []string{
	"package.json",
	"Cargo.toml",
	"go.mod",
	"pyproject.toml",
	"requirements.txt",
	"setup.py",
	"Pipfile",
	"build.gradle",
	"build.gradle.kts",
	"settings.gradle",
	"settings.gradle.kts",
	"pom.xml",
	"composer.json",
	"Gemfile",
	"Podfile",
	"tox.ini",
	"next.config.js",
	"nuxt.config.js",
	"mix.exs",
}

var artifactNames = func() map[string]*ArtifactPattern {
	m := make(map[string]*ArtifactPattern, len(artifactPatterns))
	for i := range artifactPatterns {
		m[artifactPatterns[i].Name] = &artifactPatterns[i]
	}
	return m
}()

// MatchArtifact returns the pattern for dir if it is a recognized artifact
// directory
func MatchArtifact(dir string) (*ArtifactPattern, bool) {
	p, ok := artifactNames[filepath.Base(dir)]
	if !ok {
		return nil, false
	}
	if len(p.Markers) == 0 {
		return p, true
	}
	parent := filepath.Dir(dir)
	for _, marker := range p.Markers {
		if fileExists(filepath.Join(parent, marker)) {
			return p, true
		}
	}
	return nil, false
}

// FindProjectRoot searches dir and up to maxProjectDepth-1 of its ancestors
// for a project marker. It returns false for orphaned directories.
func FindProjectRoot(dir string) (string, bool) {
	dir = filepath.Clean(dir)
	for i := 0; i < maxProjectDepth; i++ {
		for _, marker := range projectMarkers {
			if fileExists(filepath.Join(dir, marker)) {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// ProjectActivity returns the most recent modification time of the files in
// the project tree. Artifact directories are skipped entirely and inside VCS
// metadata only HEAD and index count, so neither dependency installs nor
// git object churn make a project look active.
func ProjectActivity(ctx context.Context, root string) (time.Time, error) {
	var latest time.Time

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if d.Name() == ".git" {
				for _, name := range []string{"HEAD", "index"} {
					if info, err := os.Lstat(filepath.Join(path, name)); err == nil && info.ModTime().After(latest) {
						latest = info.ModTime()
					}
				}
				return filepath.SkipDir
			}
			if _, ok := MatchArtifact(path); ok {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})

	return latest, err
}

// projectIndex memoizes project lookups and activity timestamps for the
// duration of one scan
type projectIndex struct {
	mu       sync.Mutex
	roots    map[string]projectLookup
	activity map[string]time.Time
	group    singleflight.Group
}

type projectLookup struct {
	root  string
	found bool
}

func newProjectIndex() *projectIndex {
	return &projectIndex{
		roots:    make(map[string]projectLookup),
		activity: make(map[string]time.Time),
	}
}

func (p *projectIndex) root(dir string) (string, bool) {
	p.mu.Lock()
	if l, ok := p.roots[dir]; ok {
		p.mu.Unlock()
		return l.root, l.found
	}
	p.mu.Unlock()

	root, found := FindProjectRoot(dir)

	p.mu.Lock()
	p.roots[dir] = projectLookup{root: root, found: found}
	p.mu.Unlock()
	return root, found
}

func (p *projectIndex) lastActivity(ctx context.Context, root string) (time.Time, error) {
	p.mu.Lock()
	if t, ok := p.activity[root]; ok {
		p.mu.Unlock()
		return t, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(root, func() (interface{}, error) {
		t, err := ProjectActivity(ctx, root)
		if err != nil {
			return time.Time{}, err
		}
		p.mu.Lock()
		p.activity[root] = t
		p.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
