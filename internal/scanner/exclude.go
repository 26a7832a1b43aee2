package scanner

import (
	"path/filepath"
	"strings"
)

// ExcludeMatcher decides whether a path is excluded from scanning.
//
// A pattern without '*' matches any path containing it. A pattern with '*'
// is matched against the whole path, where each '*' matches any run of
// characters including separators. Patterns without a separator are also
// matched against the base name, so "*.keep" excludes every .keep file.
type ExcludeMatcher struct {
	patterns []string
}

// NewExcludeMatcher creates a matcher for the given patterns
func NewExcludeMatcher(patterns []string) *ExcludeMatcher {
	m := &ExcludeMatcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Match reports whether path is excluded
func (m *ExcludeMatcher) Match(path string) bool {
	if m.Empty() {
		return false
	}
	for _, pattern := range m.patterns {
		if !strings.Contains(pattern, "*") {
			if strings.Contains(path, pattern) {
				return true
			}
			continue
		}
		if wildcardMatch(pattern, path) {
			return true
		}
		if !strings.ContainsRune(pattern, filepath.Separator) && wildcardMatch(pattern, filepath.Base(path)) {
			return true
		}
	}
	return false
}

// Empty reports whether the matcher has no patterns
func (m *ExcludeMatcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

func wildcardMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}
