package exclude

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates a compiled glob set against slash-separated paths
// relative to a search root.
type Matcher struct {
	patterns []string
}

// NewMatcher parses a glob set produced by Compile.
// Invalid patterns are dropped.
func NewMatcher(globSet string) *Matcher {
	m := &Matcher{}
	for _, p := range Split(globSet) {
		if doublestar.ValidatePattern(p) {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Patterns returns the individual patterns held by the matcher
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Match reports whether the relative path is excluded
func (m *Matcher) Match(rel string) bool {
	if m == nil || rel == "" || rel == "." {
		return false
	}
	rel = strings.TrimPrefix(path.Clean(rel), "./")
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// PruneDir reports whether nothing beneath the relative directory can survive
// exclusion, so a walker may skip the directory entirely.
func (m *Matcher) PruneDir(rel string) bool {
	if m == nil || rel == "" || rel == "." {
		return false
	}
	if m.Match(rel) {
		return true
	}
	for _, p := range m.patterns {
		base, ok := strings.CutSuffix(p, "/**")
		if !ok {
			continue
		}
		if matched, _ := doublestar.Match(base, rel); matched {
			return true
		}
	}
	return false
}
