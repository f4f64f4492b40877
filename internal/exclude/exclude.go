// Package exclude compiles ignore-file content and user supplied patterns into
// a single brace-grouped glob set, and evaluates that set against paths.
//
// Only a gitignore subset is understood: blank lines and "#" comments are
// skipped, "!" negations are silently discarded, and every pattern is anchored
// to match at any depth by prefixing "**/".
package exclude

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultPatterns are always part of a compiled glob set
var DefaultPatterns = []string{
	"**/.git",
	"**/.svn",
	"**/.hg",
	"**/CVS",
	"**/.DS_Store",
	"**/node_modules",
	"**/bower_components",
	"**/.stagehand",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
	"**/Cargo.lock",
	"**/poetry.lock",
}

// IgnoreFileName is the ignore file read from the workspace root
const IgnoreFileName = ".gitignore"

// Compile merges ignore-file content, user patterns and the built-in defaults
// into one deduplicated alternation of the form "{a,b,c}".
func Compile(ignoreFileContent string, userPatterns []string) string {
	set := make(map[string]struct{}, len(DefaultPatterns))
	for _, p := range DefaultPatterns {
		set[p] = struct{}{}
	}

	for _, line := range strings.Split(ignoreFileContent, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		if p := Normalize(line); p != "" {
			set[p] = struct{}{}
		}
	}

	for _, raw := range userPatterns {
		if p := Normalize(strings.TrimSpace(raw)); p != "" {
			set[p] = struct{}{}
		}
	}

	patterns := make([]string, 0, len(set))
	for p := range set {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	return "{" + strings.Join(patterns, ",") + "}"
}

// Normalize strips one leading and one trailing slash and anchors the pattern
// at any depth unless it already starts with "**".
func Normalize(pattern string) string {
	p := strings.TrimPrefix(pattern, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "**") {
		p = "**/" + p
	}
	return p
}

// CompileWorkspace reads the workspace ignore file (a missing file counts as
// empty) and compiles it together with the user and extra default patterns.
func CompileWorkspace(root string, userPatterns, extraDefaults []string) (string, error) {
	content, err := os.ReadFile(filepath.Join(root, IgnoreFileName))
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read %s: %w", IgnoreFileName, err)
	}

	patterns := make([]string, 0, len(userPatterns)+len(extraDefaults))
	patterns = append(patterns, extraDefaults...)
	patterns = append(patterns, userPatterns...)

	return Compile(string(content), patterns), nil
}

// Split breaks a glob set back into its individual patterns.
// Commas nested inside inner brace groups are preserved.
func Split(globSet string) []string {
	s := strings.TrimSpace(globSet)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") || !balancedOuter(s) {
		return []string{s}
	}
	s = s[1 : len(s)-1]

	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				if part := s[start:i]; part != "" {
					out = append(out, part)
				}
				start = i + 1
			}
		}
	}
	if part := s[start:]; part != "" {
		out = append(out, part)
	}
	return out
}

// balancedOuter reports whether the first "{" closes at the very last byte
func balancedOuter(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i == len(s)-1
			}
		}
	}
	return false
}
