package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/harrison/stagehand/internal/exclude"
)

// MatchAll is the search pattern that accepts every file
const MatchAll = "**/*"

// DirEntry is one direct child of a directory
type DirEntry struct {
	Name  string
	IsDir bool
}

// FS is the set of host file-system services the staging pipeline consumes.
// Paths are native absolute paths; results are absolute paths as well.
type FS interface {
	// Stat returns file information for the path
	Stat(path string) (fs.FileInfo, error)

	// ReadFile returns the raw bytes of the file
	ReadFile(path string) ([]byte, error)

	// Glob recursively searches root for files whose root-relative path matches
	// pattern and does not match excludeGlob. A limit of 0 means unlimited.
	// On cancellation the files found so far are returned with ctx.Err().
	Glob(ctx context.Context, root, pattern, excludeGlob string, limit int) ([]string, error)

	// ListChildren returns the direct children of root
	ListChildren(root string) ([]DirEntry, error)
}

// OSFS implements FS on the local file system.
// When Base is set, exclusions for paths inside Base are matched relative to
// Base rather than to the searched root, so path-anchored ignore patterns hold
// for scans of any subfolder.
type OSFS struct {
	Base string
}

// NewOSFS returns the local file system implementation
func NewOSFS() OSFS {
	return OSFS{}
}

// NewWorkspaceFS returns a local file system that anchors exclusions at workspace
func NewWorkspaceFS(workspace string) OSFS {
	return OSFS{Base: filepath.Clean(workspace)}
}

// excludeRel returns the slash path that exclusions are matched against
func (o OSFS) excludeRel(root, path string) string {
	base := root
	if o.Base != "" && IsWithin(o.Base, path) {
		base = o.Base
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Stat returns file information for the path
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile returns the raw bytes of the file
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ListChildren returns the direct children of root sorted by name
func (OSFS) ListChildren(root string) ([]DirEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}

	children := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		children = append(children, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return children, nil
}

var errLimitReached = errors.New("limit reached")

// Glob walks root, never leaving it, and collects matching files.
// Excluded directories are pruned rather than descended into.
func (o OSFS) Glob(ctx context.Context, root, pattern, excludeGlob string, limit int) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	if pattern == "" {
		pattern = MatchAll
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %s", pattern)
	}
	matcher := exclude.NewMatcher(excludeGlob)

	files := make([]string, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable subtrees are skipped, the rest of the walk continues
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		excludeRel := o.excludeRel(root, path)

		if d.IsDir() {
			if matcher.PruneDir(excludeRel) {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.Match(excludeRel) {
			return nil
		}
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}

		files = append(files, path)
		if limit > 0 && len(files) >= limit {
			return errLimitReached
		}
		return nil
	})

	sort.Strings(files)

	switch {
	case err == nil, errors.Is(err, errLimitReached):
		return files, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return files, err
	default:
		return files, fmt.Errorf("failed to walk directory: %w", err)
	}
}

// IsWithin reports whether path is root itself or lies beneath it,
// comparing whole path segments.
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
