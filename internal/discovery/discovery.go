// Package discovery expands a mixed selection of files and folders into
// concrete file references.
//
// Work is done in bounded batches: stats run CategorizeBatchSize at a time and
// folder scans run at most Concurrency at a time, so a large selection never
// holds more than a fixed number of file handles. Batches run strictly in
// sequence; within a batch there is no ordering guarantee. Cancellation is
// cooperative and checked between batches and before each folder. Files found
// by folders that already started are always delivered.
package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/stagehand/internal/exclude"
	"github.com/harrison/stagehand/internal/fileutil"
	"github.com/harrison/stagehand/internal/logger"
)

// CategorizeBatchSize bounds the number of concurrent stat calls
const CategorizeBatchSize = 50

// DeepFolderLimit caps the recursive search used to list workspace folders
const DeepFolderLimit = 2000

// Categorized partitions targets into files and folders
type Categorized struct {
	Files   []string
	Folders []string
}

// BatchFunc receives the files found beneath one folder.
// It is never invoked concurrently with itself.
type BatchFunc func(folder string, files []string)

// Engine runs discovery against a host file system
type Engine struct {
	fs          fileutil.FS
	log         logger.Logger
	concurrency int
}

// DefaultConcurrency derives the folder scan concurrency from available CPUs, minimum 2
func DefaultConcurrency() int {
	n := runtime.NumCPU()
	if n < 2 {
		n = 2
	}
	return n
}

// NewEngine creates an Engine. A concurrency below 2 is replaced by DefaultConcurrency.
func NewEngine(fsys fileutil.FS, log logger.Logger, concurrency int) *Engine {
	if concurrency < 2 {
		concurrency = DefaultConcurrency()
	}
	return &Engine{
		fs:          fsys,
		log:         logger.OrNoOp(log),
		concurrency: concurrency,
	}
}

// Concurrency returns the folder scan concurrency
func (e *Engine) Concurrency() int {
	return e.concurrency
}

// Categorize stats every target and splits them into files and folders.
// Unreadable targets are skipped with a warning. Input order is preserved
// within each group.
func (e *Engine) Categorize(ctx context.Context, targets []string) (Categorized, error) {
	var result Categorized

	for start := 0; start < len(targets); start += CategorizeBatchSize {
		if ctx.Err() != nil {
			return result, nil
		}

		end := min(start+CategorizeBatchSize, len(targets))
		batch := targets[start:end]
		kinds := make([]int, len(batch)) // 0 skipped, 1 file, 2 folder

		var g errgroup.Group
		for i, target := range batch {
			g.Go(func() error {
				info, err := e.fs.Stat(target)
				if err != nil {
					e.log.LogWarn(fmt.Sprintf("skipping %s: %v", target, err))
					return nil
				}
				if info.IsDir() {
					kinds[i] = 2
				} else {
					kinds[i] = 1
				}
				return nil
			})
		}
		g.Wait()

		for i, kind := range kinds {
			switch kind {
			case 1:
				result.Files = append(result.Files, batch[i])
			case 2:
				result.Folders = append(result.Folders, batch[i])
			}
		}

		// Let other goroutines run before the next batch
		runtime.Gosched()
	}

	return result, nil
}

// Scan recursively searches each folder, excluding excludeGlob, and delivers
// each folder's files through onBatchFound as soon as that folder completes.
// Cancellation is not an error: Scan returns nil with partial results delivered.
func (e *Engine) Scan(ctx context.Context, folders []string, excludeGlob string, onBatchFound BatchFunc) error {
	var deliver sync.Mutex

	for start := 0; start < len(folders); start += e.concurrency {
		if ctx.Err() != nil {
			e.log.LogDebug("scan cancelled before batch start")
			return nil
		}

		end := min(start+e.concurrency, len(folders))

		var g errgroup.Group
		for _, folder := range folders[start:end] {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}

				files, err := e.fs.Glob(ctx, folder, fileutil.MatchAll, excludeGlob, 0)
				if err != nil && ctx.Err() == nil {
					e.log.LogWarn(fmt.Sprintf("failed to scan %s: %v", folder, err))
				}
				if len(files) == 0 {
					return nil
				}

				deliver.Lock()
				defer deliver.Unlock()
				onBatchFound(folder, files)
				return nil
			})
		}
		g.Wait()
	}

	return nil
}

// CollectFiles categorizes targets, prunes nested folders and scans them.
// Direct file targets are delivered first as one batch keyed by an empty folder.
func (e *Engine) CollectFiles(ctx context.Context, targets []string, excludeGlob string, onBatchFound BatchFunc) error {
	cat, err := e.Categorize(ctx, targets)
	if err != nil {
		return err
	}

	if len(cat.Files) > 0 {
		onBatchFound("", cat.Files)
	}

	return e.Scan(ctx, PruneNestedFolders(cat.Folders), excludeGlob, onBatchFound)
}

// PruneNestedFolders drops folders that lie beneath another folder in the list,
// and exact duplicates. Ancestry is decided by whole path segments, so
// "/a/bc" is never treated as a child of "/a/b".
func PruneNestedFolders(folders []string) []string {
	type entry struct {
		path  string
		depth int
	}

	entries := make([]entry, 0, len(folders))
	for _, f := range folders {
		clean := filepath.Clean(f)
		entries = append(entries, entry{path: clean, depth: len(splitSegments(clean))})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].depth < entries[j].depth
	})

	var accepted []string
	for _, e := range entries {
		nested := false
		for _, parent := range accepted {
			if fileutil.IsWithin(parent, e.path) {
				nested = true
				break
			}
		}
		if !nested {
			accepted = append(accepted, e.path)
		}
	}
	return accepted
}

func splitSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(filepath.ToSlash(p), "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DiscoverWorkspaceFolders lists candidate folders for a folder picker.
// It merges the direct child folders of each root with the parent folders of
// up to DeepFolderLimit files found by a recursive search, deduplicated and sorted.
func (e *Engine) DiscoverWorkspaceFolders(ctx context.Context, roots []string, excludeGlob string) ([]string, error) {
	matcher := exclude.NewMatcher(excludeGlob)
	seen := make(map[string]struct{})
	add := func(dir string) {
		seen[filepath.Clean(dir)] = struct{}{}
	}

	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}

		children, err := e.fs.ListChildren(root)
		if err != nil {
			e.log.LogWarn(fmt.Sprintf("failed to list %s: %v", root, err))
			continue
		}
		for _, c := range children {
			if c.IsDir && !matcher.PruneDir(c.Name) {
				add(filepath.Join(root, c.Name))
			}
		}

		files, err := e.fs.Glob(ctx, root, fileutil.MatchAll, excludeGlob, DeepFolderLimit)
		if err != nil && ctx.Err() == nil {
			e.log.LogWarn(fmt.Sprintf("failed to search %s: %v", root, err))
		}
		for _, f := range files {
			if dir := filepath.Dir(f); dir != filepath.Clean(root) {
				add(dir)
			}
		}
	}

	folders := make([]string, 0, len(seen))
	for dir := range seen {
		folders = append(folders, dir)
	}
	sort.Strings(folders)
	return folders, nil
}
