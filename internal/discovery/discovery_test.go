package discovery

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/stagehand/internal/exclude"
	"github.com/harrison/stagehand/internal/fileutil"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
}

// collector gathers every delivered batch
type collector struct {
	mu      sync.Mutex
	folders []string
	files   []string
}

func (c *collector) add(folder string, files []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders = append(c.folders, folder)
	c.files = append(c.files, files...)
}

func (c *collector) sortedFiles() []string {
	out := append([]string(nil), c.files...)
	sort.Strings(out)
	return out
}

func TestScanExcludesSubfolder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b.txt", "c.txt", "sub/d.txt", "sub/deeper/e.txt")

	engine := NewEngine(fileutil.NewOSFS(), nil, 2)
	var c collector
	err := engine.Scan(context.Background(), []string{root}, exclude.Compile("", []string{"**/sub/**"}), c.add)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "c.txt"),
	}, c.sortedFiles())
}

func TestScanSubfolderHonorsAnchoredPattern(t *testing.T) {
	ws := t.TempDir()
	writeTree(t, ws, "docs/readme.md", "docs/build/out.html")

	engine := NewEngine(fileutil.NewWorkspaceFS(ws), nil, 2)
	glob := exclude.Compile("docs/build/\n", nil)

	var whole, sub collector
	require.NoError(t, engine.Scan(context.Background(), []string{ws}, glob, whole.add))
	require.NoError(t, engine.Scan(context.Background(), []string{filepath.Join(ws, "docs")}, glob, sub.add))

	want := []string{filepath.Join(ws, "docs", "readme.md")}
	assert.Equal(t, want, whole.sortedFiles())
	assert.Equal(t, want, sub.sortedFiles())
}

func TestScanDeliversPerFolder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "one/a.txt", "two/b.txt", "three/c.txt", "empty/.git/HEAD")

	engine := NewEngine(fileutil.NewOSFS(), nil, 2)
	var c collector
	folders := []string{
		filepath.Join(root, "one"),
		filepath.Join(root, "two"),
		filepath.Join(root, "three"),
		filepath.Join(root, "empty"),
	}
	require.NoError(t, engine.Scan(context.Background(), folders, exclude.Compile("", nil), c.add))

	assert.Len(t, c.folders, 3, "folders with no files produce no batch")
	assert.Len(t, c.files, 3)
}

func TestCategorize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "file.txt", "dir/inner.txt")

	engine := NewEngine(fileutil.NewOSFS(), nil, 0)
	got, err := engine.Categorize(context.Background(), []string{
		filepath.Join(root, "file.txt"),
		filepath.Join(root, "missing.txt"),
		filepath.Join(root, "dir"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "file.txt")}, got.Files)
	assert.Equal(t, []string{filepath.Join(root, "dir")}, got.Folders)
}

func TestCategorizeManyTargets(t *testing.T) {
	root := t.TempDir()
	var targets []string
	for i := 0; i < CategorizeBatchSize*2+7; i++ {
		name := filepath.Join("f", string(rune('a'+i%26))+string(rune('a'+i/26))+".txt")
		writeTree(t, root, name)
		targets = append(targets, filepath.Join(root, name))
	}

	engine := NewEngine(fileutil.NewOSFS(), nil, 0)
	got, err := engine.Categorize(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, targets, got.Files)
	assert.Empty(t, got.Folders)
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "top.txt", "pkg/a.go", "pkg/inner/b.go", "other/c.go")

	engine := NewEngine(fileutil.NewOSFS(), nil, 4)
	var c collector
	err := engine.CollectFiles(context.Background(), []string{
		filepath.Join(root, "top.txt"),
		filepath.Join(root, "pkg", "inner"),
		filepath.Join(root, "pkg"),
	}, exclude.Compile("", nil), c.add)
	require.NoError(t, err)

	assert.Equal(t, "", c.folders[0], "direct files are delivered first")
	assert.Equal(t, []string{
		filepath.Join(root, "pkg", "a.go"),
		filepath.Join(root, "pkg", "inner", "b.go"),
		filepath.Join(root, "top.txt"),
	}, c.sortedFiles())
	assert.Len(t, c.folders, 2, "nested folder is not scanned twice")
}

func TestPruneNestedFolders(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"child after parent", []string{"/a", "/a/b"}, []string{"/a"}},
		{"child before parent", []string{"/a/b/c", "/a"}, []string{"/a"}},
		{"sibling prefix", []string{"/a/b", "/a/bc"}, []string{"/a/b", "/a/bc"}},
		{"duplicates", []string{"/a/", "/a"}, []string{"/a"}},
		{"long sibling name first", []string{"/very/long/name", "/x"}, []string{"/x", "/very/long/name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want []string
			for _, w := range tt.want {
				want = append(want, filepath.FromSlash(w))
			}
			var in []string
			for _, i := range tt.in {
				in = append(in, filepath.FromSlash(i))
			}
			assert.Equal(t, want, PruneNestedFolders(in))
		})
	}
}

func TestDiscoverWorkspaceFolders(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"README.md",
		"src/main.go",
		"src/internal/util/u.go",
		"node_modules/x/index.js",
	)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "emptydir"), 0755))

	engine := NewEngine(fileutil.NewOSFS(), nil, 2)
	got, err := engine.DiscoverWorkspaceFolders(context.Background(), []string{root}, exclude.Compile("", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "emptydir"),
		filepath.Join(root, "src"),
		filepath.Join(root, "src", "internal", "util"),
	}, got)
}

// fakeFS records scans and can cancel a context after the first folder
type fakeFS struct {
	mu      sync.Mutex
	scanned []string
	onGlob  func(root string)
	files   map[string][]string
	failing map[string]bool
}

func (f *fakeFS) Stat(path string) (fs.FileInfo, error) { return nil, errors.New("unused") }
func (f *fakeFS) ReadFile(path string) ([]byte, error) { return nil, errors.New("unused") }
func (f *fakeFS) ListChildren(root string) ([]fileutil.DirEntry, error) {
	return nil, errors.New("unused")
}

func (f *fakeFS) Glob(ctx context.Context, root, pattern, excludeGlob string, limit int) ([]string, error) {
	f.mu.Lock()
	f.scanned = append(f.scanned, root)
	f.mu.Unlock()
	if f.onGlob != nil {
		f.onGlob(root)
	}
	if f.failing[root] {
		return nil, errors.New("permission denied")
	}
	return f.files[root], nil
}

func TestScanCancellationKeepsStartedResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fsys := &fakeFS{
		files: map[string][]string{
			"/a": {"/a/1"}, "/b": {"/b/1"}, "/c": {"/c/1"}, "/d": {"/d/1"},
		},
	}
	fsys.onGlob = func(root string) {
		if root == "/a" {
			cancel()
		}
	}

	engine := NewEngine(fsys, nil, 2)
	var c collector
	err := engine.Scan(ctx, []string{"/a", "/b", "/c", "/d"}, "", c.add)
	require.NoError(t, err)

	assert.Contains(t, c.files, "/a/1", "files from a started folder are delivered")
	assert.NotContains(t, c.files, "/c/1", "later batches never start")
	assert.NotContains(t, c.files, "/d/1")
	assert.NotContains(t, fsys.scanned, "/c")
}

func TestScanFailureIsolated(t *testing.T) {
	fsys := &fakeFS{
		files:   map[string][]string{"/ok": {"/ok/x"}},
		failing: map[string]bool{"/bad": true},
	}

	engine := NewEngine(fsys, nil, 2)
	var c collector
	require.NoError(t, engine.Scan(context.Background(), []string{"/bad", "/ok"}, "", c.add))
	assert.Equal(t, []string{"/ok/x"}, c.files)
}

func TestNewEngineConcurrencyFloor(t *testing.T) {
	assert.GreaterOrEqual(t, NewEngine(fileutil.NewOSFS(), nil, 1).Concurrency(), 2)
	assert.Equal(t, 8, NewEngine(fileutil.NewOSFS(), nil, 8).Concurrency())
	assert.GreaterOrEqual(t, DefaultConcurrency(), 2)
}
