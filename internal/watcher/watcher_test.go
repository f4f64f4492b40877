package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/stagehand/internal/exclude"
	"github.com/harrison/stagehand/internal/storage"
	"github.com/harrison/stagehand/internal/track"
)

func setup(t *testing.T, files ...string) (string, *track.Store, *Watcher) {
	t.Helper()
	root := t.TempDir()
	var ids []string
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
		ids = append(ids, path)
	}

	store, err := track.NewStore(storage.NewMemoryMemento(), nil)
	require.NoError(t, err)
	_, err = store.AddFilesToActive(ids)
	require.NoError(t, err)

	w, err := New(root, store, Options{
		ExcludeGlob:   exclude.Compile("", nil),
		DebounceDelay: 20 * time.Millisecond,
		PairWindow:    200 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	return root, store, w
}

func waitFor(t *testing.T, w *Watcher, kind EventKind) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{Removed, "removed"},
		{Renamed, "renamed"},
		{ContentChanged, "changed"},
		{EventKind(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestRemoveDropsStagedFile(t *testing.T) {
	root, store, w := setup(t, "a.go", "b.go")
	path := filepath.Join(root, "a.go")

	require.NoError(t, os.Remove(path))

	ev := waitFor(t, w, Removed)
	assert.Equal(t, path, ev.ID)
	assert.False(t, store.HasID(path))
	assert.True(t, store.HasID(filepath.Join(root, "b.go")))
}

func TestRenameReplacesID(t *testing.T) {
	root, store, w := setup(t, "old.go")
	oldPath := filepath.Join(root, "old.go")
	newPath := filepath.Join(root, "new.go")
	require.NoError(t, store.ToggleFilesPin([]string{oldPath}))

	require.NoError(t, os.Rename(oldPath, newPath))

	ev := waitFor(t, w, Renamed)
	assert.Equal(t, oldPath, ev.ID)
	assert.Equal(t, newPath, ev.NewID)

	active := store.ActiveTrack()
	require.Len(t, active.Files, 1)
	assert.Equal(t, newPath, active.Files[0].ID)
	assert.Equal(t, "new.go", active.Files[0].Label)
	assert.True(t, active.Files[0].IsPinned)
}

func TestWritesAreDebounced(t *testing.T) {
	root, _, w := setup(t, "a.go")
	path := filepath.Join(root, "a.go")

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0644))
	}

	ev := waitFor(t, w, ContentChanged)
	assert.Equal(t, path, ev.ID)

	select {
	case extra := <-w.Events():
		assert.NotEqual(t, ContentChanged, extra.Kind, "burst should coalesce")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnstagedFilesAreIgnored(t *testing.T) {
	root, store, w := setup(t, "a.go")

	other := filepath.Join(root, "untracked.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	require.NoError(t, os.Remove(other))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %s for %s", ev.Kind, ev.ID)
	case <-time.After(150 * time.Millisecond):
	}
	assert.True(t, store.HasID(filepath.Join(root, "a.go")))
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	root, store, w := setup(t)
	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0755))

	path := filepath.Join(dir, "x.go")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	_, err := store.AddFilesToActive([]string{path})
	require.NoError(t, err)

	// give the watcher time to register the new directory
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	ev := waitFor(t, w, Removed)
	assert.Equal(t, path, ev.ID)
}

func TestDirectoryMovedOutRemovesStagedFiles(t *testing.T) {
	root, store, w := setup(t, "src/a.go", "src/deep/b.go", "keep.go")
	outside := filepath.Join(t.TempDir(), "src")

	require.NoError(t, os.Rename(filepath.Join(root, "src"), outside))

	removed := map[string]bool{}
	for len(removed) < 2 {
		removed[waitFor(t, w, Removed).ID] = true
	}
	assert.True(t, removed[filepath.Join(root, "src", "a.go")])
	assert.True(t, removed[filepath.Join(root, "src", "deep", "b.go")])

	assert.False(t, store.HasID(filepath.Join(root, "src", "a.go")))
	assert.True(t, store.HasID(filepath.Join(root, "keep.go")))
}

func TestDirectoryRenameRewritesStagedFiles(t *testing.T) {
	root, store, w := setup(t, "src/a.go", "src/deep/b.go")
	require.NoError(t, store.ToggleFilesPin([]string{filepath.Join(root, "src", "a.go")}))

	require.NoError(t, os.Rename(filepath.Join(root, "src"), filepath.Join(root, "lib")))

	renamed := map[string]string{}
	for len(renamed) < 2 {
		ev := waitFor(t, w, Renamed)
		renamed[ev.ID] = ev.NewID
	}
	assert.Equal(t, filepath.Join(root, "lib", "a.go"), renamed[filepath.Join(root, "src", "a.go")])
	assert.Equal(t, filepath.Join(root, "lib", "deep", "b.go"), renamed[filepath.Join(root, "src", "deep", "b.go")])

	active := store.ActiveTrack()
	require.Len(t, active.Files, 2)
	assert.Equal(t, filepath.Join(root, "lib", "a.go"), active.Files[0].ID)
	assert.True(t, active.Files[0].IsPinned)
	assert.Equal(t, filepath.Join(root, "lib", "deep", "b.go"), active.Files[1].ID)
}

func TestMovedID(t *testing.T) {
	tests := []struct {
		name, id, oldPath, newPath, want string
	}{
		{"file", "/ws/a.go", "/ws/a.go", "/ws/b.go", "/ws/b.go"},
		{"file uri", "file:///ws/a.go", "/ws/a.go", "/ws/b.go", "file:///ws/b.go"},
		{"under directory", "/ws/src/deep/a.go", "/ws/src", "/ws/lib", "/ws/lib/deep/a.go"},
		{"uri under directory", "file:///ws/src/a.go", "/ws/src", "/ws/lib", "file:///ws/lib/a.go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, movedID(tt.id, tt.oldPath, tt.newPath))
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	_, _, w := setup(t)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
