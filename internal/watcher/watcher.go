// Package watcher keeps staged file references in sync with the file system.
//
// It watches a workspace tree with fsnotify. Deleting a staged file removes it
// from every track; renaming one (a rename of the old path followed by a
// create of the new path within PairWindow) rewrites its id in place. Moving
// or deleting a directory applies the same to every staged file beneath it.
// Writes to staged files are debounced and reported as ContentChanged events.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harrison/stagehand/internal/debounce"
	"github.com/harrison/stagehand/internal/exclude"
	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/models"
)

// EventKind describes what happened to a staged file
type EventKind int

const (
	// Removed indicates the file was deleted or moved out of the workspace
	Removed EventKind = iota
	// Renamed indicates the file moved to NewID
	Renamed
	// ContentChanged indicates the file's bytes changed
	ContentChanged
)

// String returns a human-readable representation of the event kind
func (k EventKind) String() string {
	switch k {
	case Removed:
		return "removed"
	case Renamed:
		return "renamed"
	case ContentChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Event reports a change to a staged file
type Event struct {
	Kind      EventKind
	ID        string    // Staged id affected
	NewID     string    // Set for Renamed
	Timestamp time.Time // When the change was applied
}

// Tracker is the part of the track store the watcher drives
type Tracker interface {
	HasID(id string) bool
	IDsUnder(dir string) []string
	RemoveIDEverywhere(id string) (bool, error)
	ReplaceID(oldID, newID string) (bool, error)
}

// Defaults for coalescing writes and pairing rename halves
const (
	DefaultDebounceDelay = 100 * time.Millisecond
	DefaultPairWindow    = 250 * time.Millisecond
)

// Options configures a Watcher
type Options struct {
	ExcludeGlob   string
	DebounceDelay time.Duration
	PairWindow    time.Duration
	Logger        logger.Logger
}

// pendingRename is the first half of a rename waiting for its create.
// For a directory, ids holds every staged id beneath path.
type pendingRename struct {
	path  string
	ids   []string
	isDir bool
	timer *time.Timer
}

// Watcher applies file system changes to a Tracker
type Watcher struct {
	watcher *fsnotify.Watcher
	store   Tracker
	matcher *exclude.Matcher
	log     logger.Logger
	rootDir string

	events chan Event
	errors chan error
	done   chan struct{}
	writes *debounce.Group

	mu         sync.Mutex
	pairWindow time.Duration
	pending    *pendingRename
	closed     bool
}

// New starts watching rootDir and every non-excluded directory below it
func New(rootDir string, store Tracker, opts Options) (*Watcher, error) {
	rootDir = filepath.Clean(rootDir)

	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	if opts.PairWindow <= 0 {
		opts.PairWindow = DefaultPairWindow
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	w := &Watcher{
		watcher:    fsw,
		store:      store,
		matcher:    exclude.NewMatcher(opts.ExcludeGlob),
		log:        logger.OrNoOp(opts.Logger),
		rootDir:    rootDir,
		events:     make(chan Event, 100),
		errors:     make(chan error, 10),
		done:       make(chan struct{}),
		writes:     debounce.NewGroup(opts.DebounceDelay),
		pairWindow: opts.PairWindow,
	}

	if err := w.addRecursive(rootDir); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.processEvents()

	return w, nil
}

// addRecursive adds dir and all non-excluded subdirectories
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) || os.IsPermission(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootDir && w.matcher.PruneDir(w.relative(path)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.rootDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		isDir := err == nil && info.IsDir()
		if isDir {
			if err := w.addRecursive(path); err != nil {
				w.reportError(err)
			}
		}
		if w.completeRename(path, isDir) || isDir {
			return
		}
		// Editors that save by renaming a temp file over the original
		if id, ok := w.stagedID(path); ok {
			w.scheduleChanged(id)
		}

	case event.Has(fsnotify.Write):
		if id, ok := w.stagedID(path); ok {
			w.scheduleChanged(id)
		}

	case event.Has(fsnotify.Remove):
		if id, ok := w.stagedID(path); ok {
			w.writes.Cancel(id)
			w.remove(id)
			return
		}
		for _, id := range w.store.IDsUnder(path) {
			w.writes.Cancel(id)
			w.remove(id)
		}

	case event.Has(fsnotify.Rename):
		if id, ok := w.stagedID(path); ok {
			w.writes.Cancel(id)
			w.beginRename(path, []string{id}, false)
			return
		}
		if ids := w.store.IDsUnder(path); len(ids) > 0 {
			for _, id := range ids {
				w.writes.Cancel(id)
			}
			w.beginRename(path, ids, true)
		}
	}
}

// stagedID maps a path to the id form the store holds it under
func (w *Watcher) stagedID(path string) (string, bool) {
	if w.store.HasID(path) {
		return path, true
	}
	if uri := models.FileURI(path); w.store.HasID(uri) {
		return uri, true
	}
	return "", false
}

// beginRename records the old half of a rename of path. If no create follows
// within the pair window the ids are treated as removed.
func (w *Watcher) beginRename(path string, ids []string, isDir bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.pending != nil {
		prev := w.pending
		if prev.path == path {
			// A moved directory reports itself as well as through its parent
			return
		}
		prev.timer.Stop()
		go w.removeAll(prev.ids)
	}

	p := &pendingRename{path: path, ids: ids, isDir: isDir}
	p.timer = time.AfterFunc(w.pairWindow, func() {
		w.mu.Lock()
		if w.pending != p {
			w.mu.Unlock()
			return
		}
		w.pending = nil
		w.mu.Unlock()

		w.removeAll(p.ids)
	})
	w.pending = p
}

// completeRename pairs a create with a pending rename of the same kind and
// reports whether it did
func (w *Watcher) completeRename(newPath string, isDir bool) bool {
	w.mu.Lock()
	p := w.pending
	if p == nil || p.isDir != isDir || !p.timer.Stop() {
		w.mu.Unlock()
		return false
	}
	w.pending = nil
	w.mu.Unlock()

	for _, id := range p.ids {
		newID := movedID(id, p.path, newPath)
		changed, err := w.store.ReplaceID(id, newID)
		if err != nil {
			w.reportError(fmt.Errorf("rename %s: %w", id, err))
		}
		if changed {
			w.log.LogDebug(fmt.Sprintf("staged file renamed: %s -> %s", id, newID))
			w.sendEvent(Event{Kind: Renamed, ID: id, NewID: newID})
		}
	}
	return true
}

// movedID rewrites id for a move of oldPath to newPath, keeping the id form
// (plain path or file URI). oldPath is the file itself or a directory above it.
func movedID(id, oldPath, newPath string) string {
	target := newPath
	if rel, err := filepath.Rel(oldPath, models.PathFromID(id)); err == nil && rel != "." {
		target = filepath.Join(newPath, rel)
	}
	if models.PathFromID(id) != id {
		return models.FileURI(target)
	}
	return target
}

func (w *Watcher) removeAll(ids []string) {
	for _, id := range ids {
		w.remove(id)
	}
}

func (w *Watcher) remove(id string) {
	removed, err := w.store.RemoveIDEverywhere(id)
	if err != nil {
		w.reportError(fmt.Errorf("remove %s: %w", id, err))
	}
	if removed {
		w.log.LogDebug(fmt.Sprintf("staged file removed: %s", id))
		w.sendEvent(Event{Kind: Removed, ID: id})
	}
}

func (w *Watcher) scheduleChanged(id string) {
	w.writes.Trigger(id, func() {
		w.sendEvent(Event{Kind: ContentChanged, ID: id})
	})
}

func (w *Watcher) sendEvent(event Event) {
	event.Timestamp = time.Now()

	select {
	case w.events <- event:
	case <-w.done:
	default:
		w.log.LogWarn(fmt.Sprintf("watcher event dropped: %s %s", event.Kind, event.ID))
	}
}

func (w *Watcher) reportError(err error) {
	w.log.LogError(err.Error())
	select {
	case w.errors <- err:
	default:
	}
}

// Events returns the channel of applied changes
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher and store errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// RootDir returns the watched workspace root
func (w *Watcher) RootDir() string {
	return w.rootDir
}

// Close stops the watcher. A rename still waiting for its create is dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.pending != nil {
		w.pending.timer.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	w.writes.Stop()
	close(w.done)

	return w.watcher.Close()
}
