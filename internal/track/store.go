// Package track owns the persisted collection of context tracks.
//
// Store is the only owner of ContextTrack and StagedFile values. Callers get
// deep copies and mutate through Store methods. Every mutating operation runs
// inside storage.Memento.Transact: the persisted collection is reloaded, the
// change applied and the whole collection written back under one lock, then
// one change notification carrying a snapshot of the active track is emitted.
// Other processes sharing the workspace therefore never lose each other's
// changes.
package track

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/stagehand/internal/fileutil"
	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/storage"
)

// StorageKey is the fixed key the collection is persisted under
const StorageKey = "stagehand.contextTracks"

var (
	// ErrLastTrack is returned when deleting the only remaining track
	ErrLastTrack = errors.New("cannot delete the last remaining track")
	// ErrTrackNotFound is returned for operations on an unknown track id
	ErrTrackNotFound = errors.New("track not found")
	// ErrDuplicateTrackName is returned when creating a track with a name already in use
	ErrDuplicateTrackName = errors.New("a track with that name already exists")
	// ErrEmptyTrackName is returned when a track name is blank
	ErrEmptyTrackName = errors.New("track name must not be empty")
)

// Listener receives a snapshot of the active track after every change
type Listener func(active models.ContextTrack)

// Store is the Track Store state machine
type Store struct {
	mu        sync.Mutex
	state     *models.TrackCollection
	memento   storage.Memento
	log       logger.Logger
	now       func() time.Time
	listeners map[int]Listener
	nextID    int
}

// NewStore loads the persisted collection from memento.
// Missing or corrupt state yields a collection with a single default track;
// only a failing read from the memento is returned as an error.
func NewStore(memento storage.Memento, log logger.Logger) (*Store, error) {
	s := &Store{
		memento:   memento,
		log:       logger.OrNoOp(log),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}

	data, ok, err := memento.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load track state: %w", err)
	}

	s.state = models.NewTrackCollection()
	s.addDefaultTrack()
	s.reloadLocked(data, ok)
	if _, ok := s.state.Tracks[s.state.ActiveTrackID]; !ok {
		s.state.ActiveTrackID = s.state.Order[0]
	}

	return s, nil
}

// Refresh reloads the persisted collection, picking up changes made by other
// processes. Content-analysis results for ids still present are kept.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked()
}

func (s *Store) refreshLocked() error {
	data, ok, err := s.memento.Get(StorageKey)
	if err != nil {
		return fmt.Errorf("failed to load track state: %w", err)
	}
	s.reloadLocked(data, ok)
	return nil
}

// reloadLocked replaces the in-memory collection with the persisted one.
// Nothing stored or unreadable data keeps the current collection.
func (s *Store) reloadLocked(data []byte, ok bool) {
	if !ok {
		return
	}
	loaded, err := models.Deserialize(data)
	if err != nil {
		s.log.LogWarn(fmt.Sprintf("discarding unreadable track state: %v", err))
		return
	}

	analyzed := make(map[string]models.StagedFile)
	for _, t := range s.state.Tracks {
		for _, f := range t.Files {
			if f.Stats != nil || f.IsBinary != nil {
				analyzed[f.ID] = f
			}
		}
	}
	for _, t := range loaded.Tracks {
		for i := range t.Files {
			if prev, ok := analyzed[t.Files[i].ID]; ok {
				c := prev.Clone()
				t.Files[i].Stats = c.Stats
				t.Files[i].IsBinary = c.IsBinary
			}
		}
	}

	s.state = loaded
	if len(s.state.Tracks) == 0 {
		s.addDefaultTrack()
	}
	if _, ok := s.state.Tracks[s.state.ActiveTrackID]; !ok && len(s.state.Order) > 0 {
		s.state.ActiveTrackID = s.state.Order[0]
	}
}

// Subscribe registers fn for change notifications and returns a function that
// removes it. No ordering is guaranteed between subscribers.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// ActiveTrack returns the current track. If the active id does not resolve,
// a default track is created and activated; this never fails.
func (s *Store) ActiveTrack() models.ContextTrack {
	s.mu.Lock()
	healed := s.ensureActiveLocked()
	var err error
	if healed {
		err = s.persistLocked()
	}
	snapshot := s.activeLocked().Clone()
	s.mu.Unlock()

	if healed {
		if err != nil {
			s.log.LogError(fmt.Sprintf("failed to persist recovered default track: %v", err))
		}
		s.notify(snapshot)
	}
	return snapshot
}

// ActiveTrackID returns the id of the active track
func (s *Store) ActiveTrackID() string {
	return s.ActiveTrack().ID
}

// Tracks returns snapshots of all tracks in creation order
func (s *Store) Tracks() []models.ContextTrack {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ContextTrack, 0, len(s.state.Order))
	for _, id := range s.state.Order {
		out = append(out, s.state.Tracks[id].Clone())
	}
	return out
}

// TrackByName finds a track by exact name
func (s *Store) TrackByName(name string) (models.ContextTrack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.state.Order {
		if t := s.state.Tracks[id]; t.Name == name {
			return t.Clone(), true
		}
	}
	return models.ContextTrack{}, false
}

// SwitchToTrack activates the track with the given id.
// An unknown id leaves the state untouched and returns ErrTrackNotFound.
func (s *Store) SwitchToTrack(id string) error {
	return s.mutate(func() (bool, error) {
		if _, ok := s.state.Tracks[id]; !ok {
			return false, ErrTrackNotFound
		}
		s.state.ActiveTrackID = id
		return true, nil
	})
}

// CreateTrack inserts an empty track with a fresh id and switches to it
func (s *Store) CreateTrack(name string) (models.ContextTrack, error) {
	name = strings.TrimSpace(name)
	var created models.ContextTrack

	err := s.mutate(func() (bool, error) {
		if name == "" {
			return false, ErrEmptyTrackName
		}
		for _, t := range s.state.Tracks {
			if t.Name == name {
				return false, fmt.Errorf("%w: %s", ErrDuplicateTrackName, name)
			}
		}

		t := s.insertTrackLocked(name)
		s.state.ActiveTrackID = t.ID
		created = t.Clone()
		return true, nil
	})
	return created, err
}

// RenameTrack changes a track's name in place
func (s *Store) RenameTrack(id, name string) error {
	name = strings.TrimSpace(name)
	return s.mutate(func() (bool, error) {
		t, ok := s.state.Tracks[id]
		if !ok {
			return false, ErrTrackNotFound
		}
		if name == "" {
			return false, ErrEmptyTrackName
		}
		t.Name = name
		return true, nil
	})
}

// DeleteTrack removes a track. Deleting the last track is refused with
// ErrLastTrack and nothing changes. Deleting the active track activates the
// first remaining track in creation order.
func (s *Store) DeleteTrack(id string) error {
	return s.mutate(func() (bool, error) {
		if _, ok := s.state.Tracks[id]; !ok {
			return false, ErrTrackNotFound
		}
		if len(s.state.Tracks) <= 1 {
			s.log.LogWarn("refusing to delete the last remaining track")
			return false, ErrLastTrack
		}

		delete(s.state.Tracks, id)
		s.state.Order = removeString(s.state.Order, id)

		if s.state.ActiveTrackID == id {
			if len(s.state.Order) > 0 {
				s.state.ActiveTrackID = s.state.Order[0]
			} else {
				s.state.ActiveTrackID = s.addDefaultTrack().ID
			}
		}
		return true, nil
	})
}

// ToggleFilesPin flips the pin flag of each given file in the active track,
// with a single persist and notification for the whole batch.
func (s *Store) ToggleFilesPin(ids []string) error {
	return s.mutate(func() (bool, error) {
		active := s.activeLocked()
		changed := false
		for _, id := range dedupe(ids) {
			if i := active.IndexOf(id); i >= 0 {
				active.Files[i].IsPinned = !active.Files[i].IsPinned
				changed = true
			}
		}
		return changed, nil
	})
}

// AddFilesToActive appends ids not already present in the active track and
// returns only the newly added entries.
func (s *Store) AddFilesToActive(ids []string) ([]models.StagedFile, error) {
	var added []models.StagedFile

	err := s.mutate(func() (bool, error) {
		active := s.activeLocked()
		present := make(map[string]bool, len(active.Files))
		for _, f := range active.Files {
			present[f.ID] = true
		}

		for _, id := range ids {
			if id == "" || present[id] {
				continue
			}
			present[id] = true
			f := models.NewStagedFile(id)
			active.Files = append(active.Files, f)
			added = append(added, f.Clone())
		}
		return len(added) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveFilesFromActive removes the given ids from the active track
func (s *Store) RemoveFilesFromActive(ids []string) error {
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	return s.mutate(func() (bool, error) {
		active := s.activeLocked()
		before := len(active.Files)
		active.Files = filterFiles(active.Files, func(f models.StagedFile) bool {
			return !remove[f.ID]
		})
		return len(active.Files) != before, nil
	})
}

// ClearActive removes every unpinned file from the active track
func (s *Store) ClearActive() error {
	return s.mutate(func() (bool, error) {
		active := s.activeLocked()
		before := len(active.Files)
		active.Files = filterFiles(active.Files, func(f models.StagedFile) bool {
			return f.IsPinned
		})
		return len(active.Files) != before, nil
	})
}

// HasID reports whether any track contains the id. The persisted collection
// is reloaded first so ids staged by other processes are seen.
func (s *Store) HasID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		s.log.LogWarn(err.Error())
	}
	for _, t := range s.state.Tracks {
		if t.Contains(id) {
			return true
		}
	}
	return false
}

// IDsUnder returns the staged ids, across all tracks, whose file lies inside
// dir, sorted and without duplicates. Like HasID it reloads first.
func (s *Store) IDsUnder(dir string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		s.log.LogWarn(err.Error())
	}
	seen := make(map[string]bool)
	var ids []string
	for _, t := range s.state.Tracks {
		for _, f := range t.Files {
			if !seen[f.ID] && fileutil.IsWithin(dir, models.PathFromID(f.ID)) {
				seen[f.ID] = true
				ids = append(ids, f.ID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// RemoveIDEverywhere drops the id from every track. It persists and notifies
// only when something was removed.
func (s *Store) RemoveIDEverywhere(id string) (bool, error) {
	removed := false
	err := s.mutate(func() (bool, error) {
		for _, t := range s.state.Tracks {
			if i := t.IndexOf(id); i >= 0 {
				t.Files = append(t.Files[:i], t.Files[i+1:]...)
				removed = true
			}
		}
		return removed, nil
	})
	return removed, err
}

// ReplaceID renames a file across all tracks, keeping its pin flag and cached
// stats. If a track already holds newID the old entry is dropped instead, so
// ids stay unique. It persists and notifies only on actual change.
func (s *Store) ReplaceID(oldID, newID string) (bool, error) {
	if oldID == newID || newID == "" {
		return false, nil
	}

	replaced := false
	err := s.mutate(func() (bool, error) {
		for _, t := range s.state.Tracks {
			i := t.IndexOf(oldID)
			if i < 0 {
				continue
			}
			if t.Contains(newID) {
				t.Files = append(t.Files[:i], t.Files[i+1:]...)
			} else {
				t.Files[i].ID = newID
				t.Files[i].Label = models.LabelFor(newID)
			}
			replaced = true
		}
		return replaced, nil
	})
	return replaced, err
}

// UpdateFileStats records content-analysis results for id in every track that
// holds it. Stats are not part of the persisted state, so this only notifies.
func (s *Store) UpdateFileStats(id string, stats models.FileStats, isBinary bool) {
	s.mu.Lock()
	changed := false
	for _, t := range s.state.Tracks {
		if i := t.IndexOf(id); i >= 0 {
			st := stats
			bin := isBinary
			t.Files[i].Stats = &st
			t.Files[i].IsBinary = &bin
			changed = true
		}
	}
	snapshot := s.activeLocked().Clone()
	s.mu.Unlock()

	if changed {
		s.notify(snapshot)
	}
}

// mutate runs fn inside a memento transaction: the persisted collection is
// reloaded, fn applied, and the result written back before the lock is
// released. Listeners are notified after the store lock is released. A
// persistence failure is returned but listeners still see the new state.
func (s *Store) mutate(fn func() (changed bool, err error)) error {
	s.mu.Lock()

	var (
		changed bool
		opErr   error
	)
	txErr := s.memento.Transact(StorageKey, func(current []byte, ok bool) ([]byte, error) {
		s.reloadLocked(current, ok)
		changed, opErr = fn()
		if opErr != nil || !changed {
			return nil, nil
		}
		s.ensureActiveLocked()
		return models.Serialize(s.state)
	})

	if opErr != nil || !changed {
		s.mu.Unlock()
		if opErr != nil {
			return opErr
		}
		if txErr != nil {
			return fmt.Errorf("failed to persist track state: %w", txErr)
		}
		return nil
	}
	snapshot := s.activeLocked().Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	if txErr != nil {
		return fmt.Errorf("failed to persist track state: %w", txErr)
	}
	return nil
}

func (s *Store) persistLocked() error {
	data, err := models.Serialize(s.state)
	if err != nil {
		return err
	}
	if err := s.memento.Update(StorageKey, data); err != nil {
		return fmt.Errorf("failed to persist track state: %w", err)
	}
	return nil
}

func (s *Store) notify(active models.ContextTrack) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(active.Clone())
	}
}

// ensureActiveLocked repairs a dangling active id and reports whether it had to
func (s *Store) ensureActiveLocked() bool {
	if _, ok := s.state.Tracks[s.state.ActiveTrackID]; ok {
		return false
	}
	if len(s.state.Order) > 0 {
		s.state.ActiveTrackID = s.state.Order[0]
	} else {
		s.state.ActiveTrackID = s.addDefaultTrack().ID
	}
	return true
}

func (s *Store) activeLocked() *models.ContextTrack {
	s.ensureActiveLocked()
	return s.state.Tracks[s.state.ActiveTrackID]
}

func (s *Store) addDefaultTrack() *models.ContextTrack {
	return s.insertTrackLocked(models.DefaultTrackName)
}

func (s *Store) insertTrackLocked(name string) *models.ContextTrack {
	id := newTrackID(s.now())
	for {
		if _, taken := s.state.Tracks[id]; !taken {
			break
		}
		id = newTrackID(s.now())
	}

	t := &models.ContextTrack{ID: id, Name: name, Files: []models.StagedFile{}}
	s.state.Tracks[id] = t
	s.state.Order = append(s.state.Order, id)
	return t
}

// newTrackID combines a millisecond timestamp with a random suffix
func newTrackID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

func filterFiles(files []models.StagedFile, keep func(models.StagedFile) bool) []models.StagedFile {
	out := files[:0]
	for _, f := range files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
