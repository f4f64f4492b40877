// Package storage provides the key/value persistence used by the track store.
//
// A Memento holds opaque blobs under fixed keys, one store per workspace.
// FileMemento writes one JSON file per key with an advisory lock and an atomic
// rename; SQLiteMemento keeps all keys in a single database; MemoryMemento is
// for tests.
//
// Several stagehand processes may share one workspace. Transact is the
// read-modify-write primitive: the current blob is read and the replacement
// written while holding the backend's exclusive lock, so a concurrent writer
// can never slip in between.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Memento is a per-workspace key/value blob store
type Memento interface {
	// Get returns the blob stored under key; ok is false when nothing is stored.
	Get(key string) (data []byte, ok bool, err error)

	// Update replaces the blob stored under key.
	Update(key string, data []byte) error

	// Transact passes the current blob for key to fn under an exclusive lock and
	// stores what fn returns. A nil result leaves the stored blob untouched. An
	// error from fn is returned as is and nothing is written.
	Transact(key string, fn TransactFunc) error
}

// TransactFunc computes the replacement for a stored blob
type TransactFunc func(current []byte, ok bool) ([]byte, error)

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the Memento for the named backend rooted at stateDir
func Open(backend, stateDir string) (Memento, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileMemento(stateDir), nil
	case BackendSQLite:
		m, err := NewSQLiteMemento(filepath.Join(stateDir, "state.db"))
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %q or %q)", backend, BackendFile, BackendSQLite)
	}
}

// MemoryMemento keeps blobs in memory
type MemoryMemento struct {
	mu     sync.Mutex
	values map[string][]byte
	writes int
	err    error
}

// NewMemoryMemento returns an empty in-memory store
func NewMemoryMemento() *MemoryMemento {
	return &MemoryMemento{values: make(map[string][]byte)}
}

// Get returns a copy of the stored blob
func (m *MemoryMemento) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Update stores a copy of data, or fails with the injected error
func (m *MemoryMemento) Update(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.values[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// Transact runs fn and stores its result while holding the store's mutex
func (m *MemoryMemento) Transact(key string, fn TransactFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.values[key]
	if ok {
		current = append([]byte(nil), current...)
	}
	data, err := fn(current, ok)
	if err != nil || data == nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.values[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// Writes returns how many successful updates were made
func (m *MemoryMemento) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailWith makes subsequent updates fail with err (nil restores normal behaviour)
func (m *MemoryMemento) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
