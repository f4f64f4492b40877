// Package preview renders the staged payload for viewing.
//
// Registry holds at most one live panel per key and creates it through a
// guarded factory, so concurrent refreshes never open a second panel.
package preview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/harrison/stagehand/internal/content"
)

// PanelKey is the key of the single payload preview
const PanelKey = "stagehand.preview"

// Payload is what a panel shows
type Payload struct {
	Title   string
	Text    string // Formatted payload from content.Formatter
	Summary content.Summary
}

// Panel displays payloads until closed
type Panel interface {
	Update(p Payload) error
	Close() error
}

// Factory creates a panel on demand
type Factory func() (Panel, error)

// Registry keeps live panels by key
type Registry struct {
	mu     sync.Mutex
	panels map[string]Panel
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{panels: make(map[string]Panel)}
}

// GetOrCreate returns the live panel for key, calling factory only when none
// exists. created reports whether this call made the panel.
func (r *Registry) GetOrCreate(key string, factory Factory) (panel Panel, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.panels[key]; ok {
		return p, false, nil
	}

	p, err := factory()
	if err != nil {
		return nil, false, fmt.Errorf("create panel %s: %w", key, err)
	}
	if p == nil {
		return nil, false, fmt.Errorf("create panel %s: factory returned nil", key)
	}
	r.panels[key] = p
	return p, true, nil
}

// Get returns the live panel for key
func (r *Registry) Get(key string) (Panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panels[key]
	return p, ok
}

// Show updates the panel for key, creating it first if needed
func (r *Registry) Show(key string, factory Factory, p Payload) error {
	panel, _, err := r.GetOrCreate(key, factory)
	if err != nil {
		return err
	}
	return panel.Update(p)
}

// Dispose closes and forgets the panel for key
func (r *Registry) Dispose(key string) error {
	r.mu.Lock()
	p, ok := r.panels[key]
	delete(r.panels, key)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return p.Close()
}

// CloseAll disposes every panel
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	panels := r.panels
	r.panels = make(map[string]Panel)
	r.mu.Unlock()

	var errs []error
	for key, p := range panels {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close panel %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
