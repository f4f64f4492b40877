// Package debounce coalesces bursts of triggers into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once, delay after the last Trigger
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
	running sync.WaitGroup
}

// New creates a Debouncer for fn
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger cancels any pending call and schedules a new one
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn()
}

// Stop cancels pending work and waits for a call already running to return.
// Later triggers are ignored. Stop must not be called from fn.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.running.Wait()
}

// Pending reports whether a call is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Group debounces independently per key
type Group struct {
	mu      sync.Mutex
	delay   time.Duration
	timers  map[string]*time.Timer
	stopped bool
	running sync.WaitGroup
}

// NewGroup creates a keyed debouncer
func NewGroup(delay time.Duration) *Group {
	return &Group{delay: delay, timers: make(map[string]*time.Timer)}
}

// Trigger schedules fn for key, replacing anything pending for that key
func (g *Group) Trigger(key string, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return
	}
	if timer, exists := g.timers[key]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(g.delay, func() {
		g.mu.Lock()
		if g.stopped || g.timers[key] != timer {
			g.mu.Unlock()
			return
		}
		delete(g.timers, key)
		g.running.Add(1)
		g.mu.Unlock()

		defer g.running.Done()
		fn()
	})
	g.timers[key] = timer
}

// Cancel drops the pending call for key, if any
func (g *Group) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if timer, exists := g.timers[key]; exists {
		timer.Stop()
		delete(g.timers, key)
	}
}

// Stop cancels every pending call and waits for calls already running.
// Later triggers are ignored. Stop must not be called from a triggered fn.
func (g *Group) Stop() {
	g.mu.Lock()
	g.stopped = true
	for _, timer := range g.timers {
		timer.Stop()
	}
	g.timers = nil
	g.mu.Unlock()

	g.running.Wait()
}
