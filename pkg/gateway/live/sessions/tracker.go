// Package sessions tracks active live sessions so the server can warn and
// drain them during shutdown.
package sessions

import (
	"context"
	"sync"
)

// Handle exposes the controls the tracker needs over one session.
type Handle struct {
	Cancel func()
	Warn   func(code, message string) error
}

type entry struct {
	handle Handle
	once   sync.Once
}

// Tracker is a registry of running sessions.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Register adds a session and returns its unregister func. Registering a
// session ID that is already present cancels and replaces the old entry.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	e := &entry{handle: h}

	t.mu.Lock()
	if t.entries == nil {
		t.entries = make(map[string]*entry)
	}
	old := t.entries[sessionID]
	t.entries[sessionID] = e
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		if old.handle.Cancel != nil {
			old.handle.Cancel()
		}
		t.remove(sessionID, old)
	}

	return func() { t.remove(sessionID, e) }
}

func (t *Tracker) remove(sessionID string, e *entry) {
	if t == nil || e == nil {
		return
	}
	e.once.Do(func() {
		t.mu.Lock()
		if t.entries[sessionID] == e {
			delete(t.entries, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

// Count returns the number of active sessions.
func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// WarnAll sends a warning to every active session, best effort.
func (t *Tracker) WarnAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	warns := make([]func(string, string) error, 0, len(t.entries))
	for _, e := range t.entries {
		if e != nil && e.handle.Warn != nil {
			warns = append(warns, e.handle.Warn)
		}
	}
	t.mu.Unlock()

	for _, warn := range warns {
		_ = warn(code, message)
		sent++
	}
	return sent
}

// CancelAll cancels every active session.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	cancels := make([]func(), 0, len(t.entries))
	for _, e := range t.entries {
		if e != nil && e.handle.Cancel != nil {
			cancels = append(cancels, e.handle.Cancel)
		}
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered or ctx is
// done. It reports whether the drain completed.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
