package shutdown

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"vitals_backend/core"
)

// Priorities used by the application. Lower runs first.
const (
	PriorityHTTP     = 10 // stop accepting requests, close websockets
	PriorityRecorder = 20 // stop the capture worker
	PriorityWriters  = 30 // drain the async history writer
	PriorityStorage  = 40 // close the database
	PriorityFiles    = 50 // remove temp files
	PriorityLogs     = 90 // flush the logger last
)

type shutdownEntry struct {
	name     string
	fn       core.ShutdownFunc
	priority int
}

// ShutdownRegistry holds cleanup handlers and runs them once, in priority
// order. Handlers with equal priority run in registration order.
type ShutdownRegistry struct {
	mu      sync.Mutex
	entries []shutdownEntry
	closed  bool
}

// NewShutdownRegistry returns an empty registry.
func NewShutdownRegistry() *ShutdownRegistry {
	return &ShutdownRegistry{}
}

// Register adds fn. Registration after Shutdown is ignored.
func (r *ShutdownRegistry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.entries = append(r.entries, shutdownEntry{name: name, fn: fn, priority: priority})
}

func (r *ShutdownRegistry) sorted() []shutdownEntry {
	out := slices.Clone(r.entries)
	slices.SortStableFunc(out, func(a, b shutdownEntry) int { return a.priority - b.priority })
	return out
}

// Shutdown runs every handler even when some fail and returns their
// errors, each prefixed with the handler name. Later calls do nothing.
func (r *ShutdownRegistry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errs
}

// Names lists handler names in execution order.
func (r *ShutdownRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.sorted()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// Count returns the number of registered handlers.
func (r *ShutdownRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
