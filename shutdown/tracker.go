// Package shutdown coordinates graceful shutdown: it tracks in-flight
// analyses, runs cleanup handlers in priority order and turns a second
// interrupt into an immediate exit.
package shutdown

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrTrackerClosed is returned when an operation starts after shutdown began.
	ErrTrackerClosed = errors.New("operation tracker is closed")

	// ErrWaitTimeout is returned when operations outlive the wait.
	ErrWaitTimeout = errors.New("wait timeout: operations did not complete in time")
)

// OperationTracker counts in-flight operations and lets shutdown wait for
// them. Once closed, Start refuses new work.
type OperationTracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	active atomic.Int64
	closed bool
}

// NewOperationTracker returns an open tracker.
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{}
}

// Start registers one operation. When it returns true the caller must call
// Done exactly once.
func (t *OperationTracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	t.active.Add(1)
	return true
}

// Done marks an operation as complete.
func (t *OperationTracker) Done() {
	t.active.Add(-1)
	t.wg.Done()
}

// Wait blocks until every operation is done or timeout passes.
func (t *OperationTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Close refuses new operations; running ones continue.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// ActiveCount returns the number of running operations.
func (t *OperationTracker) ActiveCount() int64 {
	return t.active.Load()
}

// IsClosed reports whether Close was called.
func (t *OperationTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
