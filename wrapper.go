package taski

import (
	"sync"
	"time"
)

// outcome is what a parked waiter receives once the wrapper it is
// waiting on reaches a terminal state.
type outcome struct {
	value any
	err   error
}

// wrapper is the per-execution coordination state for one task (spec.md
// §3's TaskWrapper). Every state transition happens under mu; waiters is
// only ever touched while holding mu.
type wrapper struct {
	mu   sync.Mutex
	name string
	task Task

	state State
	value any
	err   error

	startedAt time.Time
	endedAt   time.Time

	waiters []chan outcome
}

func newWrapper(name string, task Task) *wrapper {
	return &wrapper{name: name, task: task, state: StatePending}
}

// markRunning claims the wrapper for execution. Only the first caller
// succeeds.
func (w *wrapper) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StatePending {
		return false
	}
	w.state = StateRunning
	w.startedAt = time.Now()
	return true
}

// markCompleted transitions Running -> Completed and resumes every
// parked waiter with value.
func (w *wrapper) markCompleted(value any) {
	w.mu.Lock()
	w.state = StateCompleted
	w.value = value
	w.endedAt = time.Now()
	waiters := w.waiters
	w.waiters = nil
	w.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome{value: value}
	}
}

// markFailed transitions Running -> Failed and resumes every parked
// waiter with err.
func (w *wrapper) markFailed(err error) {
	w.mu.Lock()
	w.state = StateFailed
	w.err = err
	w.endedAt = time.Now()
	waiters := w.waiters
	w.waiters = nil
	w.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome{err: err}
	}
}

// markSkipped transitions Pending -> Skipped. Any waiters that somehow
// accumulated (there should be none for a task that never started) are
// resumed with a SkippedError so they never deadlock.
func (w *wrapper) markSkipped() bool {
	w.mu.Lock()
	if w.state != StatePending {
		w.mu.Unlock()
		return false
	}
	w.state = StateSkipped
	w.err = &SkippedError{Task: w.name}
	w.endedAt = time.Now()
	waiters := w.waiters
	w.waiters = nil
	w.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome{err: w.err}
	}
	return true
}

// requestKind is the dispatch result of requestValue (spec.md §4.2's
// table): kindStart obliges the caller to run dep itself, inline.
type requestKind int

const (
	kindCompleted requestKind = iota
	kindFailed
	kindWait
	kindStart
)

type requestResult struct {
	kind  requestKind
	value any
	err   error
	// waitCh is populated only for kindWait: the caller blocks on it to
	// receive the eventual outcome.
	waitCh chan outcome
}

// requestValue is the atomic coordination primitive described in
// spec.md §4.2. Exactly one caller ever observes kindStart for a given
// wrapper, and once a wrapper reaches a terminal state every subsequent
// call returns synchronously.
func (w *wrapper) requestValue() requestResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateCompleted:
		return requestResult{kind: kindCompleted, value: w.value}
	case StateFailed:
		return requestResult{kind: kindFailed, err: w.err}
	case StateSkipped:
		return requestResult{kind: kindFailed, err: w.err}
	case StateRunning:
		ch := make(chan outcome, 1)
		w.waiters = append(w.waiters, ch)
		return requestResult{kind: kindWait, waitCh: ch}
	default: // StatePending
		ch := make(chan outcome, 1)
		w.waiters = append(w.waiters, ch)
		w.state = StateRunning
		w.startedAt = time.Now()
		return requestResult{kind: kindStart, waitCh: ch}
	}
}

// snapshot returns the wrapper's current state without mutating it.
func (w *wrapper) snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
