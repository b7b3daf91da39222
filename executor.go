package taski

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahogappa/taski/internal/graph"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// execution is the scheduling runtime for one Run/Clean call: it owns
// the registry of wrappers, the worker-pool semaphore, and the failure
// accumulator for the duration of exactly one call (spec.md §3's
// Ownership rule: "The Executor exclusively owns the Registry, Context,
// WorkerPool, and completion mailbox for the duration of one execute
// call").
type execution struct {
	phase  Phase
	args   Args
	facade *Facade
	sem    *semaphore.Weighted

	graph      *graph.Graph
	staticDeps map[string]map[string]bool // name -> set of statically-known dependency names

	mu         sync.Mutex
	wrappers   map[string]*wrapper
	tasksByName map[string]Task

	failuresMu sync.Mutex
	failures   []TaskFailure

	parkMu     sync.Mutex
	live       int
	parked     int
	deadlockCh chan struct{}
	deadlockOnce sync.Once

	// eg is the pool's teardown group: every goroutine spawnConcurrent
	// starts runs under it, so runExecution can drain all of them with one
	// Wait before the skip sweep and on_stop (spec.md §4.3.5 point 4:
	// "outstanding workers finish their current coroutines and their
	// completions are still consumed"). Individual task failures are
	// recorded through recordFailure/the AggregateError, not through eg's
	// own error return, so eg.Go's func always returns nil.
	eg errgroup.Group
}

func newExecution(phase Phase, workers int, args Args, facade *Facade, g *graph.Graph, tasks map[string]Task) *execution {
	staticDeps := make(map[string]map[string]bool, len(tasks))
	if g != nil {
		for _, name := range g.Names() {
			deps := make(map[string]bool)
			for _, d := range g.Dependencies(name) {
				deps[d] = true
			}
			staticDeps[name] = deps
		}
	}
	return &execution{
		phase:       phase,
		args:        args,
		facade:      facade,
		sem:         semaphore.NewWeighted(int64(workers)),
		graph:       g,
		staticDeps:  staticDeps,
		wrappers:    make(map[string]*wrapper, len(tasks)),
		tasksByName: tasks,
		deadlockCh:  make(chan struct{}),
	}
}

func (e *execution) getOrCreateWrapper(name string, task Task) *wrapper {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.wrappers[name]; ok {
		return w
	}
	w := newWrapper(name, task)
	e.wrappers[name] = w
	e.tasksByName[name] = task
	return w
}

func (e *execution) lookupTask(name string) (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasksByName[name]
	return t, ok
}

func (e *execution) isStaticEdge(from, to string) bool {
	deps, ok := e.staticDeps[from]
	if !ok {
		return false
	}
	return deps[to]
}

func (e *execution) recordFailure(task string, err error) {
	e.failuresMu.Lock()
	e.failures = append(e.failures, TaskFailure{Task: task, Cause: err, OutputTail: e.facade.output.tail(task)})
	e.failuresMu.Unlock()
}

func (e *execution) snapshotFailures() []TaskFailure {
	e.failuresMu.Lock()
	defer e.failuresMu.Unlock()
	out := make([]TaskFailure, len(e.failures))
	copy(out, e.failures)
	return out
}

// -- goroutine / park bookkeeping (runtime deadlock backstop) --

func (e *execution) goroutineStarted() {
	e.parkMu.Lock()
	e.live++
	e.parkMu.Unlock()
}

func (e *execution) goroutineFinished() {
	e.parkMu.Lock()
	e.live--
	e.parkMu.Unlock()
}

func (e *execution) parkBegin() {
	e.parkMu.Lock()
	e.parked++
	stuck := e.live > 0 && e.parked >= e.live
	e.parkMu.Unlock()
	if stuck {
		e.deadlockOnce.Do(func() { close(e.deadlockCh) })
	}
}

func (e *execution) parkEnd() {
	e.parkMu.Lock()
	e.parked--
	e.parkMu.Unlock()
}

// -- claim/transition helpers, each pairing a wrapper mutation with the
// matching observer notification --

func (e *execution) claim(w *wrapper) bool {
	if w.markRunning() {
		e.facade.emitTaskUpdated(w.name, StatePending, StateRunning, e.phase)
		return true
	}
	return false
}

func (e *execution) complete(w *wrapper, value any) {
	w.markCompleted(value)
	e.facade.emitTaskUpdated(w.name, StateRunning, StateCompleted, e.phase)
	e.cascade(w.name)
}

// cascade proactively spawns any dependent of name whose own static
// dependencies have all just become Completed. This is required for the
// Clean phase, where a node's Clean body has no natural reason to call
// Get on the things it must run after (dependents clean before
// dependencies, the reverse of the Run-phase pull direction) — without
// it, everything but the pre-seeded leaves of the reversed graph would
// sit Pending forever. It is a no-op acceleration during Run, since any
// dependent that would reach readiness here will also reach it via its
// own Get call; claim() already guarantees at-most-once execution
// either way.
func (e *execution) cascade(name string) {
	if e.graph == nil || !e.graph.Has(name) {
		return
	}
	for _, dependent := range e.graph.Dependents(name) {
		e.spawnIfReady(dependent)
	}
}

func (e *execution) spawnIfReady(name string) {
	for dep := range e.staticDeps[name] {
		w, ok := e.wrapperIfExists(dep)
		if !ok || w.snapshot() != StateCompleted {
			return
		}
	}
	task, ok := e.lookupTask(name)
	if !ok {
		return
	}
	e.spawnConcurrent(e.getOrCreateWrapper(name, task))
}

func (e *execution) wrapperIfExists(name string) (*wrapper, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.wrappers[name]
	return w, ok
}

func (e *execution) fail(w *wrapper, err error) {
	w.markFailed(err)
	e.facade.emitTaskUpdated(w.name, StateRunning, StateFailed, e.phase)
	e.recordFailure(w.name, err)
}

func (e *execution) skip(w *wrapper) {
	if w.markSkipped() {
		e.facade.emitTaskUpdated(w.name, StatePending, StateSkipped, e.phase)
	}
}

// runBody executes task's Run or Clean body, recovering a panic into an
// error so one misbehaving task can't take down the whole execution.
func (e *execution) runBody(w *wrapper) (value any, err error) {
	ctx := &Context{exec: e, self: w.name, Args: e.args}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %q panicked: %v", w.name, r)
		}
	}()
	if e.phase == PhaseClean {
		if cleaner, ok := w.task.(Cleaner); ok {
			return cleaner.Clean(ctx)
		}
		return nil, nil
	}
	return w.task.Run(ctx)
}

// executeAndFinalize runs w's body to completion and applies the
// resulting state transition, returning the same value/error a waiter
// would observe.
func (e *execution) executeAndFinalize(w *wrapper) (any, error) {
	value, err := e.runBody(w)
	if err != nil {
		wrapped := &TaskBodyFailure{Task: w.name, Cause: err}
		e.fail(w, wrapped)
		return nil, wrapped
	}
	e.complete(w, value)
	return value, nil
}

func (e *execution) acquireSlot() error {
	return e.sem.Acquire(context.Background(), 1)
}

func (e *execution) releaseSlot() {
	e.sem.Release(1)
}

// spawnConcurrent claims w and, if successful, runs its body on a new
// goroutine bounded by the worker-pool semaphore. Safe to call on a
// wrapper that is already claimed (e.g. a root that is also a graph
// leaf): the claim simply fails and spawnConcurrent is a no-op.
func (e *execution) spawnConcurrent(w *wrapper) {
	if !e.claim(w) {
		return
	}
	e.goroutineStarted()
	e.eg.Go(func() error {
		defer e.goroutineFinished()
		if err := e.acquireSlot(); err != nil {
			e.fail(w, err)
			return nil
		}
		e.executeAndFinalize(w)
		e.releaseSlot()
		return nil
	})
}

// requestValue implements spec.md §4.2/§4.3.3: resolve dep's wrapper,
// record a runtime edge when dep was not statically known, then dispatch
// on the wrapper's current state. The "start" case runs dep inline on
// the calling goroutine (no queue round trip); the "wait" case parks by
// blocking on a channel, releasing this goroutine's worker-pool slot for
// the duration so another task can use it.
func (e *execution) requestValue(requesterName string, dep Task) (any, error) {
	depName := dep.Name()
	w := e.getOrCreateWrapper(depName, dep)

	if !e.isStaticEdge(requesterName, depName) {
		e.facade.recordRuntimeDependency(Edge{From: requesterName, To: depName})
	}

	res := w.requestValue()
	switch res.kind {
	case kindCompleted:
		return res.value, nil
	case kindFailed:
		return nil, &DependencyFailedError{Task: requesterName, Dependency: depName, Cause: res.err}
	case kindStart:
		e.facade.emitTaskUpdated(depName, StatePending, StateRunning, e.phase)
		value, err := e.executeAndFinalize(w)
		if err != nil {
			return nil, &DependencyFailedError{Task: requesterName, Dependency: depName, Cause: err}
		}
		return value, nil
	default: // kindWait
		e.parkBegin()
		e.releaseSlot()
		var out outcome
		select {
		case out = <-res.waitCh:
		case <-e.deadlockCh:
			out = outcome{err: &DependencyFailedError{Task: requesterName, Dependency: depName, Cause: fmt.Errorf("taski: deadlocked waiting on %q", depName)}}
		}
		if acqErr := e.acquireSlot(); acqErr != nil && out.err == nil {
			out.err = acqErr
		}
		e.parkEnd()
		if out.err != nil {
			if _, ok := out.err.(*DependencyFailedError); ok {
				return nil, out.err
			}
			return nil, &DependencyFailedError{Task: requesterName, Dependency: depName, Cause: out.err}
		}
		return out.value, nil
	}
}

// runExecution drives one phase to completion: it pre-seeds every
// dependency-free node plus the root, waits for the root to reach a
// terminal state (or for the deadlock backstop to fire), then performs
// the skip sweep for anything left Pending.
func runExecution(e *execution, root Task, names []string) (any, *AggregateError) {
	rootW := e.getOrCreateWrapper(root.Name(), root)

	for _, name := range names {
		w := e.getOrCreateWrapper(name, e.tasksByName[name])
		deps := e.staticDeps[name]
		if len(deps) == 0 {
			e.spawnConcurrent(w)
		}
	}
	e.spawnConcurrent(rootW)

	res := rootW.requestValue()
	var rootValue any
	var rootErr error
	switch res.kind {
	case kindCompleted:
		rootValue = res.value
	case kindFailed:
		rootErr = res.err
	case kindStart:
		rootValue, rootErr = e.executeAndFinalize(rootW)
	default:
		select {
		case out := <-res.waitCh:
			rootValue, rootErr = out.value, out.err
		case <-e.deadlockCh:
			rootErr = fmt.Errorf("taski: execution deadlocked before root completed")
		}
	}

	// Drain every goroutine spawnConcurrent started (pre-seeded leaves,
	// cascaded Clean-phase dependents, parked-then-resumed waiters) before
	// the skip sweep runs and on_stop fires, so no wrapper is still Running
	// when the caller observes the result (spec.md §4.3.5 point 4, §8
	// scenario 6's "B is either Completed or Skipped but never Running at
	// termination"). Every outstanding goroutine is guaranteed to reach
	// goroutineFinished: it either completes its body naturally or, if
	// parked, is unblocked by the deadlock backstop closing deadlockCh. The
	// pool's eg.Go funcs always return nil, so the error Wait returns here
	// is always nil and is intentionally discarded.
	_ = e.eg.Wait()

	// Skip sweep: anything never claimed is done for good.
	e.mu.Lock()
	pending := make([]*wrapper, 0, len(e.wrappers))
	for _, w := range e.wrappers {
		if w.snapshot() == StatePending {
			pending = append(pending, w)
		}
	}
	e.mu.Unlock()
	for _, w := range pending {
		e.skip(w)
	}

	failures := e.snapshotFailures()
	if rootErr != nil && rootW.snapshot() != StateFailed {
		// Root itself never failed directly (e.g. deadlock backstop, or a
		// DependencyFailedError bubbled from a parked Get) — record it so
		// the aggregate reflects why the root has no result.
		failures = append(failures, TaskFailure{Task: root.Name(), Cause: rootErr, OutputTail: e.facade.output.tail(root.Name())})
	}

	if len(failures) == 0 {
		return rootValue, nil
	}
	return nil, newAggregateError(failures)
}
