package taski

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ahogappa/taski/internal/graph"
	"github.com/google/uuid"
)

// Facade is the process-scoped coordination seam between the executor
// and external collaborators: observers pull state from it during
// callbacks instead of receiving everything as arguments (spec.md §4.4).
type Facade struct {
	// ExecutionID correlates every log line and observer callback with
	// one Run/Clean/RunAndClean call.
	ExecutionID string

	mu        sync.RWMutex
	phase     Phase
	root      string
	graphHash graph.Hash
	output    *OutputHub

	runtimeDepsMu sync.Mutex
	runtimeDeps   []Edge

	observers []Observer
}

// Edge is a dependency edge, either statically discovered or recorded
// at runtime.
type Edge struct {
	From string
	To   string
}

func newFacade() *Facade {
	return &Facade{ExecutionID: uuid.NewString(), output: newOutputHub()}
}

// AddObserver registers obs to receive lifecycle notifications for the
// remainder of this execution. If obs embeds BaseObserver (or otherwise
// implements the unexported facade-injection hook), the facade injects
// itself so the observer can pull state later.
func (f *Facade) AddObserver(obs Observer) {
	obs.setFacade(f)
	f.mu.Lock()
	f.observers = append(f.observers, obs)
	f.mu.Unlock()
}

// CurrentPhase returns the phase currently executing.
func (f *Facade) CurrentPhase() Phase {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.phase
}

// RootTask returns the name of the root task for this execution.
func (f *Facade) RootTask() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.root
}

// GraphHash returns the static dependency graph's content hash.
func (f *Facade) GraphHash() graph.Hash {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.graphHash
}

// OutputStream exposes the per-task output capture hub (spec.md §6.3).
func (f *Facade) OutputStream() *OutputHub {
	return f.output
}

// RuntimeDependencies returns a snapshot of every edge discovered during
// execution that the static graph did not already contain.
func (f *Facade) RuntimeDependencies() []Edge {
	f.runtimeDepsMu.Lock()
	defer f.runtimeDepsMu.Unlock()
	out := make([]Edge, len(f.runtimeDeps))
	copy(out, f.runtimeDeps)
	return out
}

func (f *Facade) recordRuntimeDependency(e Edge) {
	f.runtimeDepsMu.Lock()
	f.runtimeDeps = append(f.runtimeDeps, e)
	f.runtimeDepsMu.Unlock()
}

func (f *Facade) setPhase(p Phase) {
	f.mu.Lock()
	f.phase = p
	f.mu.Unlock()
}

func (f *Facade) setRoot(name string) {
	f.mu.Lock()
	f.root = name
	f.mu.Unlock()
}

func (f *Facade) setGraphHash(h graph.Hash) {
	f.mu.Lock()
	f.graphHash = h
	f.mu.Unlock()
}

func (f *Facade) snapshotObservers() []Observer {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Observer, len(f.observers))
	copy(out, f.observers)
	return out
}

// dispatch invokes fn for every registered observer, isolating panics so
// one misbehaving observer never prevents the rest from running (spec.md
// §4.4's dispatch discipline).
func (f *Facade) dispatch(fn func(Observer)) {
	for _, obs := range f.snapshotObservers() {
		safeDispatch(obs, fn)
	}
}

func safeDispatch(obs Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "taski: observer panic: %v\n", r)
		}
	}()
	fn(obs)
}

func (f *Facade) emitReady()             { f.dispatch(func(o Observer) { o.OnReady() }) }
func (f *Facade) emitStart()             { f.dispatch(func(o Observer) { o.OnStart() }) }
func (f *Facade) emitStop()              { f.dispatch(func(o Observer) { o.OnStop() }) }
func (f *Facade) emitPhaseStarted(p Phase)   { f.dispatch(func(o Observer) { o.OnPhaseStarted(p) }) }
func (f *Facade) emitPhaseCompleted(p Phase) { f.dispatch(func(o Observer) { o.OnPhaseCompleted(p) }) }
func (f *Facade) emitGroupStarted(task, group string) {
	f.dispatch(func(o Observer) { o.OnGroupStarted(task, group) })
}
func (f *Facade) emitGroupCompleted(task, group string) {
	f.dispatch(func(o Observer) { o.OnGroupCompleted(task, group) })
}
func (f *Facade) emitTaskUpdated(task string, previous, current State, phase Phase) {
	now := time.Now()
	f.dispatch(func(o Observer) { o.OnTaskUpdated(task, previous, current, phase, now) })
}
