package taski

import (
	"fmt"
	"runtime"

	"github.com/ahogappa/taski/internal/graph"
)

// Option configures one Run/Clean/RunAndClean call.
type Option func(*runConfig)

type runConfig struct {
	workers   int
	args      map[string]any
	observers []Observer
}

// WithWorkers sets the worker-pool size (the bound on concurrently
// active, non-suspended task bodies). It must be a positive integer;
// omitting it defaults to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *runConfig) { c.workers = n }
}

// WithArgs supplies the frozen argument map exposed to every task body
// as ctx.Args.
func WithArgs(args map[string]any) Option {
	return func(c *runConfig) { c.args = args }
}

// WithObserver registers an observer for this execution only.
func WithObserver(obs Observer) Option {
	return func(c *runConfig) { c.observers = append(c.observers, obs) }
}

func resolveConfig(opts []Option) (runConfig, error) {
	cfg := runConfig{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers <= 0 {
		return cfg, fmt.Errorf("taski: workers must be a positive integer, got %d", cfg.workers)
	}
	return cfg, nil
}

// collectStatic walks root's StaticDependencies() (spec.md §9 option
// (a)) transitively, treating any task that doesn't implement the
// interface as a leaf — "source unavailable" in spec.md §4.1 terms. It
// returns every reachable task name, the edges between them, and a
// lookup table from name to Task.
func collectStatic(root Task) (names []string, edges []graph.Edge, tasks map[string]Task, err error) {
	tasks = make(map[string]Task)
	var order []string

	var visit func(t Task) error
	visit = func(t Task) error {
		name := t.Name()
		if name == "" {
			return fmt.Errorf("taski: a task returned an empty Name()")
		}
		if existing, ok := tasks[name]; ok {
			if existing != t {
				return fmt.Errorf("taski: two distinct tasks share the name %q", name)
			}
			return nil
		}
		tasks[name] = t
		order = append(order, name)

		if sd, ok := t.(StaticDependencies); ok {
			for _, dep := range sd.Dependencies() {
				if dep == nil {
					continue
				}
				edges = append(edges, graph.Edge{From: name, To: dep.Name()})
				// visit returns early for a task already seen, and errors if
				// a different task already holds this name.
				if verr := visit(dep); verr != nil {
					return verr
				}
			}
		}
		return nil
	}

	if err := visit(root); err != nil {
		return nil, nil, nil, err
	}
	return order, edges, tasks, nil
}

func buildExecution(phase Phase, root Task, cfg runConfig) (*execution, error) {
	names, edges, tasks, err := collectStatic(root)
	if err != nil {
		return nil, err
	}

	g, err := graph.New(names, edges)
	if err != nil {
		var cycleErr *graph.CycleError
		if ok := asCycleError(err, &cycleErr); ok {
			return nil, &CycleError{Components: cycleErr.Components}
		}
		return nil, err
	}

	facade := newFacade()
	for _, obs := range cfg.observers {
		facade.AddObserver(obs)
	}
	facade.setRoot(root.Name())
	facade.setGraphHash(g.Hash())
	facade.setPhase(phase)

	e := newExecution(phase, cfg.workers, NewArgs(cfg.args), facade, g, tasks)
	return e, nil
}

func asCycleError(err error, target **graph.CycleError) bool {
	ce, ok := err.(*graph.CycleError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

// Run executes the DAG rooted at root and returns its result. Tasks run
// concurrently up to the configured worker count; a task that reads
// another task's result via Get suspends until that task completes. If
// one or more tasks fail, Run returns an *AggregateError (or, if any
// underlying failure is an *AbortedError, that error verbatim).
func Run(root Task, opts ...Option) (any, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	e, err := buildExecution(PhaseRun, root, cfg)
	if err != nil {
		return nil, err
	}

	e.facade.emitReady()
	e.facade.emitStart()
	e.facade.emitPhaseStarted(PhaseRun)

	value, aggErr := runExecution(e, root, e.graph.Names())

	e.facade.emitPhaseCompleted(PhaseRun)
	e.facade.emitStop()

	if aggErr == nil {
		return value, nil
	}
	if ab := firstAborted(aggErr.Failures); ab != nil {
		return nil, ab
	}
	return nil, aggErr
}

// Clean runs root's (and its dependencies') Clean bodies in reverse
// dependency order: a task's Clean runs before the Clean of whatever it
// depended on. Tasks that don't implement Cleaner are treated as no-ops
// during this phase.
func Clean(root Task, opts ...Option) (any, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	e, err := buildExecution(PhaseClean, root, cfg)
	if err != nil {
		return nil, err
	}

	reversed, err := reverseGraph(e.graph)
	if err != nil {
		return nil, err
	}
	e.graph = reversed
	e.staticDeps = reverseDeps(e.staticDeps)

	e.facade.emitReady()
	e.facade.emitStart()
	e.facade.emitPhaseStarted(PhaseClean)

	value, aggErr := runExecution(e, root, e.graph.Names())

	e.facade.emitPhaseCompleted(PhaseClean)
	e.facade.emitStop()

	if aggErr == nil {
		return value, nil
	}
	if ab := firstAborted(aggErr.Failures); ab != nil {
		return nil, ab
	}
	return nil, aggErr
}

// RunAndClean runs Run, then always runs Clean afterward (even if Run
// failed), matching spec.md §6.1.
func RunAndClean(root Task, opts ...Option) (any, error) {
	value, runErr := Run(root, opts...)
	_, cleanErr := Clean(root, opts...)
	if runErr != nil {
		return nil, runErr
	}
	if cleanErr != nil {
		return nil, cleanErr
	}
	return value, nil
}

func reverseGraph(g *graph.Graph) (*graph.Graph, error) {
	names := g.Names()
	var edges []graph.Edge
	for _, n := range names {
		for _, dep := range g.Dependencies(n) {
			edges = append(edges, graph.Edge{From: dep, To: n})
		}
	}
	return graph.New(names, edges)
}

func reverseDeps(deps map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(deps))
	for name := range deps {
		out[name] = make(map[string]bool)
	}
	for name, ds := range deps {
		for d := range ds {
			if out[d] == nil {
				out[d] = make(map[string]bool)
			}
			out[d][name] = true
		}
	}
	return out
}
