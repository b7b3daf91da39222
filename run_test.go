package taski_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ahogappa/taski"
	"github.com/ahogappa/taski/examples"
)

func TestRun_LinearChain(t *testing.T) {
	v, err := taski.Run(examples.NewLinearChain())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v != "A->B->C" {
		t.Fatalf("v = %q, want %q", v, "A->B->C")
	}
}

func TestRun_Diamond_SharedDependencyRunsOnce(t *testing.T) {
	v, err := taski.Run(examples.NewDiamond())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v != "Root(A(C), B(C))" {
		t.Fatalf("v = %q, want %q", v, "Root(A(C), B(C))")
	}
}

func TestRun_ParallelIndependence_RunsConcurrently(t *testing.T) {
	delay := 100 * time.Millisecond
	start := time.Now()
	v, err := taski.Run(examples.NewParallelIndependence(delay), taski.WithWorkers(2))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v != "A+B" {
		t.Fatalf("v = %q, want %q", v, "A+B")
	}
	if elapsed >= 2*delay {
		t.Fatalf("elapsed %v suggests A and B ran sequentially, not concurrently", elapsed)
	}
}

func TestRun_StaticReportPipeline(t *testing.T) {
	v, err := taski.Run(examples.NewStaticReportPipeline())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v != "published:report(raw-data)" {
		t.Fatalf("v = %q, want %q", v, "published:report(raw-data)")
	}
}

func TestRun_ThreeCycle_FailsBeforeAnyBodyRuns(t *testing.T) {
	_, err := taski.Run(examples.NewThreeCycle())
	var ce *taski.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v (%T), want *taski.CycleError", err, err)
	}
	if len(ce.Components) != 1 || len(ce.Components[0]) != 3 {
		t.Fatalf("components = %v, want one component of 3 names", ce.Components)
	}
}

func TestRun_DependencyFailure_AggregatesExactlyOne(t *testing.T) {
	_, err := taski.Run(examples.NewDependencyFailure())
	var agg *taski.AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("err = %v (%T), want *taski.AggregateError", err, err)
	}
	if len(agg.Failures) != 1 {
		t.Fatalf("Failures = %v, want exactly one", agg.Failures)
	}
	if agg.Failures[0].Task != "A" {
		t.Fatalf("failing task = %q, want A", agg.Failures[0].Task)
	}
}

func TestRun_DeadlockRace_WaitsForOutstandingWorkers(t *testing.T) {
	longSleep := 150 * time.Millisecond
	start := time.Now()
	_, err := taski.Run(examples.NewDeadlockRace(longSleep), taski.WithWorkers(2))
	elapsed := time.Since(start)

	var agg *taski.AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("err = %v (%T), want *taski.AggregateError", err, err)
	}
	sawA := false
	for _, f := range agg.Failures {
		if f.Task == "A" {
			sawA = true
		}
	}
	if !sawA {
		t.Fatalf("Failures = %v, want at least A's failure", agg.Failures)
	}
	// Run must not return until B's in-flight body has actually finished
	// (spec.md §4.3.5 point 4: outstanding workers finish their current
	// coroutines before their completions are consumed), so elapsed tracks
	// B's sleep, not A's fast failure.
	if elapsed < longSleep {
		t.Fatalf("Run took only %v, less than B's %v sleep; B must not still be Running when Run returns", elapsed, longSleep)
	}
	// Still bounded, not indefinite.
	if elapsed >= 5*longSleep {
		t.Fatalf("Run took %v; termination should be bounded", elapsed)
	}
}

func TestClean_RunsInReverseOrder(t *testing.T) {
	var order []string
	root := cleanOrderTask(&order)
	if _, err := taski.RunAndClean(root); err != nil {
		t.Fatalf("RunAndClean: %v", err)
	}
	if len(order) != 2 || order[0] != "root" || order[1] != "child" {
		t.Fatalf("clean order = %v, want [root, child] (dependents clean before dependencies)", order)
	}
}

type recordingTask struct {
	name    string
	deps    []taski.Task
	order   *[]string
	runFn   func(ctx *taski.Context) (any, error)
	cleanFn func(ctx *taski.Context) (any, error)
}

func (t *recordingTask) Name() string                    { return t.name }
func (t *recordingTask) Dependencies() []taski.Task       { return t.deps }
func (t *recordingTask) Run(ctx *taski.Context) (any, error) {
	if t.runFn != nil {
		return t.runFn(ctx)
	}
	return nil, nil
}
func (t *recordingTask) Clean(ctx *taski.Context) (any, error) {
	*t.order = append(*t.order, t.name)
	if t.cleanFn != nil {
		return t.cleanFn(ctx)
	}
	return nil, nil
}

func cleanOrderTask(order *[]string) taski.Task {
	child := &recordingTask{name: "child", order: order}
	root := &recordingTask{name: "root", order: order, deps: []taski.Task{child}, runFn: func(ctx *taski.Context) (any, error) {
		_, err := taski.Get[any](ctx, child)
		return nil, err
	}}
	return root
}
