package taski

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is the sentinel wrapped by CycleError so callers can match it
// with errors.Is without depending on the concrete type.
var ErrCycle = errors.New("cycle detected")

// CycleError reports one or more strongly connected components found
// while building the dependency graph. Every task name that participates
// in a cycle is included, grouped by component.
type CycleError struct {
	Components [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Components))
	for _, c := range e.Components {
		parts = append(parts, strings.Join(c, " -> "))
	}
	return fmt.Sprintf("%s: %s", ErrCycle.Error(), strings.Join(parts, "; "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// TaskBodyFailure wraps an error returned by a task's Run or Clean body.
type TaskBodyFailure struct {
	Task  string
	Cause error
}

func (e *TaskBodyFailure) Error() string {
	return fmt.Sprintf("task %q failed: %s", e.Task, e.Cause)
}

func (e *TaskBodyFailure) Unwrap() error { return e.Cause }

// DependencyFailedError is raised inside a task that requested the value
// of a dependency which terminally failed.
type DependencyFailedError struct {
	Task       string
	Dependency string
	Cause      error
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("dependency %q failed for task %q: %s", e.Dependency, e.Task, e.Cause)
}

func (e *DependencyFailedError) Unwrap() error { return e.Cause }

// ErrSkipped is the sentinel behind SkippedError.
var ErrSkipped = errors.New("task skipped")

// SkippedError is synthesized for a task that never started because
// execution wound down after an earlier failure or deadlock.
type SkippedError struct {
	Task string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("task %q skipped", e.Task)
}

func (e *SkippedError) Unwrap() error { return ErrSkipped }

// AbortedError is a distinguished "user abort" error. When present among
// an execution's underlying failures, it propagates verbatim instead of
// being folded into an AggregateError.
type AbortedError struct {
	Cause error
}

func (e *AbortedError) Error() string {
	if e.Cause == nil {
		return "aborted"
	}
	return fmt.Sprintf("aborted: %s", e.Cause)
}

func (e *AbortedError) Unwrap() error { return e.Cause }

// TypeMismatchError is returned by Get when a dependency's result does
// not assert to the requested type.
type TypeMismatchError struct {
	Task   string
	Wanted string
	Got    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("task %q result is not assignable to %s (got %T)", e.Task, e.Wanted, e.Got)
}

// TaskFailure is one entry in an AggregateError: the task that failed,
// its underlying cause, and whatever output was captured for it.
type TaskFailure struct {
	Task       string
	Cause      error
	OutputTail []string
}

func (f TaskFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Task, f.Cause)
}

// AggregateError is the failure value surfaced from Run/Clean/RunAndClean
// when one or more tasks failed. Entries are deduplicated by underlying
// error identity: if the same underlying cause reaches the aggregate
// through more than one path (e.g. a dependent re-raises its dependency's
// failure), it is recorded once.
type AggregateError struct {
	Failures []TaskFailure
}

// newAggregateError builds an AggregateError from failures, deduplicating
// by underlying-error identity and preserving first-seen order.
func newAggregateError(failures []TaskFailure) *AggregateError {
	seen := make(map[error]struct{}, len(failures))
	out := make([]TaskFailure, 0, len(failures))
	for _, f := range failures {
		cause := rootCause(f.Cause)
		if _, ok := seen[cause]; ok {
			continue
		}
		seen[cause] = struct{}{}
		out = append(out, f)
	}
	return &AggregateError{Failures: out}
}

// rootCause unwraps DependencyFailedError/TaskBodyFailure chains down to
// the original error object, which is what dedup compares by identity.
func rootCause(err error) error {
	for {
		switch e := err.(type) {
		case *DependencyFailedError:
			err = e.Cause
		case *TaskBodyFailure:
			err = e.Cause
		default:
			return err
		}
	}
}

func (e *AggregateError) Error() string {
	if len(e.Failures) == 0 {
		return "no tasks failed"
	}
	lines := make([]string, 0, len(e.Failures)+1)
	lines = append(lines, fmt.Sprintf("%d task(s) failed", len(e.Failures)))
	for _, f := range e.Failures {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Task, f.Cause))
	}
	return strings.Join(lines, "\n")
}

// Cause returns the first underlying error, for standard unwrapping.
func (e *AggregateError) Cause() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Cause
}

func (e *AggregateError) Unwrap() error { return e.Cause() }

// Includes reports whether any underlying error in the aggregate matches
// target per errors.Is.
func (e *AggregateError) Includes(target error) bool {
	for _, f := range e.Failures {
		if errors.Is(f.Cause, target) {
			return true
		}
	}
	return false
}

// firstAborted returns the first *AbortedError among failures, if any.
// When present it must propagate verbatim instead of the aggregate.
func firstAborted(failures []TaskFailure) *AbortedError {
	for _, f := range failures {
		var ab *AbortedError
		if errors.As(f.Cause, &ab) {
			return ab
		}
	}
	return nil
}
