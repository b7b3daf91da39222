package graph

import (
	"errors"
	"strings"
)

// ErrInvalid wraps structural graph-construction failures (bad names,
// dangling edges, duplicates).
var ErrInvalid = errors.New("invalid task graph")

// CycleError reports every strongly connected component of size ≥ 2 (and
// any self-loop) found while validating the graph, not just one witness
// cycle.
type CycleError struct {
	Components [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Components))
	for _, c := range e.Components {
		parts = append(parts, strings.Join(c, ", "))
	}
	return "cycle detected: " + strings.Join(parts, "; ")
}
