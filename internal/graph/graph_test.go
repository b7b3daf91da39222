package graph

import (
	"errors"
	"testing"
)

func TestNew_LinearChain(t *testing.T) {
	g, err := New([]string{"A", "B", "C"}, []Edge{{From: "A", To: "B"}, {From: "B", To: "C"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := g.Dependencies("A"); len(got) != 1 || got[0] != "B" {
		t.Fatalf("A deps = %v, want [B]", got)
	}
	if got := g.Dependents("C"); len(got) != 1 || got[0] != "B" {
		t.Fatalf("C dependents = %v, want [B]", got)
	}
	if g.Depth("C") != 2 {
		t.Fatalf("depth(C) = %d, want 2", g.Depth("C"))
	}
	order := g.TopologicalOrder()
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	if !(pos["C"] < pos["B"] && pos["B"] < pos["A"]) {
		t.Fatalf("topo order %v does not put dependencies before dependents", order)
	}
}

func TestNew_DeterministicHash(t *testing.T) {
	names := []string{"A", "B", "C"}
	edges := []Edge{{From: "A", To: "B"}, {From: "B", To: "C"}}
	g1, err := New(names, edges)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g2, err := New([]string{"C", "B", "A"}, []Edge{{From: "B", To: "C"}, {From: "A", To: "B"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g1.Hash() != g2.Hash() {
		t.Fatalf("hash not invariant to input order: %s vs %s", g1.Hash(), g2.Hash())
	}

	g3, err := New(names, []Edge{{From: "A", To: "C"}, {From: "B", To: "C"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g1.Hash() == g3.Hash() {
		t.Fatalf("different edge sets produced the same hash")
	}
}

func TestNew_UnknownEdgeEndpoint(t *testing.T) {
	_, err := New([]string{"A"}, []Edge{{From: "A", To: "missing"}})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestNew_SelfLoopIsCycle(t *testing.T) {
	_, err := New([]string{"A"}, []Edge{{From: "A", To: "A"}})
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CycleError", err)
	}
	if len(ce.Components) != 1 || len(ce.Components[0]) != 1 || ce.Components[0][0] != "A" {
		t.Fatalf("components = %v, want [[A]]", ce.Components)
	}
}

func TestNew_DuplicateNamesRejected(t *testing.T) {
	_, err := New([]string{"A", "A"}, nil)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestNew_ThreeCycleReportsAllMembers(t *testing.T) {
	_, err := New([]string{"A", "B", "C"}, []Edge{
		{From: "A", To: "B"},
		{From: "B", To: "C"},
		{From: "C", To: "A"},
	})
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CycleError", err)
	}
	if len(ce.Components) != 1 {
		t.Fatalf("components = %v, want exactly one SCC", ce.Components)
	}
	got := map[string]bool{}
	for _, n := range ce.Components[0] {
		got[n] = true
	}
	for _, want := range []string{"A", "B", "C"} {
		if !got[want] {
			t.Fatalf("cycle error %v is missing member %q", ce.Components, want)
		}
	}
}
