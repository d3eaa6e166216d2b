package recipe

import (
	"testing"

	"rbuild/internal/graph"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// chainGraph builds a -> b -> c (a depends on b, b depends on c).
func chainGraph(t *testing.T) (*graph.Graph, int64, int64, int64) {
	g := graph.New()
	c, err := g.Add(&graph.Target{Path: "c"}, nil)
	must(t, err)
	b, err := g.Add(&graph.Target{Path: "b"}, []int64{c})
	must(t, err)
	a, err := g.Add(&graph.Target{Path: "a"}, []int64{b})
	must(t, err)
	must(t, g.Finalize())
	return g, a, b, c
}

func TestCompileClosureAndOrder(t *testing.T) {
	g, a, b, c := chainGraph(t)
	rec, err := Compile(g, []int64{a})
	must(t, err)

	if len(rec.Closure) != 3 {
		t.Fatalf("closure = %v, want all 3 nodes", rec.Closure)
	}
	pos := make(map[int64]int, len(rec.Order))
	for i, id := range rec.Order {
		pos[id] = i
	}
	if pos[c] > pos[b] || pos[b] > pos[a] {
		t.Fatalf("order %v does not place dependencies before dependents", rec.Order)
	}
	if !rec.Inputs[c] || rec.Inputs[a] || rec.Inputs[b] {
		t.Fatalf("inputs = %v, want only the leaf %d", rec.Inputs, c)
	}
}

func TestCompileUnrelatedBranchExcluded(t *testing.T) {
	g := graph.New()
	leaf, err := g.Add(&graph.Target{Path: "leaf"}, nil)
	must(t, err)
	wanted, err := g.Add(&graph.Target{Path: "wanted"}, []int64{leaf})
	must(t, err)
	_, err = g.Add(&graph.Target{Path: "unrelated"}, nil)
	must(t, err)
	must(t, g.Finalize())

	rec, err := Compile(g, []int64{wanted})
	must(t, err)
	if len(rec.Closure) != 2 {
		t.Fatalf("closure = %v, want exactly {leaf, wanted}", rec.Closure)
	}
}

func TestCompileRejectsUnknownOutput(t *testing.T) {
	g := graph.New()
	g.Add(&graph.Target{Path: "a"}, nil)
	must(t, g.Finalize())
	if _, err := Compile(g, []int64{99}); err == nil {
		t.Fatal("expected error for unknown output id")
	}
}

// mutualGraph builds two targets that each declare the other as a
// predecessor, the same shape config.Parse produces for the input
// "path a deps 1  path b deps 0" (SPEC_FULL.md's cycle scenario).
func mutualGraph(t *testing.T) (*graph.Graph, int64, int64) {
	g := graph.New()
	a, err := g.Add(&graph.Target{Path: "a"}, []int64{1})
	must(t, err)
	b, err := g.Add(&graph.Target{Path: "b"}, []int64{0})
	must(t, err)
	must(t, g.Finalize())
	return g, a, b
}

func TestCompileRejectsCycle(t *testing.T) {
	g, a, _ := mutualGraph(t)
	_, err := Compile(g, []int64{a})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	ce, ok := err.(*CycleError)
	if !ok {
		t.Fatalf("err = %T, want *CycleError", err)
	}
	if len(ce.Paths) < 2 {
		t.Fatalf("CycleError.Paths = %v, want at least both targets named", ce.Paths)
	}
}

func TestCompileCycleNotReachableFromRequestIsFine(t *testing.T) {
	g := graph.New()
	// a <-> b form a cycle, but c is independent and does not reach it.
	a, err := g.Add(&graph.Target{Path: "a"}, []int64{1})
	must(t, err)
	_, err = g.Add(&graph.Target{Path: "b"}, []int64{0})
	must(t, err)
	c, err := g.Add(&graph.Target{Path: "c"}, nil)
	must(t, err)
	must(t, g.Finalize())

	if _, err := Compile(g, []int64{a}); err == nil {
		t.Fatal("expected the a<->b cycle to be reported when a is requested")
	}
	rec, err := Compile(g, []int64{c})
	must(t, err)
	if len(rec.Closure) != 1 || !rec.Closure[c] {
		t.Fatalf("closure = %v, want just {c}", rec.Closure)
	}
}
