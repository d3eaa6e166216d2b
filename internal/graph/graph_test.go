package graph

import (
	"testing"

	"rbuild/internal/command"
)

func TestAddAssignsDenseIDs(t *testing.T) {
	g := New()
	a, err := g.Add(&Target{Path: "a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Add(&Target{Path: "b"}, []int64{a})
	if err != nil {
		t.Fatal(err)
	}
	if a != 0 || b != 1 {
		t.Fatalf("got ids %d, %d, want 0, 1", a, b)
	}
	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
}

func TestAddAllowsForwardReference(t *testing.T) {
	// "a" names "b" as a predecessor before "b" has been added; Add must
	// accept this since edges are only wired at Finalize (this is what
	// lets the configuration loader express a cycle across two targets
	// declared in either order).
	g := New()
	if _, err := g.Add(&Target{Path: "a"}, []int64{1}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Add(&Target{Path: "b"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := g.Finalize(); err != nil {
		t.Fatal(err)
	}
	preds := g.Predecessors(0)
	if len(preds) != 1 || preds[0] != 1 {
		t.Fatalf("Predecessors(a) = %v, want [1]", preds)
	}
}

func TestFinalizeRejectsUnknownPredecessor(t *testing.T) {
	g := New()
	g.Add(&Target{Path: "a"}, []int64{4})
	if err := g.Finalize(); err == nil {
		t.Fatal("expected error for out-of-range predecessor")
	}
}

func TestPredecessorsAndSuccessors(t *testing.T) {
	g := New()
	a, _ := g.Add(&Target{Path: "a"}, nil)
	b, _ := g.Add(&Target{Path: "b"}, []int64{a})
	if err := g.Finalize(); err != nil {
		t.Fatal(err)
	}

	preds := g.Predecessors(b)
	if len(preds) != 1 || preds[0] != a {
		t.Fatalf("Predecessors(b) = %v, want [%d]", preds, a)
	}
	succs := g.Successors(a)
	if len(succs) != 1 || succs[0] != b {
		t.Fatalf("Successors(a) = %v, want [%d]", succs, b)
	}
}

func TestFinalizeDedupsDuplicatePredecessors(t *testing.T) {
	g := New()
	a, _ := g.Add(&Target{Path: "a"}, nil)
	b, _ := g.Add(&Target{Path: "b"}, []int64{a, a, a})
	if err := g.Finalize(); err != nil {
		t.Fatal(err)
	}
	if preds := g.Predecessors(b); len(preds) != 1 {
		t.Fatalf("Predecessors(b) = %v, want a single entry", preds)
	}
}

func TestLookup(t *testing.T) {
	g := New()
	g.Add(&Target{Path: "out.bin"}, nil)
	id, ok := g.Lookup("out.bin")
	if !ok || id != 0 {
		t.Fatalf("Lookup(out.bin) = (%d, %v), want (0, true)", id, ok)
	}
	if _, ok := g.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) succeeded unexpectedly")
	}
}

func TestLabelDefaultsToPath(t *testing.T) {
	g := New()
	id, _ := g.Add(&Target{Path: "a.o", Cmds: []*command.HashedCommand{command.New("cc", "-c", "a.c")}}, nil)
	if got := g.Label(id); got != "a.o" {
		t.Fatalf("Label = %q, want %q", got, "a.o")
	}
}

func TestAddAfterFinalizeFails(t *testing.T) {
	g := New()
	g.Add(&Target{Path: "a"}, nil)
	if err := g.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Add(&Target{Path: "b"}, nil); err == nil {
		t.Fatal("expected Add after Finalize to fail")
	}
}
