package config

import (
	"testing"

	"rbuild/internal/recipe"
)

func TestParseSingleTarget(t *testing.T) {
	g, err := Parse(`path out.bin run ld -o out.bin a.o`)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
	id, ok := g.Lookup("out.bin")
	if !ok {
		t.Fatal("out.bin not found")
	}
	target, err := g.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(target.Cmds) != 1 || target.Cmds[0].Program != "ld" {
		t.Fatalf("Cmds = %+v", target.Cmds)
	}
}

func TestParseDepsAndAlways(t *testing.T) {
	g, err := Parse(`
		path a.c
		path a.o deps 0 run gcc -c a.c -o a.o
		path out deps 1 run ld -o out a.o always echo done
	`)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}
	outID, _ := g.Lookup("out")
	out, _ := g.Get(outID)
	if len(out.AlwaysCmds) != 1 || out.AlwaysCmds[0].Program != "echo" {
		t.Fatalf("AlwaysCmds = %+v", out.AlwaysCmds)
	}
	preds := g.Predecessors(outID)
	if len(preds) != 1 {
		t.Fatalf("Predecessors(out) = %v, want a single entry", preds)
	}
}

func TestParseCycleScenario(t *testing.T) {
	// spec.md §8 scenario 6: "a deps 1", "b deps 0". Parsing accepts the
	// mutual references; the cycle is rejected when a recipe is compiled.
	g, err := Parse(`path a deps 1 path b deps 0`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := recipe.Compile(g, []int64{0}); err == nil {
		t.Fatal("expected a cycle error compiling a cyclic configuration")
	}
}

func TestParseUnknownKeywordFails(t *testing.T) {
	_, err := Parse(`path a bogus`)
	if err == nil {
		t.Fatal("expected an error for an unrecognized keyword")
	}
}

func TestParseDanglingRunFails(t *testing.T) {
	_, err := Parse(`path a run`)
	if err == nil {
		t.Fatal("expected an error for 'run' with no program")
	}
}

func TestParseDanglingDepsFails(t *testing.T) {
	_, err := Parse(`path a deps`)
	if err == nil {
		t.Fatal("expected an error for 'deps' with no indices")
	}
}

func TestParseUndefinedDependencyFails(t *testing.T) {
	_, err := Parse(`path a deps 7`)
	if err == nil {
		t.Fatal("expected an error for a dependency index naming no target")
	}
}

func TestParseQuotedPathWithSpaces(t *testing.T) {
	g, err := Parse(`path "my target" run touch "my target"`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Lookup("my target"); !ok {
		t.Fatal(`expected target "my target" to be registered`)
	}
}

func TestParseEmptyFile(t *testing.T) {
	g, err := Parse("  \n #just-a-comment\n")
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", g.Len())
	}
}
