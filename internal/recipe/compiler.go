// Package recipe implements the recipe compiler: a pure function over
// the target graph that, given a set of requested output identifiers,
// computes the transitive dependency closure, the leaf (input) set, and
// a topological execution order, rejecting cyclic graphs.
//
// Cycle detection follows the design document's DFS-with-on-stack-marker
// algorithm so that the offending targets can be named in the error.
// Once the closure is known to be acyclic, the topological order itself
// is produced by gonum's graph/topo.Sort over the induced subgraph, the
// same package distri's batch builder uses
// (internal/batch/batch.go's "if _, err := topo.Sort(g); err != nil")
// to both order and detect cycles in its package dependency graph. This
// engine does not adopt that builder's cycle-breaking fallback: a cycle
// reachable from a requested target is always fatal (see REDESIGN FLAGS
// in SPEC_FULL.md).
package recipe

import (
	"sort"

	"rbuild/internal/graph"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Recipe is the compiled plan for one run.
type Recipe struct {
	// Outputs is the set of identifiers the caller requested.
	Outputs map[int64]bool
	// Inputs is the set of identifiers within Closure that have no
	// predecessors in the full graph (leaf-of-graph, not leaf-of-closure;
	// see SPEC_FULL.md §4.2's resolution of the Open Question).
	Inputs map[int64]bool
	// Closure is the set of every identifier that must be evaluated:
	// inputs, intermediates, and outputs.
	Closure map[int64]bool
	// Order is a topological ordering of Closure consistent with the
	// dependency relation (dependencies before dependents).
	Order []int64
}

// CycleError names the targets participating in a detected cycle.
type CycleError struct {
	Paths []string
}

func (e *CycleError) Error() string {
	return "cycle detected among targets: " + joinPaths(e.Paths)
}

func joinPaths(paths []string) string {
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}

// Compile computes the Recipe for the requested set of output identifiers.
func Compile(g *graph.Graph, outputs []int64) (*Recipe, error) {
	for _, o := range outputs {
		if o < 0 || int(o) >= g.Len() {
			return nil, xerrors.Errorf("unknown target id %d", o)
		}
	}

	closure := make(map[int64]bool)
	onStack := make(map[int64]bool)
	var stack []int64 // for naming the cycle, in discovery order

	var visit func(id int64) error
	visit = func(id int64) error {
		if closure[id] {
			return nil
		}
		onStack[id] = true
		stack = append(stack, id)
		for _, p := range g.Predecessors(id) {
			if onStack[p] {
				// Found a back edge: name the cycle from p's position on
				// the stack through id.
				var names []string
				start := indexOf(stack, p)
				for _, n := range stack[start:] {
					t, _ := g.Get(n)
					names = append(names, t.Path)
				}
				t, _ := g.Get(p)
				names = append(names, t.Path)
				return &CycleError{Paths: names}
			}
			if err := visit(p); err != nil {
				return err
			}
		}
		onStack[id] = false
		stack = stack[:len(stack)-1]
		closure[id] = true
		return nil
	}

	for _, o := range outputs {
		if err := visit(o); err != nil {
			return nil, err
		}
	}

	inputs := make(map[int64]bool)
	for id := range closure {
		if len(g.Predecessors(id)) == 0 {
			inputs[id] = true
		}
	}

	order, err := topoOrder(g, closure)
	if err != nil {
		return nil, err
	}

	outSet := make(map[int64]bool, len(outputs))
	for _, o := range outputs {
		outSet[o] = true
	}

	return &Recipe{
		Outputs: outSet,
		Inputs:  inputs,
		Closure: closure,
		Order:   order,
	}, nil
}

// topoOrder computes a topological order of closure (dependencies before
// dependents) using gonum's topo.Sort over the subgraph induced by
// closure. gonum's topo.Sort places each edge's source before its
// target; our edges run target -> dependency, so the raw result lists
// dependents before dependencies and must be reversed.
func topoOrder(g *graph.Graph, closure map[int64]bool) ([]int64, error) {
	sub := simple.NewDirectedGraph()
	ids := make([]int64, 0, len(closure))
	for id := range closure {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	nodes := make(map[int64]*cnode, len(ids))
	for _, id := range ids {
		nodes[id] = &cnode{id: id}
		sub.AddNode(nodes[id])
	}
	for _, id := range ids {
		for _, p := range g.Predecessors(id) {
			if closure[p] {
				sub.SetEdge(sub.NewEdge(nodes[id], nodes[p]))
			}
		}
	}

	sorted, err := topo.Sort(sub)
	if err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok {
			return nil, xerrors.Errorf("topological sort: %w", err)
		}
		var names []string
		for _, component := range uo {
			for _, n := range component {
				names = append(names, pathOf(g, n.(*cnode).id))
			}
		}
		return nil, &CycleError{Paths: names}
	}

	order := make([]int64, len(sorted))
	for i, n := range sorted {
		order[i] = n.(*cnode).id
	}
	// topo.Sort on an edge relation target->dependency yields dependents
	// before dependencies; the executor needs dependencies first.
	reverse(order)
	return order, nil
}

type cnode struct{ id int64 }

func (n *cnode) ID() int64 { return n.id }

func pathOf(g *graph.Graph, id int64) string {
	t, err := g.Get(id)
	if err != nil {
		return ""
	}
	return t.Path
}

func indexOf(stack []int64, id int64) int {
	for i, v := range stack {
		if v == id {
			return i
		}
	}
	return 0
}

func reverse(ids []int64) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
