// Package graph implements the target graph store: a collection of
// Targets plus their dependency edges, keyed by dense integer
// identifiers assigned at insertion time.
//
// The store is backed by gonum's simple.DirectedGraph, the same
// dependency the original batch package builder uses to represent its
// package dependency graph (internal/batch/batch.go in distri, the
// repository this package is descended from). An edge runs from a
// target to each of its predecessors (dependencies), so From(id) yields
// a node's dependencies and To(id) yields its dependents, the same
// convention that builder's scheduler relies on for canBuild/markFailed.
package graph

import (
	"rbuild/internal/command"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Target represents one buildable artifact: a filesystem path, an ordered
// set of gated (fingerprinted) commands, and an ordered set of always-run
// commands that ignore the staleness predicate (see command.HashedCommand).
type Target struct {
	// Path is the target's filesystem path. Non-empty, unique within the
	// graph it belongs to.
	Path string

	// Label is a cosmetic name used only in log lines and trace events. It
	// defaults to Path and never affects identity, hashing, or scheduling.
	Label string

	// Cmds are run in order, each gated by the staleness oracle.
	Cmds []*command.HashedCommand

	// AlwaysCmds are run in order, after Cmds, unconditionally.
	AlwaysCmds []*command.HashedCommand
}

func (t *Target) label() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Path
}

// node adapts a *Target to gonum's graph.Node interface, carrying the
// dense identifier the rest of the engine treats as the target's identity.
type node struct {
	id     int64
	target *Target
}

func (n *node) ID() int64 { return n.id }

// Graph holds targets and their dependency edges.
//
// Predecessor identifiers are declaration-order indices (the contract the
// bundled configuration loader's "deps" keyword exposes, see
// internal/config), not references to already-materialized graph nodes:
// a target may list a predecessor that is declared later in the same
// input, so Add defers edge creation until Finalize, once every node's
// final identifier is known. This is what lets the loader express a
// genuine cycle across two targets declared in either order, rather than
// only the file-order subset a strictly incremental graph would allow.
type Graph struct {
	g         *simple.DirectedGraph
	nodes     []*node // insertion order, indexed by id
	nameMap   map[string]int64
	pending   map[int64][]int64 // node id -> raw predecessor ids, wired at Finalize
	finalized bool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		g:       simple.NewDirectedGraph(),
		nameMap: make(map[string]int64),
		pending: make(map[int64][]int64),
	}
}

// Add appends target to the graph and records its predecessor list
// (dependency identifiers, by the id they will eventually be assigned).
// Edges are not wired until Finalize, so predecessorIDs may name nodes
// not yet added. It returns the new node's dense identifier.
func (gr *Graph) Add(target *Target, predecessorIDs []int64) (int64, error) {
	if gr.finalized {
		return 0, xerrors.Errorf("add %s: graph already finalized", target.Path)
	}
	id := int64(len(gr.nodes))
	n := &node{id: id, target: target}
	gr.g.AddNode(n)
	gr.nodes = append(gr.nodes, n)
	gr.nameMap[target.Path] = id
	if len(predecessorIDs) > 0 {
		cp := make([]int64, len(predecessorIDs))
		copy(cp, predecessorIDs)
		gr.pending[id] = cp
	}
	return id, nil
}

// Finalize wires every pending predecessor list into actual graph edges,
// validating that each predecessor id refers to a node that was in fact
// added. It must be called once, after every target has been added and
// before the graph is used for compilation or evaluation. Calling it more
// than once is a no-op.
func (gr *Graph) Finalize() error {
	if gr.finalized {
		return nil
	}
	for id, preds := range gr.pending {
		n := gr.nodes[id]
		seen := make(map[int64]bool, len(preds))
		for _, p := range preds {
			if p < 0 || int(p) >= len(gr.nodes) {
				return xerrors.Errorf("target %s: no such predecessor node %d", n.target.Path, p)
			}
			if seen[p] {
				continue // duplicate predecessors are idempotent
			}
			seen[p] = true
			gr.g.SetEdge(gr.g.NewEdge(n, gr.nodes[p]))
		}
	}
	gr.finalized = true
	return nil
}

// Get returns the target stored at id.
func (gr *Graph) Get(id int64) (*Target, error) {
	if id < 0 || int(id) >= len(gr.nodes) {
		return nil, xerrors.Errorf("no such node %d", id)
	}
	return gr.nodes[id].target, nil
}

// Len returns the number of nodes in the graph.
func (gr *Graph) Len() int { return len(gr.nodes) }

// Iter enumerates node identifiers in insertion order.
func (gr *Graph) Iter() []int64 {
	ids := make([]int64, len(gr.nodes))
	for i := range gr.nodes {
		ids[i] = int64(i)
	}
	return ids
}

// Lookup resolves a target's path to its identifier.
func (gr *Graph) Lookup(path string) (int64, bool) {
	id, ok := gr.nameMap[path]
	return id, ok
}

// Predecessors returns the dependency identifiers of id (the nodes id
// depends on), in no particular order.
func (gr *Graph) Predecessors(id int64) []int64 {
	return nodeIDs(gr.g.From(id))
}

// Successors returns the dependent identifiers of id (the nodes that
// depend on id), in no particular order.
func (gr *Graph) Successors(id int64) []int64 {
	return nodeIDs(gr.g.To(id))
}

// Directed exposes the underlying gonum graph for algorithms (e.g. the
// recipe compiler's cycle detection) that need gonum's graph.Directed
// interface directly.
func (gr *Graph) Directed() graph.Directed { return gr.g }

// Label returns the cosmetic label for id, defaulting to its path.
func (gr *Graph) Label(id int64) string {
	return gr.nodes[id].target.label()
}

func nodeIDs(it graph.Nodes) []int64 {
	var ids []int64
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	return ids
}
