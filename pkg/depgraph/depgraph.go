// Package depgraph models the directed dependency graph whose nodes are
// (package, release) pairs.
//
// The graph owns structural validation: duplicate submissions, dependency
// release ordering against the timeline, edges to unknown nodes, and
// cycle detection. A cycle is a data error rejected before evaluation,
// not a stability violation. Reverse (dependent) edges are indexed so the
// evaluator can propagate cache invalidation upward.
package depgraph

import (
	"errors"
	"slices"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

var (
	// ErrDuplicateNode is returned by [Graph.Add] when a descriptor for
	// the same (package, release) pair was already submitted. Descriptors
	// are immutable once submitted.
	ErrDuplicateNode = errors.New("descriptor already submitted for this package and release")

	// ErrUnknownNode is returned when a requested (package, release) pair
	// has no submitted descriptor.
	ErrUnknownNode = errors.New("unknown package node")

	// ErrUnknownDependency is returned by [Graph.Validate] and traversals
	// when an edge references a node with no submitted descriptor.
	ErrUnknownDependency = errors.New("dependency has no submitted descriptor")

	// ErrDependencyAhead is returned by [Graph.Add] when a dependency
	// references a release later than the dependent's own release.
	ErrDependencyAhead = errors.New("dependency release is after the dependent's release")

	// ErrGraphHasCycle is returned when a dependency cycle is detected.
	// Cycles are detected using depth-first search with white/gray/black
	// coloring.
	ErrGraphHasCycle = errors.New("dependency graph contains a cycle")
)

// Graph is a directed graph of package descriptors keyed by
// (package, release).
//
// The zero value is not usable - use New. Graph is safe for concurrent
// reads after setup; concurrent Add calls require external
// synchronization.
type Graph struct {
	tl       *timeline.Timeline
	nodes    map[descriptor.Ref]*descriptor.Descriptor
	outgoing map[descriptor.Ref][]descriptor.Ref
	incoming map[descriptor.Ref][]descriptor.Ref
}

// New creates an empty graph ordered by the given timeline.
func New(tl *timeline.Timeline) *Graph {
	return &Graph{
		tl:       tl,
		nodes:    make(map[descriptor.Ref]*descriptor.Descriptor),
		outgoing: make(map[descriptor.Ref][]descriptor.Ref),
		incoming: make(map[descriptor.Ref][]descriptor.Ref),
	}
}

// Add submits a descriptor as a graph node.
//
// The descriptor is validated, normalized, and copied: later mutation of
// the caller's value does not affect the graph. Add fails with
// ErrDuplicateNode if the (package, release) pair was already submitted,
// timeline.ErrUnknownRelease if the descriptor's release is not on the
// timeline, or ErrDependencyAhead if any dependency references a later
// release than the descriptor's own.
//
// Dependencies on nodes that have not been submitted yet are allowed at
// Add time; [Graph.Validate] reports them once the graph is complete.
func (g *Graph) Add(d *descriptor.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	ref := d.Ref()
	if _, exists := g.nodes[ref]; exists {
		return ErrDuplicateNode
	}
	if !g.tl.Contains(d.Release) {
		return timeline.ErrUnknownRelease
	}
	for _, dep := range d.Dependencies {
		cmp, err := g.tl.Compare(dep.Release, d.Release)
		if err != nil {
			return err
		}
		if cmp > 0 {
			return ErrDependencyAhead
		}
	}

	node := d.Clone()
	node.Normalize()
	g.nodes[ref] = node
	for _, dep := range node.Dependencies {
		g.outgoing[ref] = append(g.outgoing[ref], dep)
		g.incoming[dep] = append(g.incoming[dep], ref)
	}
	return nil
}

// Node returns the submitted descriptor for a ref, or false if none
// exists. The returned descriptor must be treated as read-only.
func (g *Graph) Node(ref descriptor.Ref) (*descriptor.Descriptor, bool) {
	d, ok := g.nodes[ref]
	return d, ok
}

// Contains reports whether a descriptor was submitted for the ref.
func (g *Graph) Contains(ref descriptor.Ref) bool {
	_, ok := g.nodes[ref]
	return ok
}

// Dependencies returns the refs this node declares edges to. The returned
// slice is a read-only view.
func (g *Graph) Dependencies(ref descriptor.Ref) []descriptor.Ref { return g.outgoing[ref] }

// Dependents returns the refs that declare edges to this node. Used for
// reverse invalidation walks. The returned slice is a read-only view.
func (g *Graph) Dependents(ref descriptor.Ref) []descriptor.Ref { return g.incoming[ref] }

// NodeCount returns the number of submitted descriptors.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of declared dependency edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.outgoing {
		n += len(deps)
	}
	return n
}

// Refs returns all node refs sorted by (package, release).
func (g *Graph) Refs() []descriptor.Ref {
	refs := make([]descriptor.Ref, 0, len(g.nodes))
	for ref := range g.nodes {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, descriptor.Ref.Compare)
	return refs
}

// Roots returns refs with no dependents, sorted. These are the natural
// entry points for whole-ecosystem evaluation.
func (g *Graph) Roots() []descriptor.Ref {
	var roots []descriptor.Ref
	for ref := range g.nodes {
		if len(g.incoming[ref]) == 0 {
			roots = append(roots, ref)
		}
	}
	slices.SortFunc(roots, descriptor.Ref.Compare)
	return roots
}

// Validate checks whole-graph integrity: every edge must reference a
// submitted descriptor and the graph must be acyclic. Returns
// ErrUnknownDependency or ErrGraphHasCycle.
//
// Cycle detection runs in O(N+E) time using depth-first search.
func (g *Graph) Validate() error {
	for ref, deps := range g.outgoing {
		for _, dep := range deps {
			if _, ok := g.nodes[dep]; !ok {
				return &MissingDependencyError{From: ref, Dependency: dep}
			}
		}
	}
	return g.detectCycles(g.Refs())
}

// ValidateFrom checks integrity of the subgraph reachable from ref:
// the ref itself must exist, every reachable edge must resolve, and the
// reachable subgraph must be acyclic.
func (g *Graph) ValidateFrom(ref descriptor.Ref) error {
	if _, ok := g.nodes[ref]; !ok {
		return ErrUnknownNode
	}
	_, err := g.TopoFrom(ref)
	return err
}

// TopoFrom returns the subgraph reachable from ref in dependency-first
// order: every node appears after all of its dependencies. The order is
// deterministic (children visited in sorted order). Fails with
// ErrUnknownNode, ErrGraphHasCycle, or a MissingDependencyError.
func (g *Graph) TopoFrom(ref descriptor.Ref) ([]descriptor.Ref, error) {
	if _, ok := g.nodes[ref]; !ok {
		return nil, ErrUnknownNode
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[descriptor.Ref]int)
	var order []descriptor.Ref

	var dfs func(descriptor.Ref) error
	dfs = func(n descriptor.Ref) error {
		color[n] = gray
		deps := slices.Clone(g.outgoing[n])
		slices.SortFunc(deps, descriptor.Ref.Compare)
		for _, dep := range deps {
			if _, ok := g.nodes[dep]; !ok {
				return &MissingDependencyError{From: n, Dependency: dep}
			}
			switch color[dep] {
			case white:
				if err := dfs(dep); err != nil {
					return err
				}
			case gray:
				return ErrGraphHasCycle
			}
		}
		color[n] = black
		order = append(order, n)
		return nil
	}

	if err := dfs(ref); err != nil {
		return nil, err
	}
	return order, nil
}

func (g *Graph) detectCycles(refs []descriptor.Ref) error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[descriptor.Ref]int, len(g.nodes))

	var dfs func(descriptor.Ref) error
	dfs = func(n descriptor.Ref) error {
		color[n] = gray
		for _, dep := range g.outgoing[n] {
			switch color[dep] {
			case white:
				if err := dfs(dep); err != nil {
					return err
				}
			case gray:
				return ErrGraphHasCycle
			}
		}
		color[n] = black
		return nil
	}

	for _, ref := range refs {
		if color[ref] == white {
			if err := dfs(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// MissingDependencyError reports an edge whose target has no submitted
// descriptor. It unwraps to ErrUnknownDependency.
type MissingDependencyError struct {
	From       descriptor.Ref
	Dependency descriptor.Ref
}

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	return "dependency " + e.Dependency.String() + " of " + e.From.String() + " has no submitted descriptor"
}

// Unwrap returns ErrUnknownDependency for errors.Is matching.
func (e *MissingDependencyError) Unwrap() error { return ErrUnknownDependency }
