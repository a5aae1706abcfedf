package depgraph

import (
	"errors"
	"testing"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

func newTimeline(t *testing.T, releases ...timeline.Release) *timeline.Timeline {
	t.Helper()
	tl := timeline.New()
	for _, r := range releases {
		if err := tl.Append(r); err != nil {
			t.Fatalf("Append(%q): %v", r, err)
		}
	}
	return tl
}

func ref(pkg string, rel timeline.Release) descriptor.Ref {
	return descriptor.Ref{PackageID: pkg, Release: rel}
}

func mustAdd(t *testing.T, g *Graph, d *descriptor.Descriptor) {
	t.Helper()
	if err := g.Add(d); err != nil {
		t.Fatalf("Add(%s): %v", d.Ref(), err)
	}
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(g *Graph)
		desc    descriptor.Descriptor
		wantErr error
	}{
		{
			name: "Simple",
			desc: descriptor.Descriptor{PackageID: "base", Release: "R1"},
		},
		{
			name: "WithDependencySameRelease",
			desc: descriptor.Descriptor{
				PackageID:    "app",
				Release:      "R1",
				Dependencies: []descriptor.Ref{ref("base", "R1")},
			},
		},
		{
			name: "WithDependencyEarlierRelease",
			desc: descriptor.Descriptor{
				PackageID:    "app",
				Release:      "R2",
				Dependencies: []descriptor.Ref{ref("base", "R1")},
			},
		},
		{
			name: "Duplicate",
			setup: func(g *Graph) {
				g.Add(&descriptor.Descriptor{PackageID: "base", Release: "R1"})
			},
			desc:    descriptor.Descriptor{PackageID: "base", Release: "R1"},
			wantErr: ErrDuplicateNode,
		},
		{
			name:    "UnknownRelease",
			desc:    descriptor.Descriptor{PackageID: "base", Release: "RX"},
			wantErr: timeline.ErrUnknownRelease,
		},
		{
			name: "DependencyFromLaterRelease",
			desc: descriptor.Descriptor{
				PackageID:    "app",
				Release:      "R1",
				Dependencies: []descriptor.Ref{ref("base", "R2")},
			},
			wantErr: ErrDependencyAhead,
		},
		{
			name: "DependencyReleaseNotOnTimeline",
			desc: descriptor.Descriptor{
				PackageID:    "app",
				Release:      "R1",
				Dependencies: []descriptor.Ref{ref("base", "RX")},
			},
			wantErr: timeline.ErrUnknownRelease,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(newTimeline(t, "R1", "R2"))
			if tt.setup != nil {
				tt.setup(g)
			}
			err := g.Add(&tt.desc)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddCopiesDescriptor(t *testing.T) {
	g := New(newTimeline(t, "R1"))
	d := &descriptor.Descriptor{
		PackageID:      "base",
		Release:        "R1",
		ExtensionsUsed: []string{"LambdaCase"},
	}
	mustAdd(t, g, d)

	d.ExtensionsUsed[0] = "mutated"
	got, _ := g.Node(ref("base", "R1"))
	if got.ExtensionsUsed[0] != "LambdaCase" {
		t.Error("Add should copy the descriptor; caller mutation leaked into the graph")
	}
}

func buildDiamond(t *testing.T) *Graph {
	t.Helper()
	// app -> {lib1, lib2} -> base
	g := New(newTimeline(t, "R1"))
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "base", Release: "R1"})
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "lib1", Release: "R1",
		Dependencies: []descriptor.Ref{ref("base", "R1")}})
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "lib2", Release: "R1",
		Dependencies: []descriptor.Ref{ref("base", "R1")}})
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "app", Release: "R1",
		Dependencies: []descriptor.Ref{ref("lib1", "R1"), ref("lib2", "R1")}})
	return g
}

func TestTopoFrom(t *testing.T) {
	g := buildDiamond(t)

	order, err := g.TopoFrom(ref("app", "R1"))
	if err != nil {
		t.Fatalf("TopoFrom: %v", err)
	}

	pos := make(map[descriptor.Ref]int, len(order))
	for i, r := range order {
		pos[r] = i
	}

	if len(order) != 4 {
		t.Fatalf("TopoFrom returned %d nodes, want 4", len(order))
	}
	for _, tc := range []struct{ before, after descriptor.Ref }{
		{ref("base", "R1"), ref("lib1", "R1")},
		{ref("base", "R1"), ref("lib2", "R1")},
		{ref("lib1", "R1"), ref("app", "R1")},
		{ref("lib2", "R1"), ref("app", "R1")},
	} {
		if pos[tc.before] >= pos[tc.after] {
			t.Errorf("%s should come before %s in %v", tc.before, tc.after, order)
		}
	}

	// Deterministic: repeated calls produce the identical order.
	again, err := g.TopoFrom(ref("app", "R1"))
	if err != nil {
		t.Fatalf("TopoFrom: %v", err)
	}
	for i := range order {
		if order[i] != again[i] {
			t.Fatalf("TopoFrom not deterministic: %v vs %v", order, again)
		}
	}
}

func TestTopoFromErrors(t *testing.T) {
	g := New(newTimeline(t, "R1"))
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "app", Release: "R1",
		Dependencies: []descriptor.Ref{ref("ghost", "R1")}})

	if _, err := g.TopoFrom(ref("missing", "R1")); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("TopoFrom(missing) = %v, want ErrUnknownNode", err)
	}

	_, err := g.TopoFrom(ref("app", "R1"))
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("TopoFrom with ghost dep = %v, want ErrUnknownDependency", err)
	}
	var missing *MissingDependencyError
	if !errors.As(err, &missing) || missing.Dependency != ref("ghost", "R1") {
		t.Errorf("error should identify the missing dependency, got %v", err)
	}
}

func TestValidateCycle(t *testing.T) {
	g := New(newTimeline(t, "R1"))
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "a", Release: "R1",
		Dependencies: []descriptor.Ref{ref("b", "R1")}})
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "b", Release: "R1",
		Dependencies: []descriptor.Ref{ref("c", "R1")}})
	mustAdd(t, g, &descriptor.Descriptor{PackageID: "c", Release: "R1",
		Dependencies: []descriptor.Ref{ref("a", "R1")}})

	if err := g.Validate(); !errors.Is(err, ErrGraphHasCycle) {
		t.Errorf("Validate() = %v, want ErrGraphHasCycle", err)
	}

	// Every node in the cycle's closure fails.
	for _, id := range []string{"a", "b", "c"} {
		if _, err := g.TopoFrom(ref(id, "R1")); !errors.Is(err, ErrGraphHasCycle) {
			t.Errorf("TopoFrom(%s) = %v, want ErrGraphHasCycle", id, err)
		}
	}
}

func TestValidateAcyclic(t *testing.T) {
	g := buildDiamond(t)
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestDependents(t *testing.T) {
	g := buildDiamond(t)

	deps := g.Dependents(ref("base", "R1"))
	if len(deps) != 2 {
		t.Fatalf("Dependents(base) = %v, want 2 entries", deps)
	}
	seen := map[string]bool{}
	for _, d := range deps {
		seen[d.PackageID] = true
	}
	if !seen["lib1"] || !seen["lib2"] {
		t.Errorf("Dependents(base) = %v, want lib1 and lib2", deps)
	}
}

func TestRoots(t *testing.T) {
	g := buildDiamond(t)
	roots := g.Roots()
	if len(roots) != 1 || roots[0] != ref("app", "R1") {
		t.Errorf("Roots() = %v, want [app@R1]", roots)
	}
}

func TestCounts(t *testing.T) {
	g := buildDiamond(t)
	if got := g.NodeCount(); got != 4 {
		t.Errorf("NodeCount() = %d, want 4", got)
	}
	if got := g.EdgeCount(); got != 4 {
		t.Errorf("EdgeCount() = %d, want 4", got)
	}
}
