package render

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

func buildSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	s := snapshot.New()
	if err := s.Timeline.Append("R1"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	packages := []descriptor.Descriptor{
		{PackageID: "leaf", Release: "R1"}, // no edition, unstable on its own
		{PackageID: "mid", Release: "R1", LanguageEdition: "2024",
			Dependencies: []descriptor.Ref{{PackageID: "leaf", Release: "R1"}}},
		{PackageID: "app", Release: "R1", LanguageEdition: "2024", ExtensionsUsed: []string{"generics"},
			Dependencies: []descriptor.Ref{{PackageID: "mid", Release: "R1"}}},
	}
	for i := range packages {
		if err := s.Graph.Add(&packages[i]); err != nil {
			t.Fatalf("Add(%s): %v", packages[i].Ref(), err)
		}
	}
	return s
}

func TestToDOT_Basic(t *testing.T) {
	s := buildSnapshot(t)
	dot := ToDOT(s, nil, Options{})

	if !strings.Contains(dot, "digraph stability") {
		t.Error("ToDOT() output missing digraph declaration")
	}
	for _, node := range []string{`"leaf@R1"`, `"mid@R1"`, `"app@R1"`} {
		if !strings.Contains(dot, node) {
			t.Errorf("ToDOT() output missing node %s", node)
		}
	}
	if !strings.Contains(dot, `"mid@R1" -> "leaf@R1"`) {
		t.Error("ToDOT() output missing dependency edge")
	}
}

func TestToDOT_VerdictColors(t *testing.T) {
	s := buildSnapshot(t)
	e := eval.New(s, eval.Options{})
	if _, err := e.EvaluateRoots(context.Background()); err != nil {
		t.Fatalf("EvaluateRoots: %v", err)
	}
	// roots evaluation memoizes the whole reachable subgraph
	verdicts := e.Memoized()

	dot := ToDOT(s, verdicts, Options{})

	// leaf violates on its own, mid only inherits, app has its own
	// experimental-extension violation on top of inheritance
	if !strings.Contains(dot, "lightcoral") {
		t.Error("ToDOT() missing own-violation color")
	}
	if !strings.Contains(dot, "gold") {
		t.Error("ToDOT() missing inherited-instability color")
	}
	if strings.Contains(dot, "palegreen") {
		t.Error("ToDOT() should have no stable nodes in this graph")
	}
}

func TestToDOT_Detailed(t *testing.T) {
	s := buildSnapshot(t)
	dot := ToDOT(s, nil, Options{Detailed: true})

	if !strings.Contains(dot, "edition: 2024") {
		t.Error("ToDOT() detailed output missing edition")
	}
	if !strings.Contains(dot, "extensions: generics") {
		t.Error("ToDOT() detailed output missing extensions")
	}
}

func TestFmtLabel(t *testing.T) {
	d := &descriptor.Descriptor{
		PackageID:       "pkg",
		Release:         timeline.Release("R1"),
		LanguageEdition: "2024",
	}
	if got := fmtLabel(d, nil, false); got != "pkg@R1" {
		t.Errorf("fmtLabel() simple = %q, want %q", got, "pkg@R1")
	}
	detailed := fmtLabel(d, nil, true)
	if !strings.HasPrefix(detailed, "pkg@R1\n") {
		t.Errorf("fmtLabel() detailed should start with the ref: %q", detailed)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 5.00 100.00 200.00" xmlns="http://www.w3.org/2000/svg">`)
	out := string(normalizeViewBox(in))

	if !strings.Contains(out, `viewBox="0 0 100.00 200.00"`) {
		t.Errorf("normalizeViewBox() did not rebase the viewBox: %s", out)
	}
	if !strings.Contains(out, `width="100"`) || !strings.Contains(out, `height="200"`) {
		t.Errorf("normalizeViewBox() did not set pixel dimensions: %s", out)
	}

	passthrough := []byte("<svg>no viewbox</svg>")
	if got := string(normalizeViewBox(passthrough)); got != string(passthrough) {
		t.Errorf("normalizeViewBox() should pass through svg without viewBox, got %s", got)
	}
}
