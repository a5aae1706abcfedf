// Package render turns a snapshot's dependency graph into Graphviz
// diagrams with verdict-based coloring.
//
// Nodes are colored by their stability outcome: stable nodes green,
// nodes with violations of their own red, and nodes that are unstable
// only through their dependencies amber. Nodes without a computed
// verdict stay white.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/snapshot"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed includes edition, extension, and violation details in
	// node labels. When false, only "package@release" is shown.
	Detailed bool
}

// ToDOT converts a snapshot's dependency graph to Graphviz DOT format.
// Verdicts are optional; pass the result of a batch evaluation to color
// nodes by outcome. The resulting DOT string can be rendered with
// [RenderSVG] or [RenderPNG].
func ToDOT(snap *snapshot.Snapshot, verdicts map[descriptor.Ref]*eval.Verdict, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph stability {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, ref := range snap.Graph.Refs() {
		d, ok := snap.Graph.Node(ref)
		if !ok {
			continue
		}
		label := fmtLabel(d, verdicts[ref], opts.Detailed)
		attrs := fmtAttrs(verdicts[ref], label)
		fmt.Fprintf(&buf, "  %q [%s];\n", ref.String(), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, ref := range snap.Graph.Refs() {
		for _, dep := range snap.Graph.Dependencies(ref) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", ref.String(), dep.String())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(d *descriptor.Descriptor, v *eval.Verdict, detailed bool) string {
	ref := d.Ref().String()
	if !detailed {
		return ref
	}

	var parts []string
	if d.HasLanguageEdition() {
		parts = append(parts, "edition: "+d.LanguageEdition)
	}
	if len(d.ExtensionsUsed) > 0 {
		parts = append(parts, "extensions: "+strings.Join(d.ExtensionsUsed, ", "))
	}
	if v != nil && len(v.Violations) > 0 {
		parts = append(parts, fmt.Sprintf("violations: %d", len(v.Violations)))
	}
	if len(parts) == 0 {
		return ref
	}
	return ref + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(v *eval.Verdict, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case v == nil:
		// no verdict computed, keep the default fill
	case v.IsStable:
		attrs = append(attrs, "fillcolor=palegreen")
	case onlyDependencyViolations(v):
		attrs = append(attrs, "fillcolor=gold")
	default:
		attrs = append(attrs, "fillcolor=lightcoral")
	}
	return attrs
}

// onlyDependencyViolations reports whether a node is unstable purely
// through its dependency closure, with no violations of its own.
func onlyDependencyViolations(v *eval.Verdict) bool {
	for _, violation := range v.Violations {
		if violation.Kind != eval.CriterionUnstableDependency {
			return false
		}
	}
	return len(v.Violations) > 0
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the SVG root element so the viewBox starts
// at the origin. Graphviz emits translated viewBoxes that break some
// embedders.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
