// Package pkg provides the core libraries for the Stackgate stability gate.
//
// # Overview
//
// Stackgate decides, per package and release, whether the stability
// guarantee holds for an ecosystem snapshot. The pkg directory is
// organized into four main areas:
//
//  1. Domain model - [timeline], [registry], [descriptor], [depgraph], [snapshot]
//  2. Evaluation - [eval] (criteria, memoization, batch runs)
//  3. Infrastructure - [cache], [store], [observability], [errors]
//  4. Surfaces - [api] (HTTP), [render] (DOT/SVG/PNG), [source/manifest] (TOML)
//
// # Architecture
//
// The typical data flow through Stackgate:
//
//	TOML manifest / API submission
//	         ↓
//	    [snapshot] package (replay + validate into timeline, registry, graph)
//	         ↓
//	    [eval] package (bottom-up criteria evaluation, memoized)
//	         ↓
//	    Verdicts (JSON, styled CLI report, colored graph render)
//
// # Quick Start
//
// Load a manifest and evaluate one package:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/stackgate/pkg/eval"
//	    "github.com/matzehuels/stackgate/pkg/source/manifest"
//	)
//
//	snap, err := manifest.Load("ecosystem.toml")
//	if err != nil {
//	    return err
//	}
//	e := eval.New(snap, eval.Options{})
//	verdict, err := e.Evaluate(context.Background(), "app", "R2")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(verdict.IsStable, verdict.Violations)
//
// Verdicts are deterministic for a given snapshot and policy, so they
// can be cached across processes keyed by the snapshot fingerprint.
package pkg
