package eval

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackgate/pkg/descriptor"
)

// EvaluateAll computes verdicts for a set of roots concurrently.
//
// Concurrency is bounded by the evaluator's worker limit. Shared
// dependencies between roots are computed once: the memo table and
// per-node singleflight coalesce overlapping subgraphs. The first
// failure cancels the batch; roots not yet started are abandoned, and
// already-memoized verdicts are kept.
//
// The result map holds a verdict for every root that completed before
// cancellation, keyed by ref. Duplicate refs in the input are evaluated
// once.
func (e *Evaluator) EvaluateAll(ctx context.Context, refs []descriptor.Ref) (map[descriptor.Ref]*Verdict, error) {
	results := make(map[descriptor.Ref]*Verdict, len(refs))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	seen := make(map[descriptor.Ref]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}

		if gctx.Err() != nil {
			break
		}
		ref := ref
		g.Go(func() error {
			v, err := e.Evaluate(gctx, ref.PackageID, ref.Release)
			if err != nil {
				return err
			}
			resultsMu.Lock()
			results[ref] = v
			resultsMu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// EvaluateRoots evaluates every node with no dependents, covering the
// whole graph through transitive closure.
func (e *Evaluator) EvaluateRoots(ctx context.Context) (map[descriptor.Ref]*Verdict, error) {
	return e.EvaluateAll(ctx, e.snap.Graph.Roots())
}
