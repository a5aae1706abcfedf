// Package eval implements the stability evaluator: the decision
// procedure that classifies a (package, release) node as stable or
// unstable against a snapshot of the ecosystem.
//
// A node is stable when all five criteria hold:
//
//  1. every used extension classifies Stable at the node's release
//  2. no experimental-feature tags are present
//  3. the default build configuration does not error on warnings
//  4. a language edition is declared
//  5. every dependency, transitively, is itself stable
//
// Evaluation is memoized bottom-up over the dependency DAG: the
// reachable subgraph is topologically ordered and nodes are computed
// dependencies-first, so each node is computed at most once per
// snapshot state. Concurrent evaluations coalesce per node via
// singleflight, and an optional cross-process cache layer sits behind
// the memo table with keys derived from the snapshot fingerprint.
package eval

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/stackgate/pkg/cache"
	"github.com/matzehuels/stackgate/pkg/depgraph"
	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/observability"
	"github.com/matzehuels/stackgate/pkg/registry"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// Policy holds the evaluation options that change verdict identity.
type Policy struct {
	// DeprecatedIsUnstable controls whether an extension whose
	// deprecation is in force (its case, if any, has reached Effective)
	// counts against stability. During an active grandfather period the
	// pre-deprecation classification applies regardless of this setting.
	DeprecatedIsUnstable bool
}

// DefaultPolicy returns the standard policy: deprecation counts once it
// is in force.
func DefaultPolicy() Policy {
	return Policy{DeprecatedIsUnstable: true}
}

// Options configures an Evaluator. The zero value is usable: default
// policy, default logger, no cross-process cache, and a worker limit of
// DefaultWorkers for batch evaluation.
type Options struct {
	// Policy overrides the evaluation policy. Nil means DefaultPolicy.
	Policy *Policy

	// Logger receives structured evaluation logs. Nil means the package
	// default logger.
	Logger *log.Logger

	// Cache is the optional cross-process verdict cache. Nil disables
	// the layer; the in-process memo table is always active.
	Cache cache.Cache

	// Keyer generates cache keys. Nil means cache.NewDefaultKeyer.
	Keyer cache.Keyer

	// Workers bounds batch-evaluation concurrency. Values below 1 mean
	// DefaultWorkers.
	Workers int
}

// DefaultWorkers is the batch concurrency limit when none is configured.
const DefaultWorkers = 8

// Evaluator computes stability verdicts against one snapshot.
//
// The memo table is authoritative for the lifetime of the evaluator and
// is only cleared through Invalidate or Reset. Verdicts are immutable
// once returned; callers must not modify them.
type Evaluator struct {
	snap    *snapshot.Snapshot
	policy  Policy
	logger  *log.Logger
	cache   cache.Cache
	keyer   cache.Keyer
	workers int

	mu          sync.RWMutex
	memo        map[descriptor.Ref]*Verdict
	fingerprint string

	group singleflight.Group
}

// New creates an evaluator bound to a snapshot. The snapshot fingerprint
// is computed once here; mutations to the snapshot after construction
// require Invalidate or Reset to be observed.
func New(snap *snapshot.Snapshot, opts Options) *Evaluator {
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	keyer := opts.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Evaluator{
		snap:        snap,
		policy:      policy,
		logger:      logger,
		cache:       opts.Cache,
		keyer:       keyer,
		workers:     workers,
		memo:        make(map[descriptor.Ref]*Verdict),
		fingerprint: snap.Fingerprint(),
	}
}

// Policy returns the policy the evaluator runs under.
func (e *Evaluator) Policy() Policy { return e.policy }

// Snapshot returns the snapshot the evaluator is bound to.
func (e *Evaluator) Snapshot() *snapshot.Snapshot { return e.snap }

// Evaluate computes the verdict for one (package, release) node.
//
// The reachable subgraph is ordered dependencies-first and each node is
// computed at most once; already-memoized nodes are skipped. Structural
// problems fail the whole call before any verdict is produced or cached:
// UNKNOWN_PACKAGE for a missing node or unresolved dependency edge,
// GRAPH_CYCLE for a dependency cycle.
func (e *Evaluator) Evaluate(ctx context.Context, packageID string, release timeline.Release) (*Verdict, error) {
	ref := descriptor.Ref{PackageID: packageID, Release: release}
	start := time.Now()
	observability.Eval().OnEvaluateStart(ctx, packageID, string(release))

	order, err := e.snap.Graph.TopoFrom(ref)
	if err != nil {
		err = translateGraphErr(err, ref)
		observability.Eval().OnEvaluateComplete(ctx, packageID, string(release), false, 0, time.Since(start), err)
		return nil, err
	}

	// The root's verdict is captured from the flight result rather than
	// re-read from the memo, so a racing Invalidate cannot make a
	// completed evaluation come back empty-handed.
	var verdict *Verdict
	for _, node := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if v, ok := e.memoized(node); ok {
			if node == ref {
				verdict = v
			}
			continue
		}
		node := node
		res, err, _ := e.group.Do(node.String(), func() (any, error) {
			return e.computeNode(ctx, node)
		})
		if err != nil {
			observability.Eval().OnEvaluateComplete(ctx, packageID, string(release), false, 0, time.Since(start), err)
			return nil, err
		}
		if node == ref {
			verdict = res.(*Verdict)
		}
	}

	if verdict == nil {
		return nil, errors.New(errors.ErrCodeInternal, "verdict for %s missing after evaluation", ref)
	}

	e.logger.Debug("evaluated package",
		"package", ref.String(),
		"stable", verdict.IsStable,
		"violations", len(verdict.Violations),
		"nodes", len(order),
		"duration", time.Since(start))
	observability.Eval().OnEvaluateComplete(ctx, packageID, string(release), verdict.IsStable, len(order), time.Since(start), nil)
	return verdict, nil
}

// computeNode produces the verdict for a single node. Dependencies are
// normally memoized by the caller's topo pass; an entry dropped by a
// concurrent Invalidate is recomputed on demand. Runs inside
// singleflight, so at most one computation per node key is in flight at
// a time.
func (e *Evaluator) computeNode(ctx context.Context, ref descriptor.Ref) (*Verdict, error) {
	// Another flight may have landed between the caller's check and our
	// turn in the group.
	if v, ok := e.memoized(ref); ok {
		return v, nil
	}

	key := ""
	if e.cache != nil {
		key = e.keyer.VerdictKey(e.snapshotFingerprint(), ref.PackageID, ref.Release, cache.VerdictKeyOpts{
			DeprecatedIsUnstable: e.policy.DeprecatedIsUnstable,
		})
		if data, ok, err := e.cache.Get(ctx, key); err == nil && ok {
			var v Verdict
			if err := json.Unmarshal(data, &v); err == nil {
				observability.Cache().OnCacheHit(ctx, "verdict")
				e.store(ref, &v)
				return &v, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "verdict")
	}

	d, ok := e.snap.Graph.Node(ref)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownPackage, "no descriptor submitted for %s", ref)
	}

	var violations []Violation

	for _, ext := range d.ExtensionsUsed {
		state, err := e.snap.Registry.EffectiveClassificationAt(ext, ref.Release, e.snap.Cases)
		if err != nil {
			return nil, err
		}
		if !e.stateUsable(state) {
			violations = append(violations, Violation{
				Kind:    CriterionExperimentalExtension,
				Subject: ext,
				Detail:  fmt.Sprintf("extension %s is %s at release %s", ext, state, ref.Release),
			})
		}
	}

	for _, tag := range d.ExperimentalFeatureTags {
		violations = append(violations, Violation{
			Kind:    CriterionExperimentalFeature,
			Subject: tag,
			Detail:  fmt.Sprintf("experimental feature tag %q is in use", tag),
		})
	}

	if d.ErrorsOnWarningsDefault {
		violations = append(violations, Violation{
			Kind:   CriterionErrorsOnWarnings,
			Detail: "default build configuration turns warnings into errors",
		})
	}

	if !d.HasLanguageEdition() {
		violations = append(violations, Violation{
			Kind:   CriterionMissingEdition,
			Detail: "no language edition declared",
		})
	}

	unstable := make(map[string]struct{})
	for _, dep := range d.Dependencies {
		dv, ok := e.memoized(dep)
		if !ok {
			// A racing Invalidate dropped the entry after the topo pass
			// computed it. Recompute; edges only point toward
			// dependencies, so the recursion bottoms out.
			dep := dep
			res, err, _ := e.group.Do(dep.String(), func() (any, error) {
				return e.computeNode(ctx, dep)
			})
			if err != nil {
				return nil, err
			}
			dv = res.(*Verdict)
		}
		if !dv.IsStable {
			unstable[dep.PackageID] = struct{}{}
			violations = append(violations, Violation{
				Kind:    CriterionUnstableDependency,
				Subject: dep.PackageID,
				Detail:  fmt.Sprintf("depends on unstable package %s", dep),
			})
		}
		for _, u := range dv.UnstableDependencies {
			unstable[u] = struct{}{}
		}
	}

	sortViolations(violations)

	verdict := &Verdict{
		PackageID:            ref.PackageID,
		Release:              ref.Release,
		IsStable:             len(violations) == 0,
		Violations:           violations,
		UnstableDependencies: sortedSet(unstable),
	}
	e.store(ref, verdict)

	if e.cache != nil {
		if data, err := json.Marshal(verdict); err == nil {
			if err := e.cache.Set(ctx, key, data, cache.TTLVerdict); err != nil {
				e.logger.Warn("verdict cache write failed", "package", ref.String(), "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "verdict", len(data))
			}
		}
	}
	return verdict, nil
}

// stateUsable reports whether an effective classification satisfies the
// extension criterion under the evaluator's policy.
func (e *Evaluator) stateUsable(state registry.State) bool {
	switch state {
	case registry.StateStable:
		return true
	case registry.StateDeprecated:
		return !e.policy.DeprecatedIsUnstable
	default:
		return false
	}
}

// Invalidate drops the memoized verdict for a node and everything that
// transitively depends on it, after refreshing the snapshot fingerprint
// so cross-process cache keys for the new state no longer match the old
// entries. Returns the number of memo entries dropped.
//
// Invalidation is explicit: snapshot mutations are not observed until
// the affected subgraph is invalidated. In-flight evaluations may still
// return verdicts for the previous state; they are internally
// consistent, never mixed.
func (e *Evaluator) Invalidate(ctx context.Context, packageID string, release timeline.Release) int {
	ref := descriptor.Ref{PackageID: packageID, Release: release}

	affected := []descriptor.Ref{ref}
	seen := map[descriptor.Ref]struct{}{ref: {}}
	for i := 0; i < len(affected); i++ {
		for _, dependent := range e.snap.Graph.Dependents(affected[i]) {
			if _, ok := seen[dependent]; ok {
				continue
			}
			seen[dependent] = struct{}{}
			affected = append(affected, dependent)
		}
	}

	e.mu.Lock()
	dropped := 0
	for _, r := range affected {
		if _, ok := e.memo[r]; ok {
			delete(e.memo, r)
			dropped++
		}
	}
	e.fingerprint = e.snap.Fingerprint()
	e.mu.Unlock()

	e.logger.Debug("invalidated verdicts", "package", ref.String(), "dropped", dropped)
	observability.Eval().OnInvalidate(ctx, packageID, string(release), dropped)
	return dropped
}

// Reset drops every memoized verdict and refreshes the snapshot
// fingerprint. Used after wholesale snapshot changes such as appending a
// release or recording a transition that touches many packages.
func (e *Evaluator) Reset() int {
	e.mu.Lock()
	dropped := len(e.memo)
	e.memo = make(map[descriptor.Ref]*Verdict)
	e.fingerprint = e.snap.Fingerprint()
	e.mu.Unlock()
	return dropped
}

// Memoized returns a copy of the current memo table keyed by ref.
// Intended for introspection and tests.
func (e *Evaluator) Memoized() map[descriptor.Ref]*Verdict {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.memo)
}

func (e *Evaluator) memoized(ref descriptor.Ref) (*Verdict, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.memo[ref]
	return v, ok
}

func (e *Evaluator) store(ref descriptor.Ref, v *Verdict) {
	e.mu.Lock()
	e.memo[ref] = v
	e.mu.Unlock()
}

func (e *Evaluator) snapshotFingerprint() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fingerprint
}

// translateGraphErr maps graph sentinel errors onto coded errors for
// callers and the HTTP layer.
func translateGraphErr(err error, ref descriptor.Ref) error {
	switch {
	case stderrors.Is(err, depgraph.ErrUnknownNode):
		return errors.Wrap(errors.ErrCodeUnknownPackage, err, "no descriptor submitted for %s", ref)
	case stderrors.Is(err, depgraph.ErrUnknownDependency):
		return errors.Wrap(errors.ErrCodeUnknownPackage, err, "dependency closure of %s is incomplete", ref)
	case stderrors.Is(err, depgraph.ErrGraphHasCycle):
		return errors.Wrap(errors.ErrCodeGraphCycle, err, "dependency cycle reachable from %s", ref)
	default:
		return err
	}
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
