package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/source/manifest"
)

// batchOpts holds the command-line flags for the batch command.
type batchOpts struct {
	all          bool // evaluate every root of the graph
	workers      int  // concurrency limit
	jsonOut      bool // emit verdicts as JSON
	noCache      bool // skip the cross-process verdict cache
	deprecatedOK bool // accept extensions whose deprecation is in force
}

// batchCommand creates the batch command for evaluating many packages
// concurrently. Shared subgraphs are computed once.
func (c *CLI) batchCommand() *cobra.Command {
	opts := batchOpts{workers: defaultWorkers}

	cmd := &cobra.Command{
		Use:   "batch <manifest.toml> [package@release ...]",
		Short: "Evaluate many packages concurrently",
		Long: `Batch evaluates a set of (package, release) nodes against the snapshot
declared in the manifest. Overlapping dependency subgraphs are computed
once; concurrency is bounded by --workers.

Examples:
  stackgate batch ecosystem.toml app@R3 tools@R3
  stackgate batch ecosystem.toml --all       # every root of the graph
  stackgate batch ecosystem.toml --all --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.all && len(args) < 2 {
				return fmt.Errorf("provide refs to evaluate or use --all")
			}

			e, snap, err := c.newEvaluatorWithWorkers(args[0], &opts)
			if err != nil {
				return err
			}

			var refs []descriptor.Ref
			if opts.all {
				refs = snap.Graph.Roots()
				if len(refs) == 0 {
					printInfo("Graph has no packages")
					return nil
				}
			} else {
				for _, raw := range args[1:] {
					ref, err := manifest.ParseRef(raw)
					if err != nil {
						return err
					}
					refs = append(refs, ref)
				}
			}

			spinner := newSpinnerWithContext(cmd.Context(), fmt.Sprintf("Evaluating %d packages", len(refs)))
			spinner.Start()
			prog := newProgress(c.Logger)
			results, err := e.EvaluateAll(cmd.Context(), refs)
			spinner.Stop()
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Evaluated %d packages", len(results)))

			verdicts := make([]*eval.Verdict, 0, len(results))
			seen := make(map[descriptor.Ref]struct{}, len(refs))
			for _, ref := range refs {
				if _, dup := seen[ref]; dup {
					continue
				}
				seen[ref] = struct{}{}
				if v, ok := results[ref]; ok {
					verdicts = append(verdicts, v)
				}
			}
			if opts.all {
				slices.SortFunc(verdicts, func(a, b *eval.Verdict) int {
					return descriptor.Ref{PackageID: a.PackageID, Release: a.Release}.
						Compare(descriptor.Ref{PackageID: b.PackageID, Release: b.Release})
				})
			}

			if opts.jsonOut {
				return writeVerdictJSON(verdicts)
			}
			printVerdicts(verdicts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "evaluate every root of the dependency graph")
	cmd.Flags().IntVar(&opts.workers, "workers", opts.workers, "maximum concurrent evaluations")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit verdicts as JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the verdict cache")
	cmd.Flags().BoolVar(&opts.deprecatedOK, "deprecated-ok", false, "accept extensions whose deprecation is in force")

	return cmd
}

// newEvaluatorWithWorkers builds an evaluator with the batch worker
// limit applied.
func (c *CLI) newEvaluatorWithWorkers(path string, opts *batchOpts) (*eval.Evaluator, *snapshot.Snapshot, error) {
	snap, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}
	verdictCache, err := newVerdictCache(opts.noCache)
	if err != nil {
		return nil, nil, err
	}
	policy := eval.DefaultPolicy()
	policy.DeprecatedIsUnstable = !opts.deprecatedOK

	e := eval.New(snap, eval.Options{
		Policy:  &policy,
		Logger:  c.Logger,
		Cache:   verdictCache,
		Workers: opts.workers,
	})
	return e, snap, nil
}
