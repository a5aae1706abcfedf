package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/source/manifest"
)

// checkOpts holds the command-line flags for the check command.
type checkOpts struct {
	jsonOut      bool // emit the verdict as JSON instead of the styled report
	noCache      bool // skip the cross-process verdict cache
	deprecatedOK bool // accept extensions whose deprecation is in force
}

// checkCommand creates the check command for evaluating a single package.
// Without a ref argument it opens an interactive picker over the
// manifest's packages.
func (c *CLI) checkCommand() *cobra.Command {
	opts := checkOpts{}

	cmd := &cobra.Command{
		Use:   "check <manifest.toml> [package@release]",
		Short: "Evaluate the stability of one package at a release",
		Long: `Check evaluates a single (package, release) node against the snapshot
declared in the manifest. The whole dependency closure is evaluated
bottom-up, so the verdict reflects transitive instability.

Examples:
  stackgate check ecosystem.toml core@R3
  stackgate check ecosystem.toml            # interactive package picker
  stackgate check ecosystem.toml app@R5 --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, snap, err := c.newEvaluator(args[0], opts.noCache, opts.deprecatedOK)
			if err != nil {
				return err
			}

			var ref descriptor.Ref
			if len(args) == 2 {
				ref, err = manifest.ParseRef(args[1])
				if err != nil {
					return err
				}
			} else {
				picked, ok, err := pickPackage(snap)
				if err != nil {
					return err
				}
				if !ok {
					return nil // user quit the picker
				}
				ref = picked
			}

			prog := newProgress(c.Logger)
			verdict, err := e.Evaluate(cmd.Context(), ref.PackageID, ref.Release)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Evaluated %s", ref))

			if opts.jsonOut {
				return writeVerdictJSON([]*eval.Verdict{verdict})
			}
			printVerdict(verdict)
			if !verdict.IsStable {
				printNewline()
				printNextStep("Inspect the dependency graph", fmt.Sprintf("stackgate graph %s -o graph.svg", args[0]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit the verdict as JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the verdict cache")
	cmd.Flags().BoolVar(&opts.deprecatedOK, "deprecated-ok", false, "accept extensions whose deprecation is in force")

	return cmd
}
