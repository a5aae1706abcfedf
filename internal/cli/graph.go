package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/render"
)

const (
	formatSVG = "svg"
	formatPNG = "png"
	formatDOT = "dot"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	output       string // output file path (stdout if empty)
	format       string // output format: svg, png, dot
	detailed     bool   // include edition and extension details in labels
	noEval       bool   // skip evaluation, render uncolored structure
	noCache      bool   // skip the cross-process verdict cache
	deprecatedOK bool   // accept extensions whose deprecation is in force
}

// graphCommand creates the graph command for rendering the dependency
// graph with verdict coloring.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatSVG}

	cmd := &cobra.Command{
		Use:   "graph <manifest.toml>",
		Short: "Render the dependency graph with verdict coloring",
		Long: `Graph renders the snapshot's dependency graph via Graphviz. Unless
--no-eval is set, every package is evaluated first and nodes are colored
by outcome: green for stable, amber for instability inherited from
dependencies, red for violations of the package's own.

Examples:
  stackgate graph ecosystem.toml -o graph.svg
  stackgate graph ecosystem.toml -f png -o graph.png
  stackgate graph ecosystem.toml -f dot --no-eval`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.format); err != nil {
				return err
			}

			e, snap, err := c.newEvaluator(args[0], opts.noCache, opts.deprecatedOK)
			if err != nil {
				return err
			}

			var verdicts map[descriptor.Ref]*eval.Verdict
			if !opts.noEval {
				prog := newProgress(c.Logger)
				if _, err := e.EvaluateRoots(cmd.Context()); err != nil {
					return err
				}
				verdicts = e.Memoized()
				prog.done(fmt.Sprintf("Evaluated %d packages", len(verdicts)))
			}

			dot := render.ToDOT(snap, verdicts, render.Options{Detailed: opts.detailed})

			var data []byte
			switch opts.format {
			case formatDOT:
				data = []byte(dot)
			case formatSVG:
				data, err = render.RenderSVG(dot)
			case formatPNG:
				data, err = render.RenderPNG(dot)
			}
			if err != nil {
				return err
			}

			if err := writeOutput(data, opts.output); err != nil {
				return err
			}
			if opts.output != "" {
				printSuccess("Rendered %d packages", snap.Graph.NodeCount())
				printFile(opts.output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg (default), png, dot")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include edition and extension details in labels")
	cmd.Flags().BoolVar(&opts.noEval, "no-eval", false, "render structure only, without verdict colors")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the verdict cache")
	cmd.Flags().BoolVar(&opts.deprecatedOK, "deprecated-ok", false, "accept extensions whose deprecation is in force")

	return cmd
}

// validateFormat checks that the format is svg, png, or dot.
func validateFormat(f string) error {
	switch f {
	case formatSVG, formatPNG, formatDOT:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (must be 'svg', 'png', or 'dot')", f)
	}
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

// writeOutput writes data to path, or stdout if path is empty.
func writeOutput(data []byte, path string) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Write(data)
	return err
}
