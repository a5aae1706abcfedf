// Package cli implements the stackgate command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackgate/pkg/buildinfo"
	"github.com/matzehuels/stackgate/pkg/cache"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/source/manifest"
)

const (
	// appName is the application name used for directories and display.
	appName = "stackgate"

	// defaultWorkers is the default batch-evaluation concurrency.
	defaultWorkers = 8
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "stackgate",
		Short:        "Stackgate gates package stability across release timelines",
		Long:         `Stackgate evaluates package ecosystems against a compatibility gate: it tracks extension classifications over releases, honors deprecation grace periods, and decides per package and release whether the stability guarantee holds.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.checkCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newEvaluator loads a manifest and builds an evaluator over it.
func (c *CLI) newEvaluator(path string, noCache, deprecatedOK bool) (*eval.Evaluator, *snapshot.Snapshot, error) {
	snap, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}

	verdictCache, err := newVerdictCache(noCache)
	if err != nil {
		return nil, nil, err
	}

	policy := eval.DefaultPolicy()
	policy.DeprecatedIsUnstable = !deprecatedOK

	e := eval.New(snap, eval.Options{
		Policy: &policy,
		Logger: c.Logger,
		Cache:  verdictCache,
	})
	return e, snap, nil
}

func newVerdictCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/stackgate/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
