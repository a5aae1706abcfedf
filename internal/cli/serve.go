package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackgate/pkg/api"
	"github.com/matzehuels/stackgate/pkg/cache"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/source/manifest"
	"github.com/matzehuels/stackgate/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr         string   // listen address
	manifests    []string // manifest files preloaded into the store
	mongoURI     string   // MongoDB connection string; empty means in-memory store
	redisAddr    string   // Redis address for the shared verdict cache; empty disables
	redisPass    string   // Redis password
	deprecatedOK bool     // accept extensions whose deprecation is in force
}

// serveCommand creates the serve command running the HTTP API.
//
// Storage defaults to in-memory; pass --mongo-uri for durable snapshots
// across restarts. The verdict cache defaults to off; pass --redis-addr
// to share verdicts between instances.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: ":8080"}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the stability gate HTTP API",
		Long: `Serve runs the HTTP API for snapshot submission and verdict queries.

Examples:
  stackgate serve --addr :8080
  stackgate serve --manifest ecosystem.toml
  stackgate serve --mongo-uri mongodb://localhost:27017 --redis-addr localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringSliceVar(&opts.manifests, "manifest", nil, "manifest file(s) preloaded into the store")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB URI for durable snapshot storage")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the shared verdict cache")
	cmd.Flags().StringVar(&opts.redisPass, "redis-password", "", "Redis password")
	cmd.Flags().BoolVar(&opts.deprecatedOK, "deprecated-ok", false, "accept extensions whose deprecation is in force")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	snapStore, err := newStore(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = snapStore.Close(closeCtx)
	}()

	verdictCache, err := newServeCache(ctx, opts)
	if err != nil {
		return err
	}
	defer verdictCache.Close()

	for _, path := range opts.manifests {
		snap, err := manifest.Load(path)
		if err != nil {
			return err
		}
		if err := snapStore.Put(ctx, snap.Document()); err != nil {
			return err
		}
		c.Logger.Info("preloaded snapshot", "manifest", path, "id", snap.ID,
			"packages", snap.Graph.NodeCount())
	}

	policy := eval.DefaultPolicy()
	policy.DeprecatedIsUnstable = !opts.deprecatedOK

	server, err := api.NewServer(api.Config{
		Store:  snapStore,
		Cache:  verdictCache,
		Policy: &policy,
		Logger: c.Logger,
	})
	if err != nil {
		return err
	}
	return server.Run(ctx, api.RunConfig{Addr: opts.addr})
}

func newStore(ctx context.Context, opts *serveOpts) (store.Store, error) {
	if opts.mongoURI != "" {
		return store.NewMongoStore(ctx, store.MongoConfig{URI: opts.mongoURI})
	}
	return store.NewMemoryStore(), nil
}

func newServeCache(ctx context.Context, opts *serveOpts) (cache.Cache, error) {
	if opts.redisAddr == "" {
		return cache.NewNullCache(), nil
	}
	return cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     opts.redisAddr,
		Password: opts.redisPass,
	})
}
