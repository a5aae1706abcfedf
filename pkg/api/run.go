package api

import (
	"context"
	"net/http"
	"time"
)

// RunConfig controls the server lifecycle.
type RunConfig struct {
	// Addr is the listen address, e.g. ":8080". Required.
	Addr string

	// ShutdownTimeout bounds graceful shutdown once the context is
	// cancelled. Defaults to 10 seconds.
	ShutdownTimeout time.Duration
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully. A nil error means a clean shutdown.
func (s *Server) Run(ctx context.Context, cfg RunConfig) error {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("api stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
