// Package httpserver runs an HTTP server until its context ends, then drains
// it within the configured shutdown timeout.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/config"
)

// Run serves h on cfg.Port. It returns nil after a clean shutdown.
func Run(ctx context.Context, name string, cfg config.ServerConfig, h http.Handler) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("%s: listen: %w", name, err)
	}
	return Serve(ctx, name, cfg, ln, h)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, name string, cfg config.ServerConfig, ln net.Listener, h http.Handler) error {
	log := slog.Default().With("component", "http", "service", name)
	srv := &http.Server{
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: serve: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: shutdown: %w", name, err)
		}
		return nil
	})
	return g.Wait()
}
