package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/harvest/api"
	"github.com/use-agent/harvest/api/middleware"
	"github.com/use-agent/harvest/queue"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the task workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), c)
		},
	}
}

func serve(parent context.Context, c *cli) error {
	cfg := c.cfg
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	store, err := queue.OpenStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	q := queue.New(cfg.Queue, store, a.runTask)
	if err := q.Start(); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}

	limiter := middleware.NewLimiter(cfg.RateLimit)
	defer limiter.Close()

	router := api.NewRouter(cfg, api.Deps{
		Queue:   q,
		Actors:  a.registry,
		Proxies: a.proxies,
		Limiter: limiter,
		Started: time.Now(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr, "workers", cfg.Queue.Workers, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	if err := q.Shutdown(shutdownCtx); err != nil {
		slog.Warn("workers cancelled before finishing", "error", err)
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), cfg.Status.Timeout)
	defer cancelFlush()
	if err := a.close(flushCtx); err != nil {
		slog.Warn("cleanup finished with errors", "error", err)
	}

	slog.Info("harvest stopped")
	return nil
}
