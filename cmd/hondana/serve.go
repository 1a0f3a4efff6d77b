package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/hondana/internal/server"
	"github.com/hyperjump/hondana/internal/vector"
	"github.com/hyperjump/hondana/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	logger := a.logger
	if a.cfg.VectorDB.WatchSnapshot && a.store.Driver() == vector.DriverLocal {
		st, err := a.store.Status(ctx)
		if err != nil {
			return err
		}
		w := watcher.New(st.SnapshotPath, func(path string) {
			if err := a.store.Reload(context.Background()); err != nil {
				logger.Warn("snapshot reload failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("snapshot reloaded", zap.String("path", path))
		}, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := server.NewServer(a.retriever, a.store, &a.cfg.Server, a.cfg.Reindex.SeedPath, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
