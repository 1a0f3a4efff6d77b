package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/hondana/internal/config"
	"github.com/hyperjump/hondana/internal/embedding"
	"github.com/hyperjump/hondana/internal/retrieval"
	"github.com/hyperjump/hondana/internal/store"
	"github.com/hyperjump/hondana/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "/usr/local/etc/hondana/config.yaml"

// resolveConfigPath returns the config file to load. An explicit path wins; otherwise
// config.yaml in the current directory, then the system default. "" means built-in defaults.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, "config.yaml")
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// app holds the components shared by the commands.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	embedder   embedding.Embedder
	store      *store.Store
	retriever  *retrieval.Service
}

// newApp loads configuration and initializes the store. When requireEmbedder is false
// an embedding provider that cannot be built is logged and skipped.
func newApp(cmd *cobra.Command, requireEmbedder bool) (*app, error) {
	explicit, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	path := resolveConfigPath(explicit)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debugMode))

	a := &app{cfg: cfg, configPath: path, logger: logger}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := embedding.New(ctx, cfg.Embedding)
	switch {
	case err == nil:
		a.embedder = e
	case requireEmbedder:
		_ = logger.Sync()
		return nil, err
	default:
		logger.Warn("embedding provider unavailable", zap.Error(err))
	}

	opts := []store.Option{store.WithLogger(logger)}
	if a.embedder != nil {
		opts = append(opts, store.WithEmbedder(a.embedder))
	}
	a.store = store.New(cfg.VectorDB, opts...)
	if err := a.store.Init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.embedder != nil {
		a.retriever = retrieval.NewService(a.store, a.embedder,
			retrieval.WithLogger(logger),
			retrieval.WithBatchSize(cfg.Embedding.BatchSize),
			retrieval.WithConcurrency(cfg.Embedding.Concurrency),
		)
	}
	return a, nil
}

// Close releases the store and embedder.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	_ = a.logger.Sync()
}
