package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/engine"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/server"
	"github.com/hyperjump/faqcache/internal/watcher"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server. When corpus.reconstruct_on_start is set the cache is rebuilt
from corpus.path before serving; when corpus.watch is set the corpus file is watched
and the cache is rebuilt whenever its content changes.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", cfg.Debug),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize components", zap.Error(err))
		return err
	}
	defer comps.Close()

	eng := comps.Engine
	if err := eng.Init(ctx); err != nil {
		logger.Error("Failed to open collection", zap.Error(err))
		return err
	}

	if cfg.Corpus.ReconstructOnRun && cfg.Corpus.Path != "" {
		res, err := eng.ReconstructIfChanged(ctx, cfg.Corpus.Path)
		if err != nil {
			logger.Warn("startup reconstruction failed, serving existing cache",
				zap.String("corpus", cfg.Corpus.Path), zap.Error(err))
		} else {
			logReconstruct(logger, res)
		}
	}

	var opts []server.Option
	if cfg.Corpus.Watch && cfg.Corpus.Path != "" {
		w := watcher.NewWatcher([]string{cfg.Corpus.Path}, corpusChanged(ctx, eng, logger),
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Error("Failed to start corpus watcher", zap.Error(err))
			return err
		}
		defer w.Stop()
		opts = append(opts, server.WithWatcher(w))
	}

	srv := server.NewServer(eng, logger, opts...)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// corpusChanged rebuilds the active collection when the watched corpus content changes.
// Failures leave the live collection in place and are only logged.
func corpusChanged(ctx context.Context, eng *engine.Engine, logger *zap.Logger) func(path string) {
	return func(path string) {
		res, err := eng.ReconstructIfChanged(ctx, path)
		if err != nil {
			logger.Warn("corpus reconstruction failed", zap.String("corpus", path), zap.Error(err))
			return
		}
		logReconstruct(logger, res)
	}
}

func logReconstruct(logger *zap.Logger, res models.ReconstructResult) {
	if res.Skipped {
		logger.Debug("corpus unchanged, reconstruction skipped", zap.String("corpus", res.CorpusPath))
		return
	}
	logger.Info("corpus reconstructed",
		zap.String("corpus", res.CorpusPath),
		zap.String("collection", res.CollectionName),
		zap.Int("items", res.ItemsProcessed),
		zap.Duration("duration", res.Duration),
		zap.String("backup", res.BackupCreated))
}
